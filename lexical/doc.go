// Package lexical maintains the keyword side of the search index: an SQLite
// FTS5 table of chunk text plus the dedup fingerprint table. Entries are
// keyed by point ID so the indexer can swap one document version's entries
// for another's after the dense index has been verified.
package lexical
