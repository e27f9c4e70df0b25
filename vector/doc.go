// Package vector embeds chunk text and maintains the dense index. Point IDs
// encode the source and a content-fingerprint prefix so that re-indexing a
// changed document produces handles distinct from the previous version's,
// which lets the indexer verify new points before removing old ones.
package vector
