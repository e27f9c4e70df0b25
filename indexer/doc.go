// Package indexer commits embedded documents to the search indexes using an
// add-then-verify-then-delete protocol. New points are written first, the
// dense index is asked for an exact count of the new version's points, and
// only after that count checks out are the previous version's keyword entries
// and dedup fingerprint removed. A failed verification leaves the previous
// version fully searchable.
package indexer
