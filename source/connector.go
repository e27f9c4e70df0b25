package source

import (
	"context"
	"errors"
	"time"
)

// ErrDocumentNotFound indicates the connector has no document with the
// requested source id.
var ErrDocumentNotFound = errors.New("source document not found")

// RawDocument is the raw content a connector yields for one source document.
type RawDocument struct {
	// SourceID is the stable per-document identifier within the source.
	SourceID string

	// SourceType names the connector kind that produced this document,
	// e.g. "file" or "static".
	SourceType string

	// Title is the document's display title.
	Title string

	// Content is the full raw text content.
	Content string

	// Blocks optionally carries structural block texts (headings, sections)
	// for block-aware chunking. May be nil for unstructured sources.
	Blocks []string

	// Fingerprint is the content fingerprint used for change detection and
	// idempotency keying.
	Fingerprint string

	// ModifiedAt is the last-modified timestamp reported by the source.
	ModifiedAt time.Time
}

// Connector yields raw document content from an external source.
// Implementations must be thread-safe for concurrent use.
type Connector interface {
	// FetchRaw retrieves the current content of one document.
	// Returns ErrDocumentNotFound if the source has no such document.
	FetchRaw(ctx context.Context, sourceID string) (*RawDocument, error)
}
