package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/poiesic/indexit/core"
)

// Static is an in-memory connector holding documents added programmatically.
// It is used by tests and by single-shot CLI ingestion of inline content.
type Static struct {
	mu   sync.RWMutex
	docs map[string]*RawDocument
}

var _ Connector = (*Static)(nil)

// NewStatic creates an empty in-memory connector.
func NewStatic() *Static {
	return &Static{docs: map[string]*RawDocument{}}
}

// Add registers or replaces a document. The fingerprint is computed from the
// content; the modified timestamp defaults to now when zero.
func (s *Static) Add(sourceID, title, content string, modifiedAt time.Time) {
	if modifiedAt.IsZero() {
		modifiedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[sourceID] = &RawDocument{
		SourceID:    sourceID,
		SourceType:  "static",
		Title:       title,
		Content:     content,
		Fingerprint: core.Fingerprint(content),
		ModifiedAt:  modifiedAt,
	}
}

// Remove deletes a document from the connector.
func (s *Static) Remove(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, sourceID)
}

// FetchRaw retrieves the current content of one document.
func (s *Static) FetchRaw(ctx context.Context, sourceID string) (*RawDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, sourceID)
	}
	// Copy so callers cannot mutate the stored document.
	out := *doc
	return &out, nil
}

// SourceIDs returns the ids of all registered documents.
func (s *Static) SourceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	return ids
}
