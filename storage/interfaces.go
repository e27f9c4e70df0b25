package storage

import (
	"context"

	"github.com/poiesic/indexit/core"
)

// DocumentRepository stores the document registry: one entry per
// (workspace, source document) pair.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// PutDocument inserts or replaces a registry entry.
	PutDocument(ctx context.Context, entry *core.DocumentEntry) error

	// GetDocument retrieves the entry for (workspaceID, sourceID).
	// Returns ErrNotFound if no entry exists.
	GetDocument(ctx context.Context, workspaceID, sourceID string) (*core.DocumentEntry, error)

	// ListDocuments returns all entries of a workspace, including
	// soft-deleted ones.
	ListDocuments(ctx context.Context, workspaceID string) ([]*core.DocumentEntry, error)

	// Close releases repository resources.
	Close() error
}

// WorkspaceRepository stores per-workspace trust and consent settings.
// Implementations must be thread-safe and support concurrent access.
type WorkspaceRepository interface {
	// PutWorkspace inserts or replaces a workspace record.
	PutWorkspace(ctx context.Context, record *core.WorkspaceRecord) error

	// GetWorkspace retrieves a workspace record by id.
	// Returns ErrNotFound if the workspace has never been configured.
	GetWorkspace(ctx context.Context, id string) (*core.WorkspaceRecord, error)

	// Close releases repository resources.
	Close() error
}

// PointRepository stores the dense vector points of the local index.
// Implementations must be thread-safe and support concurrent access.
type PointRepository interface {
	// PutPoints inserts or replaces vector points.
	PutPoints(ctx context.Context, points ...*core.VectorPoint) error

	// DeletePoints removes points of one document by id. Missing ids are
	// ignored.
	DeletePoints(ctx context.Context, workspaceID, sourceID string, ids []string) error

	// CountPoints returns the exact number of points for (workspaceID,
	// sourceID) whose fingerprint matches. An empty fingerprint counts all
	// points of the document.
	CountPoints(ctx context.Context, workspaceID, sourceID, fingerprint string) (int, error)

	// IteratePoints calls fn for every point of a workspace. Iteration stops
	// on the first error returned by fn.
	IteratePoints(ctx context.Context, workspaceID string, fn func(point *core.VectorPoint) error) error

	// Close releases repository resources.
	Close() error
}

// ProcessedStore is the TTL-bounded idempotency cache. A key, once marked,
// suppresses duplicate execution until its retention window expires.
// Implementations must be safe under concurrent read and mark.
type ProcessedStore interface {
	// IsProcessed reports whether the key is marked, returning the stored
	// mark when present.
	IsProcessed(ctx context.Context, key string) (bool, *core.ProcessedMark, error)

	// MarkProcessed marks the key with the given result. The mark expires
	// after the store's configured retention window.
	MarkProcessed(ctx context.Context, key, result string) error

	// Close releases store resources.
	Close() error
}
