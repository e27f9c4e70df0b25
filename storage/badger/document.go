package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

// documentRepository implements storage.DocumentRepository on a Backend.
type documentRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.DocumentRepository = (*documentRepository)(nil)

// NewDocumentRepository creates a document registry backed by BadgerDB.
//
// Returns storage.DocumentRepository interface to enforce abstraction.
func NewDocumentRepository(backend *Backend) (storage.DocumentRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &documentRepository{
		backend: backend,
		logger:  slog.Default().With("component", "document-repository"),
	}, nil
}

// PutDocument inserts or replaces a registry entry.
func (r *documentRepository) PutDocument(ctx context.Context, entry *core.DocumentEntry) error {
	if err := core.ValidateDocumentEntry(entry); err != nil {
		return err
	}

	now := time.Now().UTC()
	if entry.InsertedAt.IsZero() {
		entry.InsertedAt = now
	}
	entry.UpdatedAt = now

	data := storage.MarshalDocumentEntry(entry)
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeDocumentKey(entry.WorkspaceID, entry.SourceID), data)
	})
}

// GetDocument retrieves the entry for (workspaceID, sourceID).
func (r *documentRepository) GetDocument(ctx context.Context, workspaceID, sourceID string) (*core.DocumentEntry, error) {
	if workspaceID == "" || sourceID == "" {
		return nil, fmt.Errorf("%w: workspace and source ids required", storage.ErrInvalidQuery)
	}

	var entry *core.DocumentEntry
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentKey(workspaceID, sourceID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			entry, err = storage.UnmarshalDocumentEntry(val)
			if err != nil {
				return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListDocuments returns all entries of a workspace, including soft-deleted ones.
func (r *documentRepository) ListDocuments(ctx context.Context, workspaceID string) ([]*core.DocumentEntry, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("%w: workspace id required", storage.ErrInvalidQuery)
	}

	var entries []*core.DocumentEntry
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentScanPrefix(workspaceID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				entry, err := storage.UnmarshalDocumentEntry(val)
				if err != nil {
					return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
				}
				entries = append(entries, entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close releases repository resources. The shared backend is closed by its owner.
func (r *documentRepository) Close() error {
	return nil
}
