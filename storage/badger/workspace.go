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

// workspaceRepository implements storage.WorkspaceRepository on a Backend.
type workspaceRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.WorkspaceRepository = (*workspaceRepository)(nil)

// NewWorkspaceRepository creates a workspace settings store backed by BadgerDB.
//
// Returns storage.WorkspaceRepository interface to enforce abstraction.
func NewWorkspaceRepository(backend *Backend) (storage.WorkspaceRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &workspaceRepository{
		backend: backend,
		logger:  slog.Default().With("component", "workspace-repository"),
	}, nil
}

// PutWorkspace inserts or replaces a workspace record.
func (r *workspaceRepository) PutWorkspace(ctx context.Context, record *core.WorkspaceRecord) error {
	if err := core.ValidateWorkspaceRecord(record); err != nil {
		return err
	}

	record.UpdatedAt = time.Now().UTC()
	data := storage.MarshalWorkspaceRecord(record)
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeWorkspaceKey(record.ID), data)
	})
}

// GetWorkspace retrieves a workspace record by id.
func (r *workspaceRepository) GetWorkspace(ctx context.Context, id string) (*core.WorkspaceRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: workspace id required", storage.ErrInvalidQuery)
	}

	var record *core.WorkspaceRecord
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeWorkspaceKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			record, err = storage.UnmarshalWorkspaceRecord(val)
			if err != nil {
				return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Close releases repository resources. The shared backend is closed by its owner.
func (r *workspaceRepository) Close() error {
	return nil
}
