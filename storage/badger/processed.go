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

// DefaultProcessedTTL is the retention window for idempotency marks. After
// expiry the same key may be recomputed and reprocessed.
const DefaultProcessedTTL = 24 * time.Hour

// processedStore implements storage.ProcessedStore on a Backend, using
// badger entry TTLs for expiry.
type processedStore struct {
	backend *Backend
	ttl     time.Duration
	logger  *slog.Logger
}

var _ storage.ProcessedStore = (*processedStore)(nil)

// NewProcessedStore creates a TTL-bounded idempotency cache backed by
// BadgerDB. A non-positive ttl selects DefaultProcessedTTL.
//
// Returns storage.ProcessedStore interface to enforce abstraction.
func NewProcessedStore(backend *Backend, ttl time.Duration) (storage.ProcessedStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &processedStore{
		backend: backend,
		ttl:     ttl,
		logger:  slog.Default().With("component", "processed-store"),
	}, nil
}

// IsProcessed reports whether the key is marked.
func (s *processedStore) IsProcessed(ctx context.Context, key string) (bool, *core.ProcessedMark, error) {
	if key == "" {
		return false, nil, fmt.Errorf("%w: key required", storage.ErrInvalidQuery)
	}

	var mark *core.ProcessedMark
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeProcessedKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			mark, err = storage.UnmarshalProcessedMark(val)
			if err != nil {
				return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
			}
			return nil
		})
	})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, mark, nil
}

// MarkProcessed marks the key with the given result for the retention window.
func (s *processedStore) MarkProcessed(ctx context.Context, key, result string) error {
	if key == "" {
		return fmt.Errorf("%w: key required", storage.ErrInvalidQuery)
	}

	mark := &core.ProcessedMark{Result: result, CompletedAt: time.Now().UTC()}
	data := storage.MarshalProcessedMark(mark)
	return s.backend.Update(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeProcessedKey(key), data).WithTTL(s.ttl)
		return tx.SetEntry(entry)
	})
}

// Close releases store resources. The shared backend is closed by its owner.
func (s *processedStore) Close() error {
	return nil
}
