// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


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

// pointRepository implements storage.PointRepository on a Backend.
type pointRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.PointRepository = (*pointRepository)(nil)

// NewPointRepository creates a vector point store backed by BadgerDB.
//
// Returns storage.PointRepository interface to enforce abstraction.
func NewPointRepository(backend *Backend) (storage.PointRepository, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &pointRepository{
		backend: backend,
		logger:  slog.Default().With("component", "point-repository"),
	}, nil
}

// PutPoints inserts or replaces vector points.
func (r *pointRepository) PutPoints(ctx context.Context, points ...*core.VectorPoint) error {
	now := time.Now().UTC()
	for _, point := range points {
		if err := core.ValidateVectorPoint(point); err != nil {
			return err
		}
		if point.InsertedAt.IsZero() {
			point.InsertedAt = now
		}
	}

	// One transaction per batch; badger limits transaction size, so large
	// documents are written in slices.
	const batchSize = 256
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		err := r.backend.Update(func(tx *badger.Txn) error {
			for _, point := range points[start:end] {
				key := makePointKey(point.WorkspaceID, point.SourceID, point.ID)
				if err := tx.Set(key, storage.MarshalVectorPoint(point)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DeletePoints removes points of one document by id. Missing ids are ignored.
func (r *pointRepository) DeletePoints(ctx context.Context, workspaceID, sourceID string, ids []string) error {
	if workspaceID == "" || sourceID == "" {
		return fmt.Errorf("%w: workspace and source ids required", storage.ErrInvalidQuery)
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := tx.Delete(makePointKey(workspaceID, sourceID, id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountPoints returns the exact number of points for (workspaceID, sourceID)
// whose fingerprint matches. An empty fingerprint counts all points.
func (r *pointRepository) CountPoints(ctx context.Context, workspaceID, sourceID, fingerprint string) (int, error) {
	if workspaceID == "" || sourceID == "" {
		return 0, fmt.Errorf("%w: workspace and source ids required", storage.ErrInvalidQuery)
	}

	count := 0
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePointScanPrefix(workspaceID, sourceID)
		// Values are needed only for fingerprint filtering.
		opts.PrefetchValues = fingerprint != ""
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if fingerprint == "" {
				count++
				continue
			}
			err := iter.Item().Value(func(val []byte) error {
				point, err := storage.UnmarshalVectorPoint(val)
				if err != nil {
					return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
				}
				if point.Fingerprint == fingerprint {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// IteratePoints calls fn for every point of a workspace.
func (r *pointRepository) IteratePoints(ctx context.Context, workspaceID string, fn func(point *core.VectorPoint) error) error {
	if workspaceID == "" {
		return fmt.Errorf("%w: workspace id required", storage.ErrInvalidQuery)
	}

	return r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePointWorkspacePrefix(workspaceID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				point, err := storage.UnmarshalVectorPoint(val)
				if err != nil {
					return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
				}
				return fn(point)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases repository resources. The shared backend is closed by its owner.
func (r *pointRepository) Close() error {
	return nil
}
