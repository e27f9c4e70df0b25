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


package vector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

const (
	defaultEmbedBatchSize = 32
	defaultEmbedRPS       = 10
	defaultEmbedBurst     = 20
)

// Local is the Service implementation over the embedded point store.
type Local struct {
	provider  ai.Provider
	points    storage.PointRepository
	limiter   *rate.Limiter
	batchSize int
	log       *slog.Logger
}

var _ Service = (*Local)(nil)

// Option configures a Local service.
type Option func(*Local)

// WithBatchSize sets how many chunks are embedded per request.
func WithBatchSize(n int) Option {
	return func(l *Local) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithRateLimit bounds embedding request throughput.
func WithRateLimit(rps float64, burst int) Option {
	return func(l *Local) {
		if rps > 0 && burst > 0 {
			l.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(l *Local) {
		if log != nil {
			l.log = log.With("component", "vector")
		}
	}
}

// NewLocal creates the vector service over the given provider and point store.
func NewLocal(provider ai.Provider, points storage.PointRepository, opts ...Option) (*Local, error) {
	if provider == nil {
		return nil, fmt.Errorf("vector: provider is required")
	}
	if points == nil {
		return nil, fmt.Errorf("vector: point repository is required")
	}

	l := &Local{
		provider:  provider,
		points:    points,
		limiter:   rate.NewLimiter(rate.Limit(defaultEmbedRPS), defaultEmbedBurst),
		batchSize: defaultEmbedBatchSize,
		log:       slog.Default().With("component", "vector"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Local) EmbedAndIndex(ctx context.Context, req IndexRequest) (*IndexAck, error) {
	if len(req.Chunks) == 0 {
		return &IndexAck{Spec: core.CurrentSpec(req.Provider)}, nil
	}

	embedder := l.provider.Embedder(req.Provider)
	if embedder == nil {
		return nil, fmt.Errorf("vector: no embedder for provider %s", req.Provider)
	}

	now := time.Now().UTC()
	spec := core.CurrentSpec(req.Provider)
	points := make([]*core.VectorPoint, 0, len(req.Chunks))

	for start := 0; start < len(req.Chunks); start += l.batchSize {
		end := start + l.batchSize
		if end > len(req.Chunks) {
			end = len(req.Chunks)
		}
		batch := req.Chunks[start:end]

		if err := l.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embed rate limit: %w", err)
		}

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		vectors, err := embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed batch at %d: got %d vectors for %d texts",
				start, len(vectors), len(batch))
		}

		for i, vec := range vectors {
			chunkIndex := start + i
			points = append(points, &core.VectorPoint{
				ID:          PointID(req.SourceID, req.Fingerprint, chunkIndex),
				WorkspaceID: req.WorkspaceID,
				SourceID:    req.SourceID,
				Fingerprint: req.Fingerprint,
				ChunkIndex:  chunkIndex,
				Text:        batch[i].Text,
				HeadingPath: batch[i].HeadingPath,
				Vector:      Normalize(vec),
				InsertedAt:  now,
			})
		}
	}

	if err := l.points.PutPoints(ctx, points...); err != nil {
		return nil, fmt.Errorf("store points: %w", err)
	}

	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}

	l.log.Debug("indexed points",
		"workspace_id", req.WorkspaceID,
		"source_id", req.SourceID,
		"provider", req.Provider.String(),
		"points", len(ids))

	return &IndexAck{PointIDs: ids, ChunkCount: len(ids), Spec: spec}, nil
}

func (l *Local) ExactCount(ctx context.Context, workspaceID, sourceID, fingerprint string) (int, error) {
	return l.points.CountPoints(ctx, workspaceID, sourceID, fingerprint)
}

func (l *Local) Search(ctx context.Context, workspaceID string, query []float32, limit int) ([]core.PointMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	q := Normalize(query)

	var matches []core.PointMatch
	err := l.points.IteratePoints(ctx, workspaceID, func(point *core.VectorPoint) error {
		if len(point.Vector) != len(q) {
			return nil
		}
		matches = append(matches, core.PointMatch{
			Point: point,
			Score: dot(q, point.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan points: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (l *Local) DeletePoints(ctx context.Context, workspaceID, sourceID string, ids []string) error {
	return l.points.DeletePoints(ctx, workspaceID, sourceID, ids)
}

func (l *Local) IteratePoints(ctx context.Context, workspaceID string, fn func(point *core.VectorPoint) error) error {
	return l.points.IteratePoints(ctx, workspaceID, fn)
}

// Normalize returns v scaled to unit length. Zero vectors are returned as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = f / norm
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
