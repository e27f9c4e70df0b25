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

	"github.com/poiesic/indexit/core"
)

// IndexRequest asks for one document version's chunks to be embedded and
// written to the dense index.
type IndexRequest struct {
	WorkspaceID string
	SourceID    string
	Fingerprint string
	Provider    core.EmbeddingProvider
	Chunks      []core.Chunk
}

// IndexAck reports what an index request produced.
type IndexAck struct {
	PointIDs   []string
	ChunkCount int
	Spec       core.EmbeddingSpec
}

// Service embeds chunks and serves the dense index.
type Service interface {
	// EmbedAndIndex embeds the request's chunks with the requested provider
	// and stores the resulting points. It does not remove any existing
	// points; superseded-version cleanup belongs to the indexer.
	EmbedAndIndex(ctx context.Context, req IndexRequest) (*IndexAck, error)

	// ExactCount returns how many stored points belong to the given document,
	// restricted to the given content fingerprint when non-empty. The count
	// is read from the index itself, not inferred from request results.
	ExactCount(ctx context.Context, workspaceID, sourceID, fingerprint string) (int, error)

	// Search returns the points most similar to the query vector within one
	// workspace, best first.
	Search(ctx context.Context, workspaceID string, query []float32, limit int) ([]core.PointMatch, error)

	// DeletePoints removes the identified points of one document.
	DeletePoints(ctx context.Context, workspaceID, sourceID string, ids []string) error

	// IteratePoints visits every stored point of one workspace. Used by
	// orphan reconciliation and migration inventories.
	IteratePoints(ctx context.Context, workspaceID string, fn func(point *core.VectorPoint) error) error
}
