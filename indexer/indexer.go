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


package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/events"
	"github.com/poiesic/indexit/lexical"
	"github.com/poiesic/indexit/split"
	"github.com/poiesic/indexit/storage"
	"github.com/poiesic/indexit/vector"
)

// Indexer owns the commit protocol between the registry, the dense index and
// the keyword index.
type Indexer struct {
	documents  storage.DocumentRepository
	workspaces storage.WorkspaceRepository
	vectors    vector.Service
	keywords   *lexical.Index
	splitter   split.Splitter
	publisher  events.Publisher
	log        *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithPublisher sets the event publisher. Defaults to a no-op publisher.
func WithPublisher(p events.Publisher) Option {
	return func(ix *Indexer) {
		if p != nil {
			ix.publisher = p
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(ix *Indexer) {
		if log != nil {
			ix.log = log.With("component", "indexer")
		}
	}
}

// New creates an Indexer over the given stores and services.
func New(
	documents storage.DocumentRepository,
	workspaces storage.WorkspaceRepository,
	vectors vector.Service,
	keywords *lexical.Index,
	splitter split.Splitter,
	opts ...Option,
) (*Indexer, error) {
	if documents == nil || workspaces == nil || vectors == nil || keywords == nil {
		return nil, fmt.Errorf("indexer: documents, workspaces, vectors and keywords are required")
	}

	ix := &Indexer{
		documents:  documents,
		workspaces: workspaces,
		vectors:    vectors,
		keywords:   keywords,
		splitter:   splitter,
		publisher:  events.Nop{},
		log:        slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// CommitRequest carries everything the commit protocol needs after the new
// version's points have been written to the dense index.
type CommitRequest struct {
	WorkspaceID      string
	SourceID         string
	SourceType       string
	Title            string
	Fingerprint      string
	SourceModifiedAt time.Time
	Chunks           []core.Chunk
	Ack              *vector.IndexAck
}

// Commit verifies the new version's points and swaps the keyword index and
// registry entry over to them. On verification failure the previous version
// stays searchable, the new points are removed best-effort, and the returned
// error wraps ErrVerificationFailed.
func (ix *Indexer) Commit(ctx context.Context, req CommitRequest) error {
	if req.Ack == nil {
		return fmt.Errorf("indexer: commit without index ack")
	}
	now := time.Now().UTC()

	entry, err := ix.documents.GetDocument(ctx, req.WorkspaceID, req.SourceID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load document entry: %w", err)
	}
	var oldPointIDs []string
	if entry == nil {
		entry = &core.DocumentEntry{
			WorkspaceID: req.WorkspaceID,
			SourceID:    req.SourceID,
			InsertedAt:  now,
		}
	} else {
		oldPointIDs = entry.PointIDs
	}

	// Verify against the index itself, not the embed response.
	actual, err := ix.vectors.ExactCount(ctx, req.WorkspaceID, req.SourceID, req.Fingerprint)
	if err != nil {
		return fmt.Errorf("verify point count: %w", err)
	}
	if actual != req.Ack.ChunkCount {
		verr := &VerificationError{
			WorkspaceID:        req.WorkspaceID,
			SourceID:           req.SourceID,
			Expected:           req.Ack.ChunkCount,
			Actual:             actual,
			OldChunksPreserved: true,
		}
		ix.failCommit(ctx, entry, req, verr, now)
		return verr
	}

	// Point of no return: the new version is confirmed in the dense index.
	// Swap the keyword entries first, then the dedup fingerprint, then the
	// registry entry. Old dense points are removed last; leftovers are
	// cleaned up by ReconcileOrphans.
	newEntries := lexical.EntriesFor(req.WorkspaceID, req.SourceID, req.Ack.PointIDs, req.Chunks)
	if err := ix.keywords.IndexChunks(ctx, newEntries); err != nil {
		return fmt.Errorf("index keyword entries: %w", err)
	}
	if len(oldPointIDs) > 0 {
		if err := ix.keywords.RemovePoints(ctx, req.WorkspaceID, req.SourceID, oldPointIDs); err != nil {
			return fmt.Errorf("remove superseded keyword entries: %w", err)
		}
	}
	if err := ix.keywords.SetFingerprint(ctx, req.WorkspaceID, req.SourceID, req.Fingerprint); err != nil {
		return fmt.Errorf("record dedup fingerprint: %w", err)
	}

	entry.SourceType = req.SourceType
	entry.Title = req.Title
	entry.Fingerprint = req.Fingerprint
	entry.SourceModifiedAt = req.SourceModifiedAt
	entry.Status = core.SyncSynced
	entry.PointIDs = req.Ack.PointIDs
	entry.ChunkCount = req.Ack.ChunkCount
	entry.Embedding = req.Ack.Spec.Metadata(req.Ack.ChunkCount, now)
	entry.UpdatedAt = now
	if err := ix.documents.PutDocument(ctx, entry); err != nil {
		return fmt.Errorf("persist document entry: %w", err)
	}

	if len(oldPointIDs) > 0 {
		if err := ix.vectors.DeletePoints(ctx, req.WorkspaceID, req.SourceID, oldPointIDs); err != nil {
			// Not fatal: the entry already references the new points.
			ix.log.Warn("superseded points left for reconciliation",
				"workspace_id", req.WorkspaceID,
				"source_id", req.SourceID,
				"count", len(oldPointIDs),
				"error", err)
		}
	}

	ix.publisher.Publish(events.Event{
		Type:        events.TypeDocumentIndexed,
		At:          now,
		WorkspaceID: req.WorkspaceID,
		SourceID:    req.SourceID,
		Detail:      fmt.Sprintf("%d chunks", req.Ack.ChunkCount),
	})
	ix.log.Info("document committed",
		"workspace_id", req.WorkspaceID,
		"source_id", req.SourceID,
		"chunks", req.Ack.ChunkCount)
	return nil
}

// failCommit records a verification failure without touching the previous
// version's index entries. Whatever partial points made it into the dense
// index stay there: a retried commit may find them complete, and if not they
// are unreferenced and ReconcileOrphans removes them.
func (ix *Indexer) failCommit(ctx context.Context, entry *core.DocumentEntry, req CommitRequest, verr *VerificationError, now time.Time) {
	entry.Status = core.SyncError
	entry.RecordError("index", verr.Error(), now)
	entry.UpdatedAt = now
	if err := ix.documents.PutDocument(ctx, entry); err != nil {
		ix.log.Error("persist verification failure", "error", err)
	}

	ix.publisher.Publish(events.Event{
		Type:        events.TypeStageFailed,
		At:          now,
		WorkspaceID: req.WorkspaceID,
		SourceID:    req.SourceID,
		Stage:       "index",
		Err:         verr,
	})
	ix.log.Error("verification failed, previous version preserved",
		"workspace_id", req.WorkspaceID,
		"source_id", req.SourceID,
		"expected", verr.Expected,
		"actual", verr.Actual)
}

// IndexDocument runs the full split-embed-verify-commit path for one
// document in a single call. The ingestion pipeline stages are the usual way
// in; this direct path serves embedding migrations and tests.
func (ix *Indexer) IndexDocument(ctx context.Context, workspaceID, sourceID, sourceType, title, content string, modifiedAt time.Time) error {
	if ix.splitter == nil {
		return fmt.Errorf("indexer: no splitter configured")
	}

	ws, err := ix.workspaces.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load workspace: %w", err)
		}
		ws = core.DefaultWorkspace(workspaceID)
	}

	chunks, err := ix.splitter.Split(ctx, content, nil)
	if err != nil {
		return fmt.Errorf("split document: %w", err)
	}

	fingerprint := core.Fingerprint(content)
	provider := ai.SelectProvider(ws.Trust, ws.PreferCloud, ws.CloudConsent)
	ack, err := ix.vectors.EmbedAndIndex(ctx, vector.IndexRequest{
		WorkspaceID: workspaceID,
		SourceID:    sourceID,
		Fingerprint: fingerprint,
		Provider:    provider,
		Chunks:      chunks,
	})
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}

	return ix.Commit(ctx, CommitRequest{
		WorkspaceID:      workspaceID,
		SourceID:         sourceID,
		SourceType:       sourceType,
		Title:            title,
		Fingerprint:      fingerprint,
		SourceModifiedAt: modifiedAt,
		Chunks:           chunks,
		Ack:              ack,
	})
}

// SoftDelete removes a document's keyword entries and dedup fingerprint and
// marks its registry entry deleted. The entry is retained as a tombstone with
// its point handles intact; the dense points are pruned by ReconcileOrphans.
func (ix *Indexer) SoftDelete(ctx context.Context, workspaceID, sourceID string) error {
	now := time.Now().UTC()

	entry, err := ix.documents.GetDocument(ctx, workspaceID, sourceID)
	if err != nil {
		return fmt.Errorf("load document entry: %w", err)
	}
	if entry.Status == core.SyncDeleted {
		return nil
	}

	if err := ix.keywords.RemoveSource(ctx, workspaceID, sourceID); err != nil {
		return fmt.Errorf("remove keyword entries: %w", err)
	}
	if err := ix.keywords.DeleteFingerprint(ctx, workspaceID, sourceID); err != nil {
		return fmt.Errorf("delete dedup fingerprint: %w", err)
	}

	// Point handles stay on the tombstone; the dense points themselves are
	// left for ReconcileOrphans, which treats deleted entries as unreferenced.
	entry.Status = core.SyncDeleted
	entry.UpdatedAt = now
	if err := ix.documents.PutDocument(ctx, entry); err != nil {
		return fmt.Errorf("persist tombstone: %w", err)
	}

	ix.publisher.Publish(events.Event{
		Type:        events.TypeDocumentDeleted,
		At:          now,
		WorkspaceID: workspaceID,
		SourceID:    sourceID,
	})
	ix.log.Info("document soft-deleted", "workspace_id", workspaceID, "source_id", sourceID)
	return nil
}

// ReconcileOrphans removes dense points that no registry entry references:
// leftovers from superseded versions whose inline deletion failed, and
// points of documents that were since deleted. Returns how many points were
// removed.
func (ix *Indexer) ReconcileOrphans(ctx context.Context, workspaceID string) (int, error) {
	type docRef struct {
		ids     map[string]struct{}
		deleted bool
	}
	refs := make(map[string]*docRef)

	entries, err := ix.documents.ListDocuments(ctx, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	for _, entry := range entries {
		ref := &docRef{ids: make(map[string]struct{}, len(entry.PointIDs)), deleted: entry.Status == core.SyncDeleted}
		for _, id := range entry.PointIDs {
			ref.ids[id] = struct{}{}
		}
		refs[entry.SourceID] = ref
	}

	orphans := make(map[string][]string)
	err = ix.vectors.IteratePoints(ctx, workspaceID, func(point *core.VectorPoint) error {
		ref, known := refs[point.SourceID]
		if known && !ref.deleted {
			if _, referenced := ref.ids[point.ID]; referenced {
				return nil
			}
		}
		orphans[point.SourceID] = append(orphans[point.SourceID], point.ID)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan points: %w", err)
	}

	removed := 0
	for sourceID, ids := range orphans {
		if err := ix.vectors.DeletePoints(ctx, workspaceID, sourceID, ids); err != nil {
			ix.log.Warn("orphan removal failed",
				"workspace_id", workspaceID,
				"source_id", sourceID,
				"error", err)
			continue
		}
		removed += len(ids)
	}

	if removed > 0 {
		ix.log.Info("reconciled orphan points", "workspace_id", workspaceID, "removed", removed)
	}
	return removed, nil
}
