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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/events"
	"github.com/poiesic/indexit/indexer"
	"github.com/poiesic/indexit/queue"
	"github.com/poiesic/indexit/source"
	"github.com/poiesic/indexit/storage"
	"github.com/poiesic/indexit/vector"
)

// maxSummaryInput bounds how much content is sent to the summarizer;
// minSummaryInput is the shortest content worth summarizing at all.
const (
	maxSummaryInput = 16000
	minSummaryInput = 80
)

// stageFunc runs one stage's work. A nil next halts the chain; otherwise
// next is enqueued for the following stage.
type stageFunc func(ctx context.Context, data *JobData) (next *JobData, result string, err error)

// wrap turns a stageFunc into a queue handler with idempotency checking,
// chain continuation and metrics. The next stage is enqueued before the
// current stage's key is marked processed, so a crash between the two
// duplicates work instead of losing it; the duplicate is then suppressed by
// this same check.
func (p *Pipeline) wrap(stage Stage, fn stageFunc) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		sm := p.metrics.stage(stage)

		data, err := decodeJobData(job.Payload)
		if err != nil {
			// Malformed payloads never become valid; drop instead of retrying.
			sm.recordError(err)
			p.log.Error("dropping malformed job", "stage", stage.String(), "job_id", job.ID, "error", err)
			return nil
		}

		log := p.log.With(
			"stage", stage.String(),
			"workspace_id", data.WorkspaceID,
			"source_id", data.SourceID)
		if data.Recovered {
			log = log.With("recovered", true)
		}

		key := ""
		if data.Fingerprint != "" {
			key = IdempotencyKey(data.WorkspaceID, data.SourceID, stage, data.Fingerprint)
			done, mark, err := p.deps.Processed.IsProcessed(ctx, key)
			if err != nil {
				return fmt.Errorf("idempotency check: %w", err)
			}
			if done {
				sm.duplicates.Add(1)
				log.Debug("duplicate stage execution suppressed", "original_result", mark.Result)
				return nil
			}
		}

		start := time.Now()
		next, result, err := fn(ctx, data)
		elapsed := time.Since(start)
		if err != nil {
			sm.recordError(err)
			p.publisher.Publish(events.Event{
				Type:        events.TypeStageFailed,
				At:          time.Now().UTC(),
				WorkspaceID: data.WorkspaceID,
				SourceID:    data.SourceID,
				Stage:       stage.String(),
				Err:         err,
			})
			log.Warn("stage failed", "attempt", job.Attempts, "error", err)
			return err
		}

		if next != nil {
			if nextStage := stage.Next(); nextStage.Valid() {
				next.PrevStage = stage.String()
				payload, encErr := next.encode()
				if encErr != nil {
					sm.recordError(encErr)
					return encErr
				}
				if _, enqErr := p.deps.Queue.Enqueue(ctx, nextStage.QueueName(), payload); enqErr != nil {
					sm.recordError(enqErr)
					return fmt.Errorf("enqueue stage %s: %w", nextStage, enqErr)
				}
			}
		}

		// The fetch stage learns the fingerprint during execution.
		if key == "" && next != nil && next.Fingerprint != "" {
			key = IdempotencyKey(data.WorkspaceID, data.SourceID, stage, next.Fingerprint)
		}
		if key != "" {
			if markErr := p.deps.Processed.MarkProcessed(ctx, key, result); markErr != nil {
				// The next stage is already enqueued; a lost mark only risks
				// one suppressed duplicate later.
				log.Warn("mark processed failed", "error", markErr)
			}
		}

		// Items are chunks where the stage knows them, one document otherwise.
		counted := next
		if counted == nil {
			counted = data
		}
		items := 1
		if len(counted.Chunks) > 0 {
			items = len(counted.Chunks)
		} else if counted.ChunkCount > 0 {
			items = counted.ChunkCount
		}
		sm.recordSuccess(elapsed, items)

		p.publisher.Publish(events.Event{
			Type:        events.TypeStageCompleted,
			At:          time.Now().UTC(),
			WorkspaceID: data.WorkspaceID,
			SourceID:    data.SourceID,
			Stage:       stage.String(),
			Detail:      result,
		})
		if stage == StageEnrich && data.Op == OpIngest && !data.StartedAt.IsZero() {
			total := time.Since(data.StartedAt).Round(time.Millisecond)
			p.publisher.Publish(events.Event{
				Type:        events.TypePipelineCompleted,
				At:          time.Now().UTC(),
				WorkspaceID: data.WorkspaceID,
				SourceID:    data.SourceID,
				Detail:      total.String(),
			})
			log.Info("pipeline completed", "total_duration", total)
		}
		log.Debug("stage completed", "result", result, "duration_ms", elapsed.Milliseconds())
		return nil
	}
}

func (p *Pipeline) handleFetch(ctx context.Context, data *JobData) (*JobData, string, error) {
	if data.Op == OpDelete {
		err := p.deps.Indexer.SoftDelete(ctx, data.WorkspaceID, data.SourceID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "already absent", nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("soft delete: %w", err)
		}
		return nil, "deleted", nil
	}

	raw, err := p.deps.Connector.FetchRaw(ctx, data.SourceID)
	if errors.Is(err, source.ErrDocumentNotFound) {
		// Gone at the source: tombstone it here as well.
		if delErr := p.deps.Indexer.SoftDelete(ctx, data.WorkspaceID, data.SourceID); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			return nil, "", fmt.Errorf("soft delete vanished document: %w", delErr)
		}
		return nil, "vanished at source", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", data.SourceID, err)
	}

	// Unchanged content short-circuits before any model work happens.
	entry, err := p.deps.Documents.GetDocument(ctx, data.WorkspaceID, data.SourceID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, "", fmt.Errorf("load document entry: %w", err)
	}
	if entry != nil && entry.Status == core.SyncSynced && entry.Fingerprint == raw.Fingerprint {
		p.metrics.stage(StageFetch).duplicates.Add(1)
		return nil, "content unchanged", nil
	}

	// A chain for this exact content version may already be in flight.
	fetchKey := IdempotencyKey(data.WorkspaceID, data.SourceID, StageFetch, raw.Fingerprint)
	done, _, err := p.deps.Processed.IsProcessed(ctx, fetchKey)
	if err != nil {
		return nil, "", fmt.Errorf("idempotency check: %w", err)
	}
	if done {
		p.metrics.stage(StageFetch).duplicates.Add(1)
		return nil, "version already in flight", nil
	}

	now := time.Now().UTC()
	if entry == nil {
		entry = &core.DocumentEntry{
			WorkspaceID: data.WorkspaceID,
			SourceID:    data.SourceID,
			InsertedAt:  now,
		}
	}
	entry.SourceType = raw.SourceType
	entry.Title = raw.Title
	entry.Status = core.SyncPending
	entry.UpdatedAt = now
	if err := p.deps.Documents.PutDocument(ctx, entry); err != nil {
		return nil, "", fmt.Errorf("register document: %w", err)
	}

	next := *data
	next.SourceType = raw.SourceType
	next.Title = raw.Title
	next.Content = raw.Content
	next.Blocks = raw.Blocks
	next.Fingerprint = raw.Fingerprint
	next.ModifiedAt = raw.ModifiedAt
	return &next, fmt.Sprintf("%d bytes", len(raw.Content)), nil
}

func (p *Pipeline) handleChunk(ctx context.Context, data *JobData) (*JobData, string, error) {
	chunks, err := p.deps.Splitter.Split(ctx, data.Content, data.Blocks)
	if err != nil {
		return nil, "", fmt.Errorf("split %s: %w", data.SourceID, err)
	}

	// Zero chunks is valid: the rest of the chain commits an empty version,
	// which clears any previous version from the indexes.
	next := *data
	next.Chunks = chunks
	next.Blocks = nil
	return &next, fmt.Sprintf("%d chunks", len(chunks)), nil
}

func (p *Pipeline) handleScan(ctx context.Context, data *JobData) (*JobData, string, error) {
	next := *data

	ws, err := p.workspaceOrDefault(ctx, data.WorkspaceID)
	if err != nil {
		return nil, "", err
	}

	texts := make([]string, len(data.Chunks))
	for i, chunk := range data.Chunks {
		texts[i] = chunk.Text
	}

	res, err := p.deps.Provider.Scanner().Scan(ctx, texts, ws.Trust)
	if err != nil {
		// Scanning is advisory. The chain continues under the current trust
		// level; the failure still counts against pipeline health.
		p.metrics.stage(StageScan).recordError(err)
		p.log.Warn("scan failed, keeping current trust level",
			"workspace_id", data.WorkspaceID,
			"source_id", data.SourceID,
			"error", err)
		return &next, "scan unavailable", nil
	}

	if !res.ShouldUpgrade {
		return &next, "no upgrade", nil
	}

	now := time.Now().UTC()
	ws.PriorTrust = ws.Trust
	ws.Trust = res.RecommendedTrust
	ws.NeedsReview = true
	ws.DetectedPatterns = res.DetectedPatterns
	ws.UpdatedAt = now
	if err := p.deps.Workspaces.PutWorkspace(ctx, ws); err != nil {
		return nil, "", fmt.Errorf("persist trust upgrade: %w", err)
	}

	p.publisher.Publish(events.Event{
		Type:        events.TypeTrustUpgraded,
		At:          now,
		WorkspaceID: data.WorkspaceID,
		SourceID:    data.SourceID,
		Detail:      fmt.Sprintf("%s -> %s", ws.PriorTrust, ws.Trust),
	})
	p.log.Info("workspace trust upgraded",
		"workspace_id", data.WorkspaceID,
		"from", ws.PriorTrust.String(),
		"to", ws.Trust.String(),
		"patterns", res.DetectedPatterns)
	return &next, fmt.Sprintf("upgraded to %s", ws.Trust), nil
}

func (p *Pipeline) handleEmbed(ctx context.Context, data *JobData) (*JobData, string, error) {
	// Routing reads the workspace after any scan upgrade took effect.
	ws, err := p.workspaceOrDefault(ctx, data.WorkspaceID)
	if err != nil {
		return nil, "", err
	}
	provider := ai.SelectProvider(ws.Trust, ws.PreferCloud, ws.CloudConsent)

	ack, err := p.deps.Vectors.EmbedAndIndex(ctx, vector.IndexRequest{
		WorkspaceID: data.WorkspaceID,
		SourceID:    data.SourceID,
		Fingerprint: data.Fingerprint,
		Provider:    provider,
		Chunks:      data.Chunks,
	})
	if err != nil {
		p.recordEntryError(ctx, data, "embed", err)
		return nil, "", fmt.Errorf("embed %s: %w", data.SourceID, err)
	}

	next := *data
	next.PointIDs = ack.PointIDs
	next.ChunkCount = ack.ChunkCount
	next.Provider = provider
	return &next, fmt.Sprintf("%d points via %s", ack.ChunkCount, provider), nil
}

func (p *Pipeline) handleIndex(ctx context.Context, data *JobData) (*JobData, string, error) {
	ack := &vector.IndexAck{
		PointIDs:   data.PointIDs,
		ChunkCount: data.ChunkCount,
		Spec:       core.CurrentSpec(data.Provider),
	}
	err := p.deps.Indexer.Commit(ctx, indexer.CommitRequest{
		WorkspaceID:      data.WorkspaceID,
		SourceID:         data.SourceID,
		SourceType:       data.SourceType,
		Title:            data.Title,
		Fingerprint:      data.Fingerprint,
		SourceModifiedAt: data.ModifiedAt,
		Chunks:           data.Chunks,
		Ack:              ack,
	})
	if err != nil {
		// The indexer already recorded verification failures on the entry.
		return nil, "", err
	}

	next := *data
	return &next, fmt.Sprintf("%d chunks committed", data.ChunkCount), nil
}

func (p *Pipeline) handleEnrich(ctx context.Context, data *JobData) (*JobData, string, error) {
	if data.SkipEnrich {
		return nil, "enrichment skipped", nil
	}
	content := data.Content
	if len(content) > maxSummaryInput {
		content = content[:maxSummaryInput]
	}
	if len(content) < minSummaryInput {
		return nil, "content too short", nil
	}

	summary, err := p.deps.Provider.Summarizer().Summarize(ctx, content)
	if err != nil {
		// Enrichment is optional; the document is already searchable.
		p.metrics.stage(StageEnrich).recordError(err)
		p.log.Warn("summarize failed",
			"workspace_id", data.WorkspaceID,
			"source_id", data.SourceID,
			"error", err)
		return nil, "summary unavailable", nil
	}

	entry, err := p.deps.Documents.GetDocument(ctx, data.WorkspaceID, data.SourceID)
	if err != nil {
		return nil, "", fmt.Errorf("load document entry: %w", err)
	}
	entry.Summary = summary
	entry.UpdatedAt = time.Now().UTC()
	if err := p.deps.Documents.PutDocument(ctx, entry); err != nil {
		return nil, "", fmt.Errorf("persist summary: %w", err)
	}
	return nil, "summarized", nil
}

func (p *Pipeline) workspaceOrDefault(ctx context.Context, workspaceID string) (*core.WorkspaceRecord, error) {
	ws, err := p.deps.Workspaces.GetWorkspace(ctx, workspaceID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.DefaultWorkspace(workspaceID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	return ws, nil
}

// recordEntryError appends to the document's bounded error log, best-effort.
func (p *Pipeline) recordEntryError(ctx context.Context, data *JobData, stage string, cause error) {
	entry, err := p.deps.Documents.GetDocument(ctx, data.WorkspaceID, data.SourceID)
	if err != nil {
		return
	}
	now := time.Now().UTC()
	entry.Status = core.SyncError
	entry.RecordError(stage, cause.Error(), now)
	entry.UpdatedAt = now
	if err := p.deps.Documents.PutDocument(ctx, entry); err != nil {
		p.log.Error("record entry error", "error", err)
	}
}
