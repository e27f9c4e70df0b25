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


package reembed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/events"
	"github.com/poiesic/indexit/indexer"
	"github.com/poiesic/indexit/source"
	"github.com/poiesic/indexit/storage"
)

// Config holds migration tuning parameters.
type Config struct {
	// BatchSize is how many documents are loaded per batch.
	BatchSize int
	// Parallelism is how many documents migrate concurrently within a batch.
	Parallelism int
	// FetchAttempts bounds source fetch retries per document.
	FetchAttempts int
	// FetchBackoff is the base delay between fetch retries.
	FetchBackoff time.Duration
}

// DefaultConfig returns the default migration configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:     50,
		Parallelism:   2,
		FetchAttempts: 3,
		FetchBackoff:  2 * time.Second,
	}
}

// Migrator re-indexes documents whose stored embedding spec lags the current
// one. Documents are re-fetched from their source and pushed through the
// direct index path, so each one gets the full verify-and-swap treatment and
// stays searchable under its old embedding until the new one is confirmed.
type Migrator struct {
	documents storage.DocumentRepository
	connector source.Connector
	indexer   *indexer.Indexer
	config    *Config
	publisher events.Publisher
	log       *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	track   *tracker
	done    chan struct{}
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithPublisher sets the event publisher. Defaults to a no-op publisher.
func WithPublisher(p events.Publisher) Option {
	return func(m *Migrator) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(m *Migrator) {
		if log != nil {
			m.log = log.With("component", "reembed")
		}
	}
}

// New creates a Migrator. A nil config uses DefaultConfig.
func New(documents storage.DocumentRepository, connector source.Connector, ix *indexer.Indexer, config *Config, opts ...Option) (*Migrator, error) {
	if documents == nil || connector == nil || ix == nil {
		return nil, fmt.Errorf("reembed: documents, connector and indexer are required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	m := &Migrator{
		documents: documents,
		connector: connector,
		indexer:   ix,
		config:    config,
		publisher: events.Nop{},
		log:       slog.Default().With("component", "reembed"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CandidateDocuments returns the synced documents of one workspace whose
// embedding metadata no longer matches the current spec for their provider.
func (m *Migrator) CandidateDocuments(ctx context.Context, workspaceID string) ([]*core.DocumentEntry, error) {
	entries, err := m.documents.ListDocuments(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var candidates []*core.DocumentEntry
	for _, entry := range entries {
		if entry.Status != core.SyncSynced {
			continue
		}
		if core.NeedsMigration(entry.Embedding) {
			candidates = append(candidates, entry)
		}
	}
	return candidates, nil
}

// Start begins migrating one workspace in the background. Only one migration
// may run at a time; a second Start returns ErrMigrationRunning. With dryRun
// the candidate inventory is taken but nothing is re-indexed.
func (m *Migrator) Start(ctx context.Context, workspaceID string, dryRun bool) (Status, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return Status{}, ErrMigrationRunning
	}
	m.running = true
	m.mu.Unlock()

	candidates, err := m.CandidateDocuments(ctx, workspaceID)
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return Status{}, err
	}

	track := newTracker(workspaceID, len(candidates), dryRun)

	if dryRun {
		track.finish()
		m.mu.Lock()
		m.track = track
		m.running = false
		m.mu.Unlock()
		m.log.Info("migration dry run",
			"workspace_id", workspaceID,
			"candidates", len(candidates))
		return track.snapshot(), nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.mu.Lock()
	m.cancel = cancel
	m.track = track
	m.done = done
	m.mu.Unlock()

	m.publisher.Publish(events.Event{
		Type:        events.TypeMigrationStarted,
		At:          time.Now().UTC(),
		WorkspaceID: workspaceID,
		Detail:      fmt.Sprintf("%d candidates", len(candidates)),
	})
	m.log.Info("migration started", "workspace_id", workspaceID, "candidates", len(candidates))

	go m.run(runCtx, workspaceID, candidates, track, done)
	return track.snapshot(), nil
}

func (m *Migrator) run(ctx context.Context, workspaceID string, candidates []*core.DocumentEntry, track *tracker, done chan struct{}) {
	defer close(done)
	defer func() {
		track.finish()
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()

		status := track.snapshot()
		m.publisher.Publish(events.Event{
			Type:        events.TypeMigrationFinished,
			At:          time.Now().UTC(),
			WorkspaceID: workspaceID,
			Detail:      fmt.Sprintf("%d done, %d failed of %d", status.Done, status.Failed, status.Total),
		})
		m.log.Info("migration finished",
			"workspace_id", workspaceID,
			"done", status.Done,
			"failed", status.Failed,
			"total", status.Total)
	}()

	for start := 0; start < len(candidates); start += m.config.BatchSize {
		if ctx.Err() != nil {
			// Cancelled: stop scheduling, keep the counts accumulated so far.
			m.log.Info("migration cancelled", "workspace_id", workspaceID)
			return
		}

		end := start + m.config.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.config.Parallelism)
		for _, entry := range batch {
			entry := entry
			g.Go(func() error {
				err := m.migrateOne(gctx, entry)
				track.document(err)
				if err != nil {
					m.log.Warn("document migration failed",
						"workspace_id", entry.WorkspaceID,
						"source_id", entry.SourceID,
						"error", err)
				}
				// Per-document failures never abort the run.
				return nil
			})
		}
		g.Wait()

		status := track.snapshot()
		m.publisher.Publish(events.Event{
			Type:        events.TypeMigrationProgress,
			At:          time.Now().UTC(),
			WorkspaceID: workspaceID,
			Detail:      fmt.Sprintf("%d/%d", status.Done+status.Failed, status.Total),
		})
	}
}

// migrateOne re-fetches and re-indexes a single document.
func (m *Migrator) migrateOne(ctx context.Context, entry *core.DocumentEntry) error {
	var raw *source.RawDocument
	err := RetryWithBackoff(ctx, func() error {
		var fetchErr error
		raw, fetchErr = m.connector.FetchRaw(ctx, entry.SourceID)
		return fetchErr
	}, m.config.FetchAttempts, m.config.FetchBackoff)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", entry.SourceID, err)
	}

	return m.indexer.IndexDocument(ctx, entry.WorkspaceID, entry.SourceID,
		raw.SourceType, raw.Title, raw.Content, raw.ModifiedAt)
}

// Status returns the most recent run's progress. The zero Status means no
// migration has run yet.
func (m *Migrator) Status() Status {
	m.mu.Lock()
	track := m.track
	m.mu.Unlock()
	if track == nil {
		return Status{}
	}
	return track.snapshot()
}

// Cancel stops an in-flight migration after the current batch drains.
// Completed counts are preserved. No-op when nothing is running.
func (m *Migrator) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the current migration finishes or ctx expires.
func (m *Migrator) Wait(ctx context.Context) error {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
