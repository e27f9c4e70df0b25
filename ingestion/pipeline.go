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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/events"
	"github.com/poiesic/indexit/indexer"
	"github.com/poiesic/indexit/lexical"
	"github.com/poiesic/indexit/queue"
	"github.com/poiesic/indexit/source"
	"github.com/poiesic/indexit/split"
	"github.com/poiesic/indexit/storage"
	"github.com/poiesic/indexit/vector"
)

// failureThreshold is how many cumulative stage failures flip the pipeline's
// health report to unhealthy.
const failureThreshold = 100

// Deps carries the pipeline's collaborators. All fields are required.
type Deps struct {
	Queue      queue.Queue
	Connector  source.Connector
	Splitter   split.Splitter
	Provider   ai.Provider
	Vectors    vector.Service
	Keywords   *lexical.Index
	Indexer    *indexer.Indexer
	Documents  storage.DocumentRepository
	Workspaces storage.WorkspaceRepository
	Processed  storage.ProcessedStore
}

func (d Deps) validate() error {
	switch {
	case d.Queue == nil:
		return fmt.Errorf("ingestion: queue is required")
	case d.Connector == nil:
		return fmt.Errorf("ingestion: connector is required")
	case d.Splitter == nil:
		return fmt.Errorf("ingestion: splitter is required")
	case d.Provider == nil:
		return fmt.Errorf("ingestion: provider is required")
	case d.Vectors == nil:
		return fmt.Errorf("ingestion: vector service is required")
	case d.Keywords == nil:
		return fmt.Errorf("ingestion: keyword index is required")
	case d.Indexer == nil:
		return fmt.Errorf("ingestion: indexer is required")
	case d.Documents == nil:
		return fmt.Errorf("ingestion: document repository is required")
	case d.Workspaces == nil:
		return fmt.Errorf("ingestion: workspace repository is required")
	case d.Processed == nil:
		return fmt.Errorf("ingestion: processed store is required")
	}
	return nil
}

// Pipeline drives documents through the stage chain on top of the durable
// work queue.
type Pipeline struct {
	deps      Deps
	publisher events.Publisher
	profiles  map[Stage]WorkerProfile
	metrics   *Metrics
	log       *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPublisher sets the event publisher. Defaults to a no-op publisher.
func WithPublisher(p events.Publisher) Option {
	return func(pl *Pipeline) error {
		if p == nil {
			return fmt.Errorf("ingestion: publisher cannot be nil")
		}
		pl.publisher = p
		return nil
	}
}

// WithProfile overrides one stage's worker profile.
func WithProfile(stage Stage, profile WorkerProfile) Option {
	return func(pl *Pipeline) error {
		if !stage.Valid() {
			return fmt.Errorf("%w: %d", ErrUnknownStage, stage)
		}
		if profile.Concurrency < 1 || profile.LockDuration <= 0 {
			return fmt.Errorf("ingestion: invalid profile for stage %s", stage)
		}
		pl.profiles[stage] = profile
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(pl *Pipeline) error {
		if log == nil {
			return fmt.Errorf("ingestion: logger cannot be nil")
		}
		pl.log = log.With("component", "pipeline")
		return nil
	}
}

// New creates a Pipeline. Run must be called before documents flow.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	pl := &Pipeline{
		deps:      deps,
		publisher: events.Nop{},
		profiles:  DefaultProfiles(),
		metrics:   NewMetrics(),
		log:       slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		if err := opt(pl); err != nil {
			return nil, err
		}
	}
	return pl, nil
}

// Run registers every stage's workers with the queue. It returns once the
// workers are registered; processing happens on the queue's goroutines.
func (p *Pipeline) Run() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPipelineClosed
	}
	if p.running {
		return ErrPipelineRunning
	}

	for _, stage := range Stages() {
		profile := p.profiles[stage]
		handler := p.handlerFor(stage)
		if err := p.deps.Queue.Process(stage.QueueName(), profile.Concurrency, profile.LockDuration, handler); err != nil {
			return fmt.Errorf("start stage %s: %w", stage, err)
		}
	}

	p.running = true
	p.log.Info("pipeline running", "stages", len(Stages()))
	return nil
}

func (p *Pipeline) handlerFor(stage Stage) queue.Handler {
	switch stage {
	case StageFetch:
		return p.wrap(stage, p.handleFetch)
	case StageChunk:
		return p.wrap(stage, p.handleChunk)
	case StageScan:
		return p.wrap(stage, p.handleScan)
	case StageEmbed:
		return p.wrap(stage, p.handleEmbed)
	case StageIndex:
		return p.wrap(stage, p.handleIndex)
	case StageEnrich:
		return p.wrap(stage, p.handleEnrich)
	default:
		// Stages() and this switch move together.
		panic(fmt.Sprintf("no handler for stage %d", stage))
	}
}

// IngestOption adjusts one submission.
type IngestOption func(*JobData)

// WithSkipEnrich turns the enrich stage into a no-op for this document,
// leaving it unsummarized.
func WithSkipEnrich() IngestOption {
	return func(d *JobData) { d.SkipEnrich = true }
}

// StartIngest enqueues the fetch stage for one document and returns the job
// ID. Duplicate submissions of unchanged content are suppressed after fetch
// compares fingerprints.
func (p *Pipeline) StartIngest(ctx context.Context, workspaceID, sourceID string, opts ...IngestOption) (string, error) {
	data := &JobData{
		Op:          OpIngest,
		WorkspaceID: workspaceID,
		SourceID:    sourceID,
		StartedAt:   time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(data)
	}
	payload, err := data.encode()
	if err != nil {
		return "", err
	}
	return p.deps.Queue.Enqueue(ctx, StageFetch.QueueName(), payload)
}

// StartDelete enqueues a soft delete for one document. Delete jobs ride the
// fetch queue but bypass the stage chain entirely.
func (p *Pipeline) StartDelete(ctx context.Context, workspaceID, sourceID string) (string, error) {
	data := &JobData{
		Op:          OpDelete,
		WorkspaceID: workspaceID,
		SourceID:    sourceID,
		StartedAt:   time.Now().UTC(),
	}
	payload, err := data.encode()
	if err != nil {
		return "", err
	}
	return p.deps.Queue.Enqueue(ctx, StageFetch.QueueName(), payload)
}

// StartFromStage re-injects a document mid-chain, used after crash recovery
// when an operator knows which stage to resume from. The job is tagged as
// recovered so stage logs can tell it apart.
func (p *Pipeline) StartFromStage(ctx context.Context, stage Stage, data *JobData) (string, error) {
	if !stage.Valid() {
		return "", fmt.Errorf("%w: %d", ErrUnknownStage, stage)
	}
	data.Recovered = true
	payload, err := data.encode()
	if err != nil {
		return "", err
	}
	return p.deps.Queue.Enqueue(ctx, stage.QueueName(), payload)
}

// StageHealth is one stage's slice of the health report.
type StageHealth struct {
	Queue    queue.Counts
	Counters StageSnapshot
}

// HealthReport summarizes pipeline state for operators.
type HealthReport struct {
	Healthy bool
	Stages  map[Stage]StageHealth
}

// Health reports queue depths and stage counters. The pipeline is unhealthy
// once any stage's cumulative failures exceed the failure threshold.
func (p *Pipeline) Health(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{Healthy: true, Stages: make(map[Stage]StageHealth, len(Stages()))}
	snapshot := p.metrics.Snapshot()

	for _, stage := range Stages() {
		counts, err := p.deps.Queue.Counts(ctx, stage.QueueName())
		if err != nil {
			return nil, fmt.Errorf("queue counts for %s: %w", stage, err)
		}
		counters := snapshot[stage]
		report.Stages[stage] = StageHealth{Queue: counts, Counters: counters}
		if counters.Failed > failureThreshold {
			report.Healthy = false
		}
	}
	return report, nil
}

// Metrics returns the pipeline's stage counters.
func (p *Pipeline) Metrics() *Metrics {
	return p.metrics
}

// DrainStage discards a stage's waiting jobs.
func (p *Pipeline) DrainStage(ctx context.Context, stage Stage) (int, error) {
	if !stage.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownStage, stage)
	}
	return p.deps.Queue.DrainWaiting(ctx, stage.QueueName())
}

// RetryStageFailures returns a stage's dead-lettered jobs to the queue.
func (p *Pipeline) RetryStageFailures(ctx context.Context, stage Stage) (int, error) {
	if !stage.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownStage, stage)
	}
	return p.deps.Queue.RetryFailed(ctx, stage.QueueName())
}

// Close stops accepting work. The queue itself is owned by the caller and
// closed separately.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.running = false
	p.log.Info("pipeline closed")
	return nil
}
