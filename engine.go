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


package indexit

import (
	"log/slog"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/ai/openai"
	"github.com/poiesic/indexit/config"
	"github.com/poiesic/indexit/events"
	"github.com/poiesic/indexit/indexer"
	"github.com/poiesic/indexit/ingestion"
	"github.com/poiesic/indexit/lexical"
	"github.com/poiesic/indexit/queue"
	"github.com/poiesic/indexit/reembed"
	"github.com/poiesic/indexit/search"
	"github.com/poiesic/indexit/source"
	"github.com/poiesic/indexit/split"
	"github.com/poiesic/indexit/storage"
	"github.com/poiesic/indexit/storage/badger"
	"github.com/poiesic/indexit/vector"
)

// Engine owns the full stack: the key-value store and its repositories, the
// durable queue, both indexes, the AI provider, and the pipeline built on
// top of them. Components share one store instance and close together.
type Engine struct {
	cfg *config.Config

	backend    *badger.Backend
	documents  storage.DocumentRepository
	workspaces storage.WorkspaceRepository
	points     storage.PointRepository
	processed  storage.ProcessedStore
	jobs       queue.Queue
	keywords   *lexical.Index
	provider   ai.Provider
	vectors    vector.Service
	indexer    *indexer.Indexer
	connector  source.Connector
	publisher  events.Publisher
	logger     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider  ai.Provider
	connector source.Connector
	publisher events.Publisher
	logger    *slog.Logger
	inMemory  bool
}

// WithProvider injects an AI provider instead of building one from the
// configuration. Test suites pass the mock provider here.
func WithProvider(provider ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithConnector sets the document source the pipeline fetches from.
// Default is an empty in-memory connector.
func WithConnector(connector source.Connector) EngineOption {
	return func(o *engineOptions) {
		o.connector = connector
	}
}

// WithPublisher sets the event publisher shared by all components.
func WithPublisher(publisher events.Publisher) EngineOption {
	return func(o *engineOptions) {
		o.publisher = publisher
	}
}

// WithEngineLogger sets a custom logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithInMemoryStorage keeps the key-value store and the keyword index in
// memory. Intended for tests and one-shot runs.
func WithInMemoryStorage() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// NewEngine opens storage under cfg's data directory and wires the stack.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	options := &engineOptions{
		connector: source.NewStatic(),
		publisher: events.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	storePath := cfg.StorePath()
	keywordPath := cfg.KeywordIndexPath()
	if options.inMemory {
		storePath = ""
		keywordPath = ""
	}

	backend, err := badger.OpenBackend(storePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	documents, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	workspaces, err := badger.NewWorkspaceRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	points, err := badger.NewPointRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	processed, err := badger.NewProcessedStore(backend, cfg.ProcessedTTL())
	if err != nil {
		backend.Close()
		return nil, err
	}

	jobs, err := queue.NewDurable(backend,
		queue.WithMaxAttempts(cfg.Queue.MaxAttempts),
		queue.WithPollInterval(cfg.PollInterval()),
		queue.WithLogger(options.logger))
	if err != nil {
		backend.Close()
		return nil, err
	}

	keywords, err := lexical.Open(keywordPath)
	if err != nil {
		jobs.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			keywords.Close()
			jobs.Close()
			backend.Close()
			return nil, err
		}
	}

	vectors, err := vector.NewLocal(provider, points, vector.WithLogger(options.logger))
	if err != nil {
		provider.Close()
		keywords.Close()
		jobs.Close()
		backend.Close()
		return nil, err
	}

	ix, err := indexer.New(documents, workspaces, vectors, keywords, split.NewRecursive(),
		indexer.WithPublisher(options.publisher),
		indexer.WithLogger(options.logger))
	if err != nil {
		provider.Close()
		keywords.Close()
		jobs.Close()
		backend.Close()
		return nil, err
	}

	return &Engine{
		cfg:        cfg,
		backend:    backend,
		documents:  documents,
		workspaces: workspaces,
		points:     points,
		processed:  processed,
		jobs:       jobs,
		keywords:   keywords,
		provider:   provider,
		vectors:    vectors,
		indexer:    ix,
		connector:  options.connector,
		publisher:  options.publisher,
		logger:     options.logger,
	}, nil
}

// Close shuts down the stack. Components close in reverse wiring order so
// nothing writes to a closed store.
func (e *Engine) Close() error {
	if err := e.jobs.Close(); err != nil {
		e.logger.Error("error closing work queue", "err", err)
	}
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	if err := e.keywords.Close(); err != nil {
		e.logger.Error("error closing keyword index", "err", err)
		return err
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing storage backend", "err", err)
		return err
	}
	return nil
}

// DocumentRepository exposes the document registry.
func (e *Engine) DocumentRepository() storage.DocumentRepository {
	return e.documents
}

// WorkspaceRepository exposes workspace trust and consent records.
func (e *Engine) WorkspaceRepository() storage.WorkspaceRepository {
	return e.workspaces
}

// Indexer exposes the direct indexing path.
func (e *Engine) Indexer() *indexer.Indexer {
	return e.indexer
}

// Queue exposes the durable work queue.
func (e *Engine) Queue() queue.Queue {
	return e.jobs
}

// NewPipeline builds the staged ingestion pipeline over the engine's
// components. Worker profiles come from the configuration.
func (e *Engine) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{
		ingestion.WithPublisher(e.publisher),
		ingestion.WithLogger(e.logger),
	}
	for stage, profile := range e.cfg.WorkerProfiles() {
		base = append(base, ingestion.WithProfile(stage, profile))
	}

	return ingestion.New(ingestion.Deps{
		Queue:      e.jobs,
		Connector:  e.connector,
		Splitter:   split.NewRecursive(),
		Provider:   e.provider,
		Vectors:    e.vectors,
		Keywords:   e.keywords,
		Indexer:    e.indexer,
		Documents:  e.documents,
		Workspaces: e.workspaces,
		Processed:  e.processed,
	}, append(base, opts...)...)
}

// NewSearcher builds a hybrid searcher over the engine's indexes.
func (e *Engine) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	base := []search.Option{search.WithLogger(e.logger)}
	return search.NewSearcher(e.vectors, e.keywords, e.workspaces, e.provider, append(base, opts...)...)
}

// NewMigrator builds the re-embedding manager over the engine's components.
func (e *Engine) NewMigrator(opts ...reembed.Option) (*reembed.Migrator, error) {
	cfg := reembed.DefaultConfig()
	cfg.BatchSize = e.cfg.Migration.BatchSize
	cfg.Parallelism = e.cfg.Migration.Parallelism

	base := []reembed.Option{
		reembed.WithPublisher(e.publisher),
		reembed.WithLogger(e.logger),
	}
	return reembed.New(e.documents, e.connector, e.indexer, cfg, append(base, opts...)...)
}
