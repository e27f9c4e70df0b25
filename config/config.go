package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/ingestion"
)

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the daemon configuration. The zero value is not usable; start
// from Default and overlay a file with Load.
type Config struct {
	// DataDir holds the durable state: the key-value store and the keyword
	// index live under it.
	DataDir string `toml:"data_dir"`

	Logging   Logging           `toml:"logging"`
	AI        AI                `toml:"ai"`
	Queue     Queue             `toml:"queue"`
	Workers   map[string]Worker `toml:"workers"`
	Migration Migration         `toml:"migration"`
}

// Logging controls the slog handler.
type Logging struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// AI configures the embedding, scanning, and summarization backends.
type AI struct {
	LocalHost           string `toml:"local_host"`
	LocalEmbeddingModel string `toml:"local_embedding_model"`
	CloudHost           string `toml:"cloud_host"`
	CloudEmbeddingModel string `toml:"cloud_embedding_model"`
	CloudAPIKey         string `toml:"cloud_api_key"`
	ScannerModel        string `toml:"scanner_model"`
	SummarizerModel     string `toml:"summarizer_model"`
}

// Queue tunes the durable work queue shared by all stages.
type Queue struct {
	MaxAttempts    int `toml:"max_attempts"`
	PollIntervalMS int `toml:"poll_interval_ms"`

	// ProcessedTTLHours is the retention window for idempotency marks.
	ProcessedTTLHours int `toml:"processed_ttl_hours"`
}

// Worker overrides one stage's worker profile. Zero fields keep the default.
type Worker struct {
	Concurrency int `toml:"concurrency"`
	LockSeconds int `toml:"lock_seconds"`
}

// Migration tunes the re-embedding manager.
type Migration struct {
	BatchSize   int `toml:"batch_size"`
	Parallelism int `toml:"parallelism"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		DataDir: defaultDataDir(),
		Logging: Logging{Level: "info"},
		AI: AI{
			LocalHost:           aiDefaults.LocalHost,
			LocalEmbeddingModel: aiDefaults.LocalEmbeddingModel,
			CloudHost:           aiDefaults.CloudHost,
			CloudEmbeddingModel: aiDefaults.CloudEmbeddingModel,
			ScannerModel:        aiDefaults.ScannerModel,
			SummarizerModel:     aiDefaults.SummarizerModel,
		},
		Queue: Queue{
			MaxAttempts:       5,
			PollIntervalMS:    250,
			ProcessedTTLHours: 24,
		},
		Migration: Migration{
			BatchSize:   50,
			Parallelism: 2,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".indexit"
	}
	return filepath.Join(home, ".indexit")
}

// Load reads path and overlays it onto the defaults. A missing file is not
// an error: the defaults are returned as-is. An empty path loads
// <data_dir>/config.toml only if it exists.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.toml")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values and stage names.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("%w: queue.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Queue.PollIntervalMS < 1 {
		return fmt.Errorf("%w: queue.poll_interval_ms must be at least 1", ErrInvalidConfig)
	}
	if c.Queue.ProcessedTTLHours < 1 {
		return fmt.Errorf("%w: queue.processed_ttl_hours must be at least 1", ErrInvalidConfig)
	}
	if c.Migration.BatchSize < 1 {
		return fmt.Errorf("%w: migration.batch_size must be at least 1", ErrInvalidConfig)
	}
	if c.Migration.Parallelism < 1 {
		return fmt.Errorf("%w: migration.parallelism must be at least 1", ErrInvalidConfig)
	}
	for name, worker := range c.Workers {
		if !ingestion.ParseStage(name).Valid() {
			return fmt.Errorf("%w: unknown stage %q in workers", ErrInvalidConfig, name)
		}
		if worker.Concurrency < 0 || worker.LockSeconds < 0 {
			return fmt.Errorf("%w: workers.%s values must not be negative", ErrInvalidConfig, name)
		}
	}
	return nil
}

// StorePath is the location of the key-value store.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "store")
}

// KeywordIndexPath is the location of the full-text index.
func (c *Config) KeywordIndexPath() string {
	return filepath.Join(c.DataDir, "keywords.db")
}

// PollInterval returns the queue dispatcher poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Queue.PollIntervalMS) * time.Millisecond
}

// ProcessedTTL returns the idempotency mark retention window.
func (c *Config) ProcessedTTL() time.Duration {
	return time.Duration(c.Queue.ProcessedTTLHours) * time.Hour
}

// AIConfig converts the file representation into the ai package's Config.
func (c *Config) AIConfig() *ai.Config {
	return &ai.Config{
		LocalHost:           c.AI.LocalHost,
		LocalEmbeddingModel: c.AI.LocalEmbeddingModel,
		CloudHost:           c.AI.CloudHost,
		CloudEmbeddingModel: c.AI.CloudEmbeddingModel,
		CloudAPIKey:         c.AI.CloudAPIKey,
		ScannerModel:        c.AI.ScannerModel,
		SummarizerModel:     c.AI.SummarizerModel,
	}
}

// WorkerProfiles merges the file's per-stage overrides onto the default
// worker profiles.
func (c *Config) WorkerProfiles() map[ingestion.Stage]ingestion.WorkerProfile {
	profiles := ingestion.DefaultProfiles()
	for name, worker := range c.Workers {
		stage := ingestion.ParseStage(name)
		if !stage.Valid() {
			continue
		}
		profile := profiles[stage]
		if worker.Concurrency > 0 {
			profile.Concurrency = worker.Concurrency
		}
		if worker.LockSeconds > 0 {
			profile.LockDuration = time.Duration(worker.LockSeconds) * time.Second
		}
		profiles[stage] = profile
	}
	return profiles
}
