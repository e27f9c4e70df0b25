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


package ai

import (
	"errors"
	"strings"

	"github.com/poiesic/indexit/core"
)

// Config holds configuration for AI service providers.
type Config struct {
	// LocalHost is the base URL for the local OpenAI-compatible service used
	// for embeddings, scanning, and summarization.
	// Example: "http://localhost:11434/v1"
	LocalHost string

	// LocalEmbeddingModel is the model identifier for local embeddings.
	// Example: "embeddinggemma"
	LocalEmbeddingModel string

	// CloudHost is the base URL for the hosted embedding service. Only used
	// for workspaces whose trust level and consent permit cloud embedding.
	CloudHost string

	// CloudEmbeddingModel is the model identifier for cloud embeddings.
	// Example: "text-embedding-3-small"
	CloudEmbeddingModel string

	// CloudAPIKey authenticates against the cloud service.
	CloudAPIKey string

	// ScannerModel is the model identifier for sensitive-content
	// classification on the local service.
	// Example: "qwen2.5:3b"
	ScannerModel string

	// SummarizerModel is the model identifier for document summarization on
	// the local service.
	SummarizerModel string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithLocalHost sets the local service host URL.
func WithLocalHost(host string) ConfigOption {
	return func(c *Config) {
		c.LocalHost = host
	}
}

// WithLocalEmbeddingModel sets the local embedding model identifier.
func WithLocalEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.LocalEmbeddingModel = model
	}
}

// WithCloudHost sets the cloud service host URL.
func WithCloudHost(host string) ConfigOption {
	return func(c *Config) {
		c.CloudHost = host
	}
}

// WithCloudEmbeddingModel sets the cloud embedding model identifier.
func WithCloudEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.CloudEmbeddingModel = model
	}
}

// WithCloudAPIKey sets the cloud service API key.
func WithCloudAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.CloudAPIKey = key
	}
}

// WithScannerModel sets the sensitive-content classification model.
func WithScannerModel(model string) ConfigOption {
	return func(c *Config) {
		c.ScannerModel = model
	}
}

// WithSummarizerModel sets the summarization model.
func WithSummarizerModel(model string) ConfigOption {
	return func(c *Config) {
		c.SummarizerModel = model
	}
}

// DefaultConfig returns a Config with sensible defaults for local
// OpenAI-compatible services. The defaults match the current local embedding
// spec so freshly indexed documents are not immediate migration candidates.
func DefaultConfig() *Config {
	return &Config{
		LocalHost:           "http://localhost:11434/v1",
		LocalEmbeddingModel: core.CurrentSpec(core.ProviderLocal).Model,
		CloudHost:           "https://api.openai.com/v1",
		CloudEmbeddingModel: core.CurrentSpec(core.ProviderCloud).Model,
		ScannerModel:        "qwen2.5:3b",
		SummarizerModel:     "qwen2.5:3b",
	}
}

// NewConfig creates a Config with the default values and applies the provided
// options. This is the recommended way to create a Config with custom settings.
//
// Example:
//
//	cfg := NewConfig(
//	    WithLocalHost("http://localhost:11434/v1"),
//	    WithLocalEmbeddingModel("embeddinggemma"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.LocalHost = normalizeHost(c.LocalHost)
	c.CloudHost = normalizeHost(c.CloudHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.LocalHost == "" {
		return errors.New("ai config: LocalHost is required")
	}
	if c.LocalEmbeddingModel == "" {
		return errors.New("ai config: LocalEmbeddingModel is required")
	}
	if c.ScannerModel == "" {
		return errors.New("ai config: ScannerModel is required")
	}
	if c.SummarizerModel == "" {
		return errors.New("ai config: SummarizerModel is required")
	}
	return nil
}

// CloudConfigured reports whether the cloud backend has enough configuration
// to be used. An unconfigured cloud backend degrades to local-only routing.
func (c *Config) CloudConfigured() bool {
	return c.CloudHost != "" && c.CloudEmbeddingModel != "" && c.CloudAPIKey != ""
}
