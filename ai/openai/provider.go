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


package openai

import (
	"errors"
	"log/slog"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/core"
)

// ErrCloudNotConfigured indicates the cloud embedding backend is missing
// host, model, or API key configuration.
var ErrCloudNotConfigured = errors.New("cloud embedding backend not configured")

// Provider aggregates the OpenAI-compatible AI services: one embedder per
// embedding backend plus the scanner and summarizer.
type Provider struct {
	local      *Embedder
	cloud      *Embedder
	scanner    *Scanner
	summarizer *Summarizer
	logger     *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a provider with all services configured from config.
// The cloud embedder is only created when the cloud backend is fully
// configured; otherwise cloud routing degrades to the local embedder.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	local, err := newEmbedder(config.LocalHost, "", config.LocalEmbeddingModel, "openai-embedder-local")
	if err != nil {
		return nil, err
	}

	var cloud *Embedder
	if config.CloudConfigured() {
		cloud, err = newEmbedder(config.CloudHost, config.CloudAPIKey, config.CloudEmbeddingModel, "openai-embedder-cloud")
		if err != nil {
			return nil, err
		}
	}

	scanner, err := newScanner(config)
	if err != nil {
		return nil, err
	}

	summarizer, err := newSummarizer(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		local:      local,
		cloud:      cloud,
		scanner:    scanner,
		summarizer: summarizer,
		logger:     slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the embedder for the given backend. When the cloud backend
// is not configured, cloud requests fall back to the local embedder.
func (p *Provider) Embedder(provider core.EmbeddingProvider) ai.Embedder {
	if provider == core.ProviderCloud && p.cloud != nil {
		return p.cloud
	}
	if provider == core.ProviderCloud {
		p.logger.Warn("cloud embedder requested but not configured, using local")
	}
	return p.local
}

// Scanner returns the sensitive-content scanner.
func (p *Provider) Scanner() ai.Scanner {
	return p.scanner
}

// Summarizer returns the document summarizer.
func (p *Provider) Summarizer() ai.Summarizer {
	return p.summarizer
}

// Close releases resources held by the provider.
// The underlying HTTP clients hold no persistent connections to release.
func (p *Provider) Close() error {
	return nil
}
