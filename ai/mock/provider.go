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


package mock

import (
	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/core"
)

// MockProvider is a test double for ai.Provider.
// It aggregates mock instances of every AI service, with separate embedders
// for the local and cloud backends so tests can assert on routing.
type MockProvider struct {
	local      *MockEmbedder
	cloud      *MockEmbedder
	scanner    *MockScanner
	summarizer *MockSummarizer
}

var _ ai.Provider = (*MockProvider)(nil)

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns the concrete type so tests can reach the underlying mocks for
// behavior injection and call-count assertions.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		local:      NewMockEmbedder(),
		cloud:      NewMockEmbedder(),
		scanner:    NewMockScanner(),
		summarizer: NewMockSummarizer(),
	}
}

// Embedder returns the mock embedder for the given backend.
func (p *MockProvider) Embedder(provider core.EmbeddingProvider) ai.Embedder {
	if provider == core.ProviderCloud {
		return p.cloud
	}
	return p.local
}

// Scanner returns the mock scanner.
func (p *MockProvider) Scanner() ai.Scanner {
	return p.scanner
}

// Summarizer returns the mock summarizer.
func (p *MockProvider) Summarizer() ai.Summarizer {
	return p.summarizer
}

// Close is a no-op for the mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// LocalEmbedder returns the concrete local mock for test assertions.
func (p *MockProvider) LocalEmbedder() *MockEmbedder {
	return p.local
}

// CloudEmbedder returns the concrete cloud mock for test assertions.
func (p *MockProvider) CloudEmbedder() *MockEmbedder {
	return p.cloud
}

// MockScanner returns the concrete scanner mock for test assertions.
func (p *MockProvider) MockScanner() *MockScanner {
	return p.scanner
}

// MockSummarizer returns the concrete summarizer mock for test assertions.
func (p *MockProvider) MockSummarizer() *MockSummarizer {
	return p.summarizer
}
