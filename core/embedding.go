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


package core

import "time"

// EmbeddingSpec describes one embedding configuration: the version string
// persisted alongside indexed documents plus the model identity behind it.
type EmbeddingSpec struct {
	Version    string
	Provider   EmbeddingProvider
	Model      string
	Dimensions int
}

// Current embedding specs per provider. Bump the version string whenever the
// model or dimensionality changes so existing documents become migration
// candidates.
var (
	currentLocalSpec = EmbeddingSpec{
		Version:    "local-embeddinggemma-768-v2",
		Provider:   ProviderLocal,
		Model:      "embeddinggemma",
		Dimensions: 768,
	}
	currentCloudSpec = EmbeddingSpec{
		Version:    "cloud-text-embedding-3-small-1536-v2",
		Provider:   ProviderCloud,
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
	}
)

// CurrentSpec returns the current embedding spec for the given provider.
func CurrentSpec(provider EmbeddingProvider) EmbeddingSpec {
	if provider == ProviderCloud {
		return currentCloudSpec
	}
	return currentLocalSpec
}

// Metadata builds the EmbeddingMetadata to persist after indexing chunkCount
// chunks under this spec.
func (s EmbeddingSpec) Metadata(chunkCount int, at time.Time) EmbeddingMetadata {
	return EmbeddingMetadata{
		Version:    s.Version,
		Provider:   s.Provider,
		Model:      s.Model,
		Dimensions: s.Dimensions,
		ChunkCount: chunkCount,
		CreatedAt:  at,
	}
}

// NeedsMigration reports whether a document carrying the given metadata must
// be re-embedded: metadata is absent, its version differs from the current
// spec for its provider, or its model no longer matches.
func NeedsMigration(meta EmbeddingMetadata) bool {
	if !meta.Present() {
		return true
	}
	spec := CurrentSpec(meta.Provider)
	return meta.Version != spec.Version || meta.Model != spec.Model
}
