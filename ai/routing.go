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

import "github.com/poiesic/indexit/core"

// SelectProvider decides which embedding backend may handle content of the
// given trust level. It is the single routing rule shared by the staged
// pipeline, the direct indexing path, and the migration manager.
//
// The cloud backend is used only when the workspace prefers it AND the trust
// level allows it: public content needs preference alone, internal content
// additionally needs explicit cloud consent. Regulated content is always
// embedded locally, regardless of preference or consent.
func SelectProvider(trust core.TrustLevel, preferCloud, cloudConsent bool) core.EmbeddingProvider {
	if trust == core.TrustRegulated {
		return core.ProviderLocal
	}
	if trust == core.TrustPublic && preferCloud {
		return core.ProviderCloud
	}
	if trust == core.TrustInternal && preferCloud && cloudConsent {
		return core.ProviderCloud
	}
	return core.ProviderLocal
}
