package ai

import (
	"fmt"
	"testing"

	"github.com/poiesic/indexit/core"
	"github.com/stretchr/testify/assert"
)

func TestSelectProvider(t *testing.T) {
	tests := []struct {
		trust        core.TrustLevel
		preferCloud  bool
		cloudConsent bool
		want         core.EmbeddingProvider
	}{
		// public: preference alone is enough
		{core.TrustPublic, false, false, core.ProviderLocal},
		{core.TrustPublic, false, true, core.ProviderLocal},
		{core.TrustPublic, true, false, core.ProviderCloud},
		{core.TrustPublic, true, true, core.ProviderCloud},

		// internal: preference plus consent
		{core.TrustInternal, false, false, core.ProviderLocal},
		{core.TrustInternal, false, true, core.ProviderLocal},
		{core.TrustInternal, true, false, core.ProviderLocal},
		{core.TrustInternal, true, true, core.ProviderCloud},

		// regulated: always local
		{core.TrustRegulated, false, false, core.ProviderLocal},
		{core.TrustRegulated, false, true, core.ProviderLocal},
		{core.TrustRegulated, true, false, core.ProviderLocal},
		{core.TrustRegulated, true, true, core.ProviderLocal},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s_prefer=%v_consent=%v", tt.trust, tt.preferCloud, tt.cloudConsent)
		t.Run(name, func(t *testing.T) {
			got := SelectProvider(tt.trust, tt.preferCloud, tt.cloudConsent)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectProviderDefaultsLocal(t *testing.T) {
	// An unknown trust level must never route to the cloud.
	got := SelectProvider(core.TrustLevel(0), true, true)
	assert.Equal(t, core.ProviderLocal, got)
}
