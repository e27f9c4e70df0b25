package mock

import (
	"context"
	"sync"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/core"
)

// MockScanner is a test double for ai.Scanner.
// It allows custom behavior injection via a function field.
type MockScanner struct {
	// ScanFunc is called by Scan if set.
	// If nil, the scanner reports no upgrade for the current trust level.
	ScanFunc func(ctx context.Context, texts []string, current core.TrustLevel) (*ai.ScanResult, error)

	mu        sync.Mutex
	callCount int
	lastTexts []string
}

// NewMockScanner creates a mock scanner that recommends no change by default.
func NewMockScanner() *MockScanner {
	return &MockScanner{}
}

// Scan records the call and delegates to ScanFunc or the default behavior.
func (m *MockScanner) Scan(ctx context.Context, texts []string, current core.TrustLevel) (*ai.ScanResult, error) {
	m.mu.Lock()
	m.callCount++
	m.lastTexts = texts
	m.mu.Unlock()

	if m.ScanFunc != nil {
		return m.ScanFunc(ctx, texts, current)
	}

	return &ai.ScanResult{RecommendedTrust: current}, nil
}

// CallCount returns the number of times Scan was called.
func (m *MockScanner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastTexts returns the texts passed to the most recent Scan call.
func (m *MockScanner) LastTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTexts
}

// Reset clears the call count and any injected behavior.
func (m *MockScanner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastTexts = nil
	m.ScanFunc = nil
}
