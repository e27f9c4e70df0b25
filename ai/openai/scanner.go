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
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Scanner implements ai.Scanner using an OpenAI-compatible chat API for
// sensitive-content classification.
type Scanner struct {
	client llms.Model
	logger *slog.Logger
}

// verdict is an internal type used for JSON unmarshaling.
// It matches the structure expected from the classifier model.
type verdict struct {
	TrustLevel string   `json:"trust_level"`
	Patterns   []string `json:"patterns"`
}

// maxScanChars bounds how much chunk text is sent to the classifier per call.
const maxScanChars = 8000

// newScanner is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newScanner(config *ai.Config) (*Scanner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.LocalHost),
		openai.WithToken("none"),
		openai.WithModel(config.ScannerModel),
	)
	if err != nil {
		return nil, err
	}

	return &Scanner{
		client: client,
		logger: slog.Default().With("component", "openai-scanner"),
	}, nil
}

// NewScanner creates a sensitive-content scanner using the provided configuration.
//
// Returns ai.Scanner interface to enforce abstraction.
func NewScanner(config *ai.Config) (ai.Scanner, error) {
	return newScanner(config)
}

// Scan classifies chunk texts and recommends a trust level. The recommended
// level is never below the current one; the scanner can only tighten.
func (s *Scanner) Scan(ctx context.Context, texts []string, current core.TrustLevel) (*ai.ScanResult, error) {
	sample := sampleTexts(texts, maxScanChars)
	if sample == "" {
		return &ai.ScanResult{RecommendedTrust: current}, nil
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(scanSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(sample),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result verdict
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			s.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return nil, err
		}

		if len(response.Choices) < 1 {
			s.logger.Debug("no choices returned from model")
			return &ai.ScanResult{RecommendedTrust: current}, nil
		}

		responseText := stripCodeFences(response.Choices[0].Content)
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			s.logger.Warn("error parsing scanner response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		s.logger.Error("failed to parse scanner response after retries", "err", lastErr)
		return nil, lastErr
	}

	recommended := parseTrust(result.TrustLevel, current)
	if recommended < current {
		// Never loosen an existing classification.
		recommended = current
	}

	res := &ai.ScanResult{
		RecommendedTrust: recommended,
		ShouldUpgrade:    recommended > current,
		DetectedPatterns: normalizePatterns(result.Patterns),
	}

	s.logger.Debug("scan complete",
		"current", current.String(),
		"recommended", recommended.String(),
		"patterns", len(res.DetectedPatterns))

	return res, nil
}

// sampleTexts joins chunk texts into one classification input, capped at
// maxChars so arbitrarily large documents don't blow the model context.
func sampleTexts(texts []string, maxChars int) string {
	var b strings.Builder
	for _, text := range texts {
		if b.Len() >= maxChars {
			break
		}
		remaining := maxChars - b.Len()
		if len(text) > remaining {
			text = text[:remaining]
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func parseTrust(s string, fallback core.TrustLevel) core.TrustLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return core.TrustPublic
	case "internal":
		return core.TrustInternal
	case "regulated":
		return core.TrustRegulated
	default:
		return fallback
	}
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, strings.ReplaceAll(p, " ", "_"))
	}
	return out
}

// stripCodeFences removes markdown code fences if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
