package ai

import (
	"context"

	"github.com/poiesic/indexit/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ScanResult is the sensitive-content scanner's verdict for a batch of
// chunk texts.
type ScanResult struct {
	// RecommendedTrust is the trust level the scanner considers appropriate
	// for the scanned content. Never lower than the level scanned under.
	RecommendedTrust core.TrustLevel

	// ShouldUpgrade reports whether RecommendedTrust is stricter than the
	// level the content was scanned under.
	ShouldUpgrade bool

	// DetectedPatterns names the sensitive-content categories that triggered
	// the recommendation, e.g. "credential", "pii_ssn".
	DetectedPatterns []string
}

// Scanner classifies chunk texts for sensitive content and may recommend a
// trust-level upgrade for the owning workspace.
// Implementations must be thread-safe for concurrent use.
type Scanner interface {
	// Scan classifies the given chunk texts against the current trust level.
	// Returns an error if classification fails; callers treat scanner errors
	// as non-fatal and continue with the unmodified trust level.
	Scan(ctx context.Context, texts []string, current core.TrustLevel) (*ScanResult, error)
}

// Summarizer produces a short summary of document content, used by the
// optional enrichment step.
// Implementations must be thread-safe for concurrent use.
type Summarizer interface {
	// Summarize returns a summary of the given content.
	Summarize(ctx context.Context, content string) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider owns one embedder per embedding backend plus the
// scanner and summarizer, ensuring they share configuration appropriately.
type Provider interface {
	// Embedder returns the embedding service for the given backend.
	// The returned Embedder is safe for concurrent use.
	Embedder(provider core.EmbeddingProvider) Embedder

	// Scanner returns the sensitive-content scanner.
	Scanner() Scanner

	// Summarizer returns the document summarizer.
	Summarizer() Summarizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
