// Package ai defines the interfaces for the external AI collaborators used
// during ingestion: text embedders, the sensitive-content scanner, and the
// document summarizer.
//
// The package also owns the embedding provider routing rule (SelectProvider),
// the single pure function every call site consults when deciding whether a
// workspace's content may be embedded by the cloud backend.
//
// Concrete implementations live in subpackages:
//   - ai/openai: OpenAI-compatible API clients (Ollama, LocalAI, vLLM, OpenAI)
//   - ai/mock: deterministic test doubles
package ai
