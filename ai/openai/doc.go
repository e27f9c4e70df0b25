// Package openai implements the ai package interfaces against
// OpenAI-compatible HTTP APIs (Ollama, LocalAI, vLLM, OpenAI).
//
// The embedders wrap langchaingo's embedding client; the scanner and
// summarizer drive a chat model with strict JSON-mode prompts and repair
// common formatting mistakes in model output before parsing.
package openai
