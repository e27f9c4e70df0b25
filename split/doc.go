// Package split defines the chunk-splitter boundary of the ingestion
// pipeline and provides a recursive-character implementation built on
// langchaingo's text splitters.
package split
