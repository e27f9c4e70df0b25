// Package reembed migrates documents between embedding model versions. A
// migration inventories documents whose stored embedding metadata lags the
// current spec, then re-fetches and re-indexes them in bounded-parallel
// batches through the same verify-and-swap commit protocol the pipeline
// uses, so searchability is never interrupted mid-migration.
package reembed
