// Package ingestion drives documents through a six-stage chain on top of
// the durable work queue: fetch, chunk, scan, embed, index, enrich. Each
// stage completion enqueues the next stage for the same content version,
// keyed by an idempotency key derived from workspace, source, stage and
// content fingerprint so duplicate submissions and crash replays collapse
// into a single execution. Fetch, chunk, embed and index failures are
// retried by the queue; scan and enrich failures are advisory and never
// block a document from becoming searchable.
package ingestion
