// Package queue provides a durable, at-least-once work queue backed by the
// embedded key-value store. Jobs survive process restarts: waiting jobs are
// kept in a ready index ordered by their ready time, active jobs hold a
// lease that is renewed while the handler runs, and a reaper returns jobs
// with expired leases to the waiting state. Jobs that exhaust their attempt
// budget are parked as failed and can be retried in bulk.
package queue
