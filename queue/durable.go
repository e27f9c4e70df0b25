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


package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	badgerstore "github.com/poiesic/indexit/storage/badger"
)

const (
	jobPrefix   = "qjob:"
	readyPrefix = "qrdy:"

	defaultMaxAttempts  = 5
	defaultPollInterval = 250 * time.Millisecond

	backoffBase = 3 * time.Second
	backoffCap  = 5 * time.Minute
)

// Handler processes one job. A nil return completes the job; an error
// reschedules it with backoff until its attempts are exhausted.
type Handler func(ctx context.Context, job *Job) error

// Queue is a durable at-least-once work queue.
type Queue interface {
	// Enqueue adds a job to the named queue and returns its ID.
	Enqueue(ctx context.Context, queueName string, payload []byte) (string, error)

	// Process registers a handler for the named queue and starts its workers.
	// At most concurrency jobs run at once; each attempt may run for up to
	// lockDuration before its context is cancelled.
	Process(queueName string, concurrency int, lockDuration time.Duration, handler Handler) error

	// Counts reports the job population of the named queue.
	Counts(ctx context.Context, queueName string) (Counts, error)

	// DrainWaiting removes all waiting jobs from the named queue and returns
	// how many were removed. Active jobs finish their current attempt.
	DrainWaiting(ctx context.Context, queueName string) (int, error)

	// RetryFailed returns all failed jobs of the named queue to the waiting
	// state with a fresh attempt budget.
	RetryFailed(ctx context.Context, queueName string) (int, error)

	// Running reports whether a processor is registered for the named queue.
	Running(queueName string) bool

	// Close stops dispatching, waits for in-flight handlers, and releases
	// the worker pools.
	Close() error
}

// Durable is the key-value-store-backed Queue implementation.
type Durable struct {
	backend *badgerstore.Backend
	log     *slog.Logger

	maxAttempts  int
	pollInterval time.Duration

	mu         sync.Mutex
	processors map[string]*processor
	completed  map[string]*atomic.Int64
	closed     bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ Queue = (*Durable)(nil)

type processor struct {
	queueName    string
	lockDuration time.Duration
	handler      Handler
	pool         *ants.Pool
}

// DurableOption configures a Durable queue.
type DurableOption func(*Durable)

// WithMaxAttempts sets the attempt budget for newly enqueued jobs.
func WithMaxAttempts(n int) DurableOption {
	return func(d *Durable) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithPollInterval sets how often the dispatcher checks for ready jobs.
func WithPollInterval(interval time.Duration) DurableOption {
	return func(d *Durable) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) DurableOption {
	return func(d *Durable) {
		if log != nil {
			d.log = log.With("component", "queue")
		}
	}
}

// NewDurable creates a durable queue on the shared storage backend.
func NewDurable(backend *badgerstore.Backend, opts ...DurableOption) (*Durable, error) {
	if backend == nil {
		return nil, fmt.Errorf("queue: backend is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Durable{
		backend:      backend,
		log:          slog.Default().With("component", "queue"),
		maxAttempts:  defaultMaxAttempts,
		pollInterval: defaultPollInterval,
		processors:   make(map[string]*processor),
		completed:    make(map[string]*atomic.Int64),
		baseCtx:      ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func jobKey(queueName, id string) []byte {
	return []byte(jobPrefix + queueName + ":" + id)
}

// readyKey orders waiting jobs by ready time. The timestamp is zero-padded
// so lexicographic iteration yields chronological order.
func readyKey(queueName string, readyAt time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", readyPrefix, queueName, readyAt.UnixMicro(), id))
}

func (d *Durable) Enqueue(ctx context.Context, queueName string, payload []byte) (string, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", ErrClosed
	}
	d.mu.Unlock()

	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.NewString(),
		Queue:       queueName,
		Payload:     payload,
		MaxAttempts: d.maxAttempts,
		State:       StateWaiting,
		EnqueuedAt:  now,
		ReadyAt:     now,
	}

	err := d.backend.Update(func(tx *badger.Txn) error {
		if err := writeJob(tx, job); err != nil {
			return err
		}
		return tx.Set(readyKey(queueName, job.ReadyAt, job.ID), nil)
	})
	if err != nil {
		return "", fmt.Errorf("enqueue to %s: %w", queueName, err)
	}

	d.log.Debug("job enqueued", "queue", queueName, "job_id", job.ID)
	return job.ID, nil
}

func (d *Durable) Process(queueName string, concurrency int, lockDuration time.Duration, handler Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}
	if lockDuration <= 0 {
		lockDuration = time.Minute
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, exists := d.processors[queueName]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessing, queueName)
	}

	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return fmt.Errorf("create worker pool for %s: %w", queueName, err)
	}

	proc := &processor{
		queueName:    queueName,
		lockDuration: lockDuration,
		handler:      handler,
		pool:         pool,
	}
	d.processors[queueName] = proc

	d.wg.Add(2)
	go d.dispatchLoop(proc)
	go d.reapLoop(proc)

	d.log.Info("queue processor started",
		"queue", queueName,
		"concurrency", concurrency,
		"lock_duration", lockDuration)
	return nil
}

func (d *Durable) Running(queueName string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.processors[queueName]
	return ok && !d.closed
}

// dispatchLoop claims ready jobs and hands them to the worker pool.
func (d *Durable) dispatchLoop(proc *processor) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.baseCtx.Done():
			return
		case <-ticker.C:
		}

		free := proc.pool.Free()
		if free <= 0 {
			continue
		}

		jobs, err := d.claimReady(proc, free)
		if err != nil {
			d.log.Error("claim ready jobs failed", "queue", proc.queueName, "error", err)
			continue
		}

		for _, job := range jobs {
			job := job
			if err := proc.pool.Submit(func() { d.runJob(proc, job) }); err != nil {
				// Pool saturated or released; return the claim.
				if relErr := d.releaseJob(proc.queueName, job, time.Now().UTC()); relErr != nil {
					d.log.Error("release unclaimed job failed",
						"queue", proc.queueName, "job_id", job.ID, "error", relErr)
				}
			}
		}
	}
}

// claimReady moves up to limit due jobs from waiting to active in one
// transaction.
func (d *Durable) claimReady(proc *processor, limit int) ([]*Job, error) {
	now := time.Now().UTC()
	var claimed []*Job

	err := d.backend.Update(func(tx *badger.Txn) error {
		claimed = claimed[:0]
		prefix := []byte(readyPrefix + proc.queueName + ":")
		cutoff := readyKey(proc.queueName, now, "")

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		var due [][]byte
		for it.Rewind(); it.Valid() && len(due) < limit; it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) >= string(cutoff) {
				break
			}
			due = append(due, key)
		}
		it.Close()

		for _, key := range due {
			id := string(key[len(key)-36:]) // uuid suffix

			job, err := readJob(tx, proc.queueName, id)
			if err != nil {
				// Orphaned index entry; drop it.
				d.log.Warn("dropping orphaned ready entry",
					"queue", proc.queueName, "job_id", id, "error", err)
				if delErr := tx.Delete(key); delErr != nil {
					return delErr
				}
				continue
			}

			job.State = StateActive
			job.Attempts++
			job.LeaseUntil = now.Add(proc.lockDuration)
			if err := writeJob(tx, job); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
			claimed = append(claimed, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// runJob executes the handler for one claimed job and settles the outcome.
func (d *Durable) runJob(proc *processor, job *Job) {
	ctx, cancel := context.WithTimeout(d.baseCtx, proc.lockDuration)
	defer cancel()

	// Renew the lease while the handler runs so the reaper does not hand
	// the job to another worker.
	renewDone := make(chan struct{})
	d.wg.Add(1)
	go d.renewLease(proc, job, renewDone)

	err := proc.handler(ctx, job)
	close(renewDone)

	if err == nil {
		if setErr := d.completeJob(proc.queueName, job); setErr != nil {
			d.log.Error("complete job failed",
				"queue", proc.queueName, "job_id", job.ID, "error", setErr)
			return
		}
		d.completedCounter(proc.queueName).Add(1)
		d.log.Debug("job completed", "queue", proc.queueName, "job_id", job.ID)
		return
	}

	job.LastError = err.Error()
	if job.Attempts >= job.MaxAttempts {
		if setErr := d.failJob(proc.queueName, job); setErr != nil {
			d.log.Error("park failed job",
				"queue", proc.queueName, "job_id", job.ID, "error", setErr)
			return
		}
		d.log.Warn("job failed permanently",
			"queue", proc.queueName,
			"job_id", job.ID,
			"attempts", job.Attempts,
			"error", err)
		return
	}

	readyAt := time.Now().UTC().Add(backoffDelay(job.Attempts))
	if setErr := d.releaseJob(proc.queueName, job, readyAt); setErr != nil {
		d.log.Error("reschedule job failed",
			"queue", proc.queueName, "job_id", job.ID, "error", setErr)
		return
	}
	d.log.Debug("job rescheduled",
		"queue", proc.queueName,
		"job_id", job.ID,
		"attempt", job.Attempts,
		"retry_at", readyAt,
		"error", err)
}

// renewLease extends the lease at 40% of the lock duration until done closes.
func (d *Durable) renewLease(proc *processor, job *Job, done <-chan struct{}) {
	defer d.wg.Done()

	interval := time.Duration(float64(proc.lockDuration) * 0.4)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-d.baseCtx.Done():
			return
		case <-ticker.C:
			err := d.backend.Update(func(tx *badger.Txn) error {
				current, err := readJob(tx, proc.queueName, job.ID)
				if err != nil {
					return err
				}
				if current.State != StateActive {
					return nil
				}
				current.LeaseUntil = time.Now().UTC().Add(proc.lockDuration)
				return writeJob(tx, current)
			})
			if err != nil {
				d.log.Warn("lease renewal failed",
					"queue", proc.queueName, "job_id", job.ID, "error", err)
			}
		}
	}
}

// reapLoop returns jobs with expired leases to the waiting state.
func (d *Durable) reapLoop(proc *processor) {
	defer d.wg.Done()

	interval := proc.lockDuration / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.baseCtx.Done():
			return
		case <-ticker.C:
		}

		reaped, err := d.reapStalled(proc.queueName)
		if err != nil {
			d.log.Error("reap stalled jobs failed", "queue", proc.queueName, "error", err)
			continue
		}
		if reaped > 0 {
			d.log.Warn("recovered stalled jobs", "queue", proc.queueName, "count", reaped)
		}
	}
}

func (d *Durable) reapStalled(queueName string) (int, error) {
	now := time.Now().UTC()
	reaped := 0

	err := d.backend.Update(func(tx *badger.Txn) error {
		reaped = 0
		return iterateJobs(tx, queueName, func(job *Job) error {
			if job.State != StateActive || job.LeaseUntil.After(now) {
				return nil
			}
			job.State = StateWaiting
			job.ReadyAt = now
			if err := writeJob(tx, job); err != nil {
				return err
			}
			if err := tx.Set(readyKey(queueName, now, job.ID), nil); err != nil {
				return err
			}
			reaped++
			return nil
		})
	})
	return reaped, err
}

func (d *Durable) completeJob(queueName string, job *Job) error {
	return d.backend.Update(func(tx *badger.Txn) error {
		return tx.Delete(jobKey(queueName, job.ID))
	})
}

func (d *Durable) failJob(queueName string, job *Job) error {
	job.State = StateFailed
	return d.backend.Update(func(tx *badger.Txn) error {
		return writeJob(tx, job)
	})
}

func (d *Durable) releaseJob(queueName string, job *Job, readyAt time.Time) error {
	job.State = StateWaiting
	job.ReadyAt = readyAt
	return d.backend.Update(func(tx *badger.Txn) error {
		if err := writeJob(tx, job); err != nil {
			return err
		}
		return tx.Set(readyKey(queueName, readyAt, job.ID), nil)
	})
}

func (d *Durable) Counts(ctx context.Context, queueName string) (Counts, error) {
	var counts Counts
	err := d.backend.View(func(tx *badger.Txn) error {
		counts = Counts{}
		return iterateJobs(tx, queueName, func(job *Job) error {
			switch job.State {
			case StateWaiting:
				counts.Waiting++
			case StateActive:
				counts.Active++
			case StateFailed:
				counts.Failed++
			}
			return nil
		})
	})
	if err != nil {
		return Counts{}, fmt.Errorf("count jobs in %s: %w", queueName, err)
	}
	counts.Completed = int(d.completedCounter(queueName).Load())
	return counts, nil
}

// completedCounter returns the named queue's completed counter, creating it
// on first use. Completed jobs are deleted from the store, so the count
// lives in memory and resets with the process.
func (d *Durable) completedCounter(queueName string) *atomic.Int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.completed[queueName]
	if !ok {
		c = &atomic.Int64{}
		d.completed[queueName] = c
	}
	return c
}

func (d *Durable) DrainWaiting(ctx context.Context, queueName string) (int, error) {
	drained := 0
	err := d.backend.Update(func(tx *badger.Txn) error {
		drained = 0

		// Remove the ready index first, then the job records.
		prefix := []byte(readyPrefix + queueName + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		var readyKeys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			readyKeys = append(readyKeys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range readyKeys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}

		return iterateJobs(tx, queueName, func(job *Job) error {
			if job.State != StateWaiting {
				return nil
			}
			if err := tx.Delete(jobKey(queueName, job.ID)); err != nil {
				return err
			}
			drained++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("drain %s: %w", queueName, err)
	}
	if drained > 0 {
		d.log.Info("drained waiting jobs", "queue", queueName, "count", drained)
	}
	return drained, nil
}

func (d *Durable) RetryFailed(ctx context.Context, queueName string) (int, error) {
	now := time.Now().UTC()
	retried := 0
	err := d.backend.Update(func(tx *badger.Txn) error {
		retried = 0
		return iterateJobs(tx, queueName, func(job *Job) error {
			if job.State != StateFailed {
				return nil
			}
			job.State = StateWaiting
			job.Attempts = 0
			job.LastError = ""
			job.ReadyAt = now
			if err := writeJob(tx, job); err != nil {
				return err
			}
			if err := tx.Set(readyKey(queueName, now, job.ID), nil); err != nil {
				return err
			}
			retried++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("retry failed in %s: %w", queueName, err)
	}
	if retried > 0 {
		d.log.Info("retrying failed jobs", "queue", queueName, "count", retried)
	}
	return retried, nil
}

func (d *Durable) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	procs := make([]*processor, 0, len(d.processors))
	for _, proc := range d.processors {
		procs = append(procs, proc)
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	for _, proc := range procs {
		proc.pool.Release()
	}
	d.log.Info("queue closed")
	return nil
}

// backoffDelay is the exponential retry delay after the given attempt count.
func backoffDelay(attempts int) time.Duration {
	delay := backoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= backoffCap {
			return backoffCap
		}
	}
	return delay
}

func writeJob(tx *badger.Txn, job *Job) error {
	buf := make([]byte, JobMUS.Size(job))
	JobMUS.Marshal(job, buf)
	return tx.Set(jobKey(job.Queue, job.ID), buf)
}

func readJob(tx *badger.Txn, queueName, id string) (*Job, error) {
	item, err := tx.Get(jobKey(queueName, id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	var job *Job
	err = item.Value(func(val []byte) error {
		var uErr error
		job, _, uErr = JobMUS.Unmarshal(val)
		return uErr
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// iterateJobs snapshots the queue's jobs before invoking fn so that fn may
// write to the same transaction.
func iterateJobs(tx *badger.Txn, queueName string, fn func(job *Job) error) error {
	prefix := []byte(jobPrefix + queueName + ":")
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := tx.NewIterator(opts)

	var jobs []*Job
	for it.Rewind(); it.Valid(); it.Next() {
		var job *Job
		err := it.Item().Value(func(val []byte) error {
			var uErr error
			job, _, uErr = JobMUS.Unmarshal(val)
			return uErr
		})
		if err != nil {
			it.Close()
			return err
		}
		jobs = append(jobs, job)
	}
	it.Close()

	for _, job := range jobs {
		if err := fn(job); err != nil {
			return err
		}
	}
	return nil
}
