package reembed

import (
	"sync"
	"time"
)

// emaAlpha weights the most recent document duration in the moving average.
const emaAlpha = 0.2

// Status is a point-in-time view of a migration run.
type Status struct {
	WorkspaceID string
	Running     bool
	DryRun      bool
	Total       int
	Done        int
	Failed      int
	StartedAt   time.Time
	FinishedAt  time.Time

	// EstimatedFinish extrapolates from a moving average of per-document
	// durations. Zero until at least one document has completed.
	EstimatedFinish time.Time

	LastError string
}

// tracker accumulates migration progress behind a mutex.
type tracker struct {
	mu     sync.Mutex
	status Status
	emaSec float64
	lastAt time.Time
}

func newTracker(workspaceID string, total int, dryRun bool) *tracker {
	now := time.Now().UTC()
	return &tracker{
		status: Status{
			WorkspaceID: workspaceID,
			Running:     true,
			DryRun:      dryRun,
			Total:       total,
			StartedAt:   now,
		},
		lastAt: now,
	}
}

func (t *tracker) document(err error) {
	now := time.Now().UTC()
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := now.Sub(t.lastAt).Seconds()
	t.lastAt = now
	if t.emaSec == 0 {
		t.emaSec = elapsed
	} else {
		t.emaSec = emaAlpha*elapsed + (1-emaAlpha)*t.emaSec
	}

	if err != nil {
		t.status.Failed++
		t.status.LastError = err.Error()
	} else {
		t.status.Done++
	}

	remaining := t.status.Total - t.status.Done - t.status.Failed
	if remaining > 0 && t.emaSec > 0 {
		t.status.EstimatedFinish = now.Add(time.Duration(float64(remaining) * t.emaSec * float64(time.Second)))
	} else {
		t.status.EstimatedFinish = time.Time{}
	}
}

func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Running = false
	t.status.FinishedAt = time.Now().UTC()
	t.status.EstimatedFinish = time.Time{}
}

func (t *tracker) snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
