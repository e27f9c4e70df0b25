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


package ingestion

import (
	"sync"
	"sync/atomic"
	"time"
)

// maxStageErrorLen bounds the retained last-error text per stage.
const maxStageErrorLen = 500

// stageMetrics tracks one stage's counters. Counters are cumulative since
// process start.
type stageMetrics struct {
	processed  atomic.Int64
	failed     atomic.Int64
	duplicates atomic.Int64
	items      atomic.Int64
	latencyMS  atomic.Int64

	mu              sync.Mutex
	lastError       string
	lastErrorAt     time.Time
	lastProcessedAt time.Time
}

// recordSuccess adds one completed execution. Latency accumulates so the
// snapshot can report a running mean.
func (m *stageMetrics) recordSuccess(elapsed time.Duration, items int) {
	m.processed.Add(1)
	m.items.Add(int64(items))
	m.latencyMS.Add(elapsed.Milliseconds())
	m.mu.Lock()
	m.lastProcessedAt = time.Now().UTC()
	m.mu.Unlock()
}

func (m *stageMetrics) recordError(err error) {
	m.failed.Add(1)
	msg := err.Error()
	if len(msg) > maxStageErrorLen {
		msg = msg[:maxStageErrorLen]
	}
	m.mu.Lock()
	m.lastError = msg
	m.lastErrorAt = time.Now().UTC()
	m.mu.Unlock()
}

// StageSnapshot is a point-in-time view of one stage's counters.
type StageSnapshot struct {
	Processed       int64
	Failed          int64
	Duplicates      int64
	Items           int64
	TotalLatencyMS  int64
	AvgLatencyMS    int64
	LastProcessedAt time.Time
	LastError       string
	LastErrorAt     time.Time
}

// Metrics tracks per-stage counters for the whole pipeline.
type Metrics struct {
	stages map[Stage]*stageMetrics
}

// NewMetrics creates zeroed metrics for every stage.
func NewMetrics() *Metrics {
	stages := make(map[Stage]*stageMetrics, len(Stages()))
	for _, s := range Stages() {
		stages[s] = &stageMetrics{}
	}
	return &Metrics{stages: stages}
}

func (m *Metrics) stage(s Stage) *stageMetrics {
	return m.stages[s]
}

// Snapshot returns the current counters for every stage.
func (m *Metrics) Snapshot() map[Stage]StageSnapshot {
	out := make(map[Stage]StageSnapshot, len(m.stages))
	for s, sm := range m.stages {
		sm.mu.Lock()
		snap := StageSnapshot{
			Processed:       sm.processed.Load(),
			Failed:          sm.failed.Load(),
			Duplicates:      sm.duplicates.Load(),
			Items:           sm.items.Load(),
			TotalLatencyMS:  sm.latencyMS.Load(),
			LastProcessedAt: sm.lastProcessedAt,
			LastError:       sm.lastError,
			LastErrorAt:     sm.lastErrorAt,
		}
		sm.mu.Unlock()
		if snap.Processed > 0 {
			snap.AvgLatencyMS = snap.TotalLatencyMS / snap.Processed
		}
		out[s] = snap
	}
	return out
}
