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

import "time"

// State is the lifecycle state of a job.
type State int

const (
	// StateWaiting indicates the job is enqueued and ready (or scheduled) to run.
	StateWaiting State = iota + 1
	// StateActive indicates a worker holds a lease on the job.
	StateActive
	// StateCompleted indicates the handler finished without error.
	StateCompleted
	// StateFailed indicates the job exhausted its attempts and is parked.
	StateFailed
)

// String returns the canonical lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is one unit of work. Payload is opaque to the queue.
type Job struct {
	ID          string
	Queue       string
	Payload     []byte
	Attempts    int
	MaxAttempts int
	State       State
	EnqueuedAt  time.Time
	ReadyAt     time.Time
	LeaseUntil  time.Time
	LastError   string
}

// Counts summarizes a queue's job population. Completed is cumulative since
// the queue was opened; completed jobs are removed from storage.
type Counts struct {
	Waiting   int
	Active    int
	Failed    int
	Completed int
}
