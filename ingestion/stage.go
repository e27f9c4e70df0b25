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

import "time"

// Stage is one step of the ingestion pipeline. Stages form a fixed chain:
// completing stage N enqueues stage N+1 for the same document version.
type Stage int

const (
	// StageFetch loads the raw document from its source connector.
	StageFetch Stage = iota + 1
	// StageChunk splits content into chunks.
	StageChunk
	// StageScan classifies chunk text for sensitive content.
	StageScan
	// StageEmbed embeds chunks and writes them to the dense index.
	StageEmbed
	// StageIndex runs the verify-and-swap commit protocol.
	StageIndex
	// StageEnrich generates the optional document summary.
	StageEnrich
)

// String returns the canonical lowercase stage name.
func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "fetch"
	case StageChunk:
		return "chunk"
	case StageScan:
		return "scan"
	case StageEmbed:
		return "embed"
	case StageIndex:
		return "index"
	case StageEnrich:
		return "enrich"
	default:
		return "unknown"
	}
}

// QueueName returns the work-queue name backing this stage.
func (s Stage) QueueName() string {
	return "ingest." + s.String()
}

// Next returns the following stage, or 0 when s is terminal.
func (s Stage) Next() Stage {
	if s >= StageFetch && s < StageEnrich {
		return s + 1
	}
	return 0
}

// Valid reports whether s names a real stage.
func (s Stage) Valid() bool {
	return s >= StageFetch && s <= StageEnrich
}

// Stages returns all stages in execution order.
func Stages() []Stage {
	return []Stage{StageFetch, StageChunk, StageScan, StageEmbed, StageIndex, StageEnrich}
}

// ParseStage resolves a stage name. Returns 0 for unknown names.
func ParseStage(name string) Stage {
	for _, s := range Stages() {
		if s.String() == name {
			return s
		}
	}
	return 0
}

// WorkerProfile sets a stage's concurrency and per-attempt lock duration.
type WorkerProfile struct {
	Concurrency  int
	LockDuration time.Duration
}

// DefaultProfiles returns the per-stage worker profiles. IO-bound stages run
// wide with short locks; model-bound stages run narrow with long locks.
func DefaultProfiles() map[Stage]WorkerProfile {
	return map[Stage]WorkerProfile{
		StageFetch:  {Concurrency: 8, LockDuration: 30 * time.Second},
		StageChunk:  {Concurrency: 4, LockDuration: 60 * time.Second},
		StageScan:   {Concurrency: 8, LockDuration: 45 * time.Second},
		StageEmbed:  {Concurrency: 2, LockDuration: 180 * time.Second},
		StageIndex:  {Concurrency: 2, LockDuration: 120 * time.Second},
		StageEnrich: {Concurrency: 2, LockDuration: 120 * time.Second},
	}
}
