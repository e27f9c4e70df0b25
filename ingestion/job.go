package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/poiesic/indexit/core"
)

// Job operations.
const (
	// OpIngest runs the full stage chain for a document.
	OpIngest = "ingest"
	// OpDelete removes a document. Delete jobs bypass the stage chain.
	OpDelete = "delete"
)

// JobData is the payload carried between stages. Each stage fills in what
// the next one needs; the queue treats it as opaque bytes.
type JobData struct {
	Op          string `json:"op"`
	WorkspaceID string `json:"workspace_id"`
	SourceID    string `json:"source_id"`

	// StartedAt is when the chain was submitted; the terminal stage derives
	// the total pipeline duration from it. PrevStage tags chained jobs with
	// the stage that enqueued them. SkipEnrich makes the enrich stage a
	// no-op for this document.
	StartedAt  time.Time `json:"started_at,omitempty"`
	PrevStage  string    `json:"prev_stage,omitempty"`
	SkipEnrich bool      `json:"skip_enrich,omitempty"`

	// Set by the fetch stage.
	SourceType  string    `json:"source_type,omitempty"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content,omitempty"`
	Blocks      []string  `json:"blocks,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	ModifiedAt  time.Time `json:"modified_at,omitempty"`

	// Set by the chunk stage.
	Chunks []core.Chunk `json:"chunks,omitempty"`

	// Set by the embed stage.
	PointIDs   []string               `json:"point_ids,omitempty"`
	ChunkCount int                    `json:"chunk_count,omitempty"`
	Provider   core.EmbeddingProvider `json:"provider,omitempty"`

	// Recovered marks a job re-injected mid-chain after a crash.
	Recovered bool `json:"recovered,omitempty"`
}

func (d *JobData) encode() ([]byte, error) {
	buf, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode job data: %w", err)
	}
	return buf, nil
}

func decodeJobData(payload []byte) (*JobData, error) {
	var d JobData
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("decode job data: %w", err)
	}
	if d.WorkspaceID == "" || d.SourceID == "" {
		return nil, fmt.Errorf("job data missing workspace or source id")
	}
	return &d, nil
}
