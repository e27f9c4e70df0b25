package storage

import (
	"testing"
	"time"

	"github.com/poiesic/indexit/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentEntryRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &core.DocumentEntry{
		WorkspaceID:      "ws-1",
		SourceID:         "doc-42",
		SourceType:       "notion",
		Title:            "Runbook",
		Fingerprint:      core.Fingerprint("content v1"),
		SourceModifiedAt: now.Add(-time.Hour),
		Status:           core.SyncSynced,
		PointIDs:         []string{"doc-42_aaaa_chunk_0", "doc-42_aaaa_chunk_1"},
		ChunkCount:       2,
		Embedding:        core.CurrentSpec(core.ProviderLocal).Metadata(2, now),
		Summary:          "a runbook",
		Errors: []core.SyncErrorEntry{
			{Stage: "embed", Message: "transient timeout", OccurredAt: now.Add(-2 * time.Hour)},
		},
		InsertedAt: now.Add(-24 * time.Hour),
		UpdatedAt:  now,
	}

	data := MarshalDocumentEntry(entry)
	got, err := UnmarshalDocumentEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestDocumentEntryRoundTripMinimal(t *testing.T) {
	entry := &core.DocumentEntry{
		WorkspaceID: "ws-1",
		SourceID:    "doc-1",
		Status:      core.SyncPending,
		InsertedAt:  time.Unix(0, 0).UTC(),
		UpdatedAt:   time.Unix(0, 0).UTC(),
	}

	got, err := UnmarshalDocumentEntry(MarshalDocumentEntry(entry))
	require.NoError(t, err)
	assert.Equal(t, entry.WorkspaceID, got.WorkspaceID)
	assert.Empty(t, got.PointIDs)
	assert.Empty(t, got.Errors)
	assert.False(t, got.Embedding.Present())
}

func TestWorkspaceRecordRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	record := &core.WorkspaceRecord{
		ID:               "ws-1",
		Trust:            core.TrustRegulated,
		PreferCloud:      true,
		CloudConsent:     true,
		NeedsReview:      true,
		PriorTrust:       core.TrustInternal,
		DetectedPatterns: []string{"credential", "pii_ssn"},
		UpdatedAt:        now,
	}

	got, err := UnmarshalWorkspaceRecord(MarshalWorkspaceRecord(record))
	require.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestVectorPointRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	point := &core.VectorPoint{
		ID:          "doc-1_abcd1234_chunk_3",
		WorkspaceID: "ws-1",
		SourceID:    "doc-1",
		Fingerprint: "abcd1234",
		ChunkIndex:  3,
		Text:        "chunk text",
		HeadingPath: "Guide > Setup",
		Vector:      []float32{0.25, -0.5, 1.0},
		InsertedAt:  now,
	}

	got, err := UnmarshalVectorPoint(MarshalVectorPoint(point))
	require.NoError(t, err)
	assert.Equal(t, point, got)
}

func TestProcessedMarkRoundTrip(t *testing.T) {
	mark := &core.ProcessedMark{
		Result:      "indexed 7 chunks",
		CompletedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	got, err := UnmarshalProcessedMark(MarshalProcessedMark(mark))
	require.NoError(t, err)
	assert.Equal(t, mark, got)
}

func TestUnmarshalRejectsTruncatedData(t *testing.T) {
	entry := &core.DocumentEntry{
		WorkspaceID: "ws-1",
		SourceID:    "doc-1",
		Status:      core.SyncPending,
	}
	data := MarshalDocumentEntry(entry)

	_, err := UnmarshalDocumentEntry(data[:len(data)/2])
	assert.Error(t, err)
}
