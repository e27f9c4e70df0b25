package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

func testEntry(workspaceID, sourceID string) *core.DocumentEntry {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &core.DocumentEntry{
		WorkspaceID:      workspaceID,
		SourceID:         sourceID,
		SourceType:       "file",
		Title:            "Test Document",
		Fingerprint:      core.Fingerprint("test content"),
		SourceModifiedAt: now,
		Status:           core.SyncPending,
		InsertedAt:       now,
		UpdatedAt:        now,
	}
}

func TestDocumentRepositoryRoundTrip(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	entry := testEntry("ws-1", "doc-1")
	entry.PointIDs = []string{"doc-1_deadbeef_chunk_0", "doc-1_deadbeef_chunk_1"}
	entry.ChunkCount = 2
	entry.Summary = "a short summary"

	require.NoError(t, repos.Documents.PutDocument(ctx, entry))

	got, err := repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, entry.Title, got.Title)
	assert.Equal(t, entry.Fingerprint, got.Fingerprint)
	assert.Equal(t, core.SyncPending, got.Status)
	require.Len(t, got.PointIDs, 2)
	assert.Equal(t, entry.PointIDs[0], got.PointIDs[0])
	assert.True(t, got.UpdatedAt.Equal(entry.UpdatedAt))
}

func TestDocumentRepositoryNotFound(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	_, err = repos.Documents.GetDocument(context.Background(), "ws-1", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDocumentRepositoryOverwrite(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	entry := testEntry("ws-1", "doc-1")
	require.NoError(t, repos.Documents.PutDocument(ctx, entry))

	entry.Status = core.SyncSynced
	entry.Title = "Updated Title"
	require.NoError(t, repos.Documents.PutDocument(ctx, entry))

	got, err := repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, core.SyncSynced, got.Status)
	assert.Equal(t, "Updated Title", got.Title)
}

func TestDocumentRepositoryListScopedToWorkspace(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	for _, pair := range [][2]string{
		{"ws-1", "doc-a"},
		{"ws-1", "doc-b"},
		{"ws-2", "doc-c"},
	} {
		require.NoError(t, repos.Documents.PutDocument(ctx, testEntry(pair[0], pair[1])))
	}

	entries, err := repos.Documents.ListDocuments(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "ws-1", e.WorkspaceID, "entry %s", e.SourceID)
	}
}

func TestDocumentRepositoryErrorLog(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	entry := testEntry("ws-1", "doc-1")
	entry.RecordError("embed", "provider unavailable", time.Now().UTC())
	entry.Status = core.SyncError

	require.NoError(t, repos.Documents.PutDocument(ctx, entry))

	got, err := repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "embed", got.Errors[0].Stage)
	assert.Equal(t, "provider unavailable", got.Errors[0].Message)
}
