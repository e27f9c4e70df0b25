package lexical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/core"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func entriesFor(workspaceID, sourceID string, texts ...string) []Entry {
	entries := make([]Entry, len(texts))
	for i, text := range texts {
		entries[i] = Entry{
			PointID:     sourceID + "_chunk_" + string(rune('0'+i)),
			WorkspaceID: workspaceID,
			SourceID:    sourceID,
			Text:        text,
		}
	}
	return entries
}

func TestIndexAndSearch(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()

	err := idx.IndexChunks(ctx, entriesFor("ws-1", "doc-1",
		"the quarterly revenue report shows strong growth",
		"employee onboarding checklist and procedures",
	))
	require.NoError(t, err)

	matches, err := idx.Search(ctx, "ws-1", "revenue growth", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "doc-1", matches[0].SourceID)
}

func TestSearchScopedToWorkspace(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexChunks(ctx, entriesFor("ws-1", "doc-1", "shared keyword alpha")))
	require.NoError(t, idx.IndexChunks(ctx, entriesFor("ws-2", "doc-2", "shared keyword alpha")))

	matches, err := idx.Search(ctx, "ws-1", "alpha", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ws-1", matches[0].WorkspaceID)
}

func TestRemovePointsLeavesOtherVersions(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()

	oldEntries := []Entry{
		{PointID: "doc-1_aaaaaaaa_chunk_0", WorkspaceID: "ws-1", SourceID: "doc-1", Text: "old version text"},
	}
	newEntries := []Entry{
		{PointID: "doc-1_bbbbbbbb_chunk_0", WorkspaceID: "ws-1", SourceID: "doc-1", Text: "new version text"},
	}
	require.NoError(t, idx.IndexChunks(ctx, oldEntries))
	require.NoError(t, idx.IndexChunks(ctx, newEntries))

	require.NoError(t, idx.RemovePoints(ctx, "ws-1", "doc-1", []string{"doc-1_aaaaaaaa_chunk_0"}))

	matches, err := idx.Search(ctx, "ws-1", "version text", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "doc-1_bbbbbbbb_chunk_0", matches[0].PointID)
}

func TestRemoveSource(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.IndexChunks(ctx, entriesFor("ws-1", "doc-1", "first", "second")))
	require.NoError(t, idx.RemoveSource(ctx, "ws-1", "doc-1"))

	matches, err := idx.Search(ctx, "ws-1", "first", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFingerprintLifecycle(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()

	fp, err := idx.Fingerprint(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	assert.Empty(t, fp)

	first := core.Fingerprint("version one")
	require.NoError(t, idx.SetFingerprint(ctx, "ws-1", "doc-1", first))
	fp, err = idx.Fingerprint(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, first, fp)

	second := core.Fingerprint("version two")
	require.NoError(t, idx.SetFingerprint(ctx, "ws-1", "doc-1", second))
	fp, err = idx.Fingerprint(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, second, fp)

	require.NoError(t, idx.DeleteFingerprint(ctx, "ws-1", "doc-1"))
	fp, err = idx.Fingerprint(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	assert.Empty(t, fp)
}

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain words", `"plain" "words"`},
		{`stray "quotes" here`, `"stray" "quotes" "here"`},
		{`danger" OR 1`, `"danger" "OR" "1"`},
		{"wild*card", `"wild*card"`},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeQuery(tt.in), "sanitizeQuery(%q)", tt.in)
	}
}
