package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticConnector(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	conn := NewStatic()
	conn.Add("doc-1", "First", "some content", now)

	doc, err := conn.FetchRaw(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.SourceID)
	assert.Equal(t, "First", doc.Title)
	assert.NotEmpty(t, doc.Fingerprint)

	// Fingerprint changes with content.
	conn.Add("doc-1", "First", "other content", now)
	doc2, err := conn.FetchRaw(ctx, "doc-1")
	require.NoError(t, err)
	assert.NotEqual(t, doc.Fingerprint, doc2.Fingerprint)

	_, err = conn.FetchRaw(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	conn.Remove("doc-1")
	_, err = conn.FetchRaw(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestDirConnector(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("# Notes\nhello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "plan.txt"), []byte("the plan"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte{0x89}, 0644))

	conn, err := NewDir(root)
	require.NoError(t, err)

	ids, err := conn.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notes.md", "sub/plan.txt"}, ids)

	doc, err := conn.FetchRaw(ctx, "sub/plan.txt")
	require.NoError(t, err)
	assert.Equal(t, "the plan", doc.Content)
	assert.Equal(t, "plan", doc.Title)

	_, err = conn.FetchRaw(ctx, "../outside")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
