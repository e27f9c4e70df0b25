package split

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortContent(t *testing.T) {
	ctx := context.Background()
	splitter := NewRecursive()

	chunks, err := splitter.Split(ctx, "a short document", nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0].Text)
	assert.GreaterOrEqual(t, chunks[0].TokenEstimate, 1)
	assert.Equal(t, "text", chunks[0].Category)
}

func TestSplitEmptyContent(t *testing.T) {
	ctx := context.Background()
	splitter := NewRecursive()

	chunks, err := splitter.Split(ctx, "   \n\t ", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitLongContentProducesMultipleChunks(t *testing.T) {
	ctx := context.Background()
	splitter := NewRecursive(WithChunkSize(200), WithChunkOverlap(20))

	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("This sentence pads the document out to force multiple chunks.\n")
	}

	chunks, err := splitter.Split(ctx, b.String(), nil)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.NotEmpty(t, chunk.Text)
		assert.GreaterOrEqual(t, chunk.TokenEstimate, 1)
	}
}

func TestSplitBlocksPreserveBoundaries(t *testing.T) {
	ctx := context.Background()
	splitter := NewRecursive()

	blocks := []string{"first block content", "second block content"}
	chunks, err := splitter.Split(ctx, "ignored when blocks are present", blocks)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first block content", chunks[0].Text)
	assert.Equal(t, "second block content", chunks[1].Text)
}

func TestHeadingPath(t *testing.T) {
	content := "# Guide\n\nintro text\n\n## Setup\n\nsetup text\n\n### Linux\n\nlinux text\n\n## Usage\n\nusage text\n"
	headings := headingIndex(content)

	tests := []struct {
		name     string
		position int
		want     string
	}{
		{"before any heading", 0, "Guide"},
		{"under setup", strings.Index(content, "setup text"), "Guide > Setup"},
		{"nested heading", strings.Index(content, "linux text"), "Guide > Setup > Linux"},
		{"sibling pops nested", strings.Index(content, "usage text"), "Guide > Usage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, headings.pathAt(tt.position))
		})
	}
}

func TestHeadingPathOnChunks(t *testing.T) {
	ctx := context.Background()
	splitter := NewRecursive(WithChunkSize(60), WithChunkOverlap(0))

	content := "# Alpha\n\nalpha body text that is long enough to stand alone\n\n# Beta\n\nbeta body text that is long enough to stand alone\n"
	chunks, err := splitter.Split(ctx, content, nil)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var sawBeta bool
	for _, chunk := range chunks {
		if strings.Contains(chunk.Text, "beta body") {
			assert.Equal(t, "Beta", chunk.HeadingPath)
			sawBeta = true
		}
	}
	assert.True(t, sawBeta, "expected a chunk under the Beta heading")
}
