package search

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/ai/mock"
	"github.com/poiesic/indexit/indexer"
	"github.com/poiesic/indexit/lexical"
	"github.com/poiesic/indexit/split"
	badgerstore "github.com/poiesic/indexit/storage/badger"
	"github.com/poiesic/indexit/vector"
)

type searchFixture struct {
	repos    *badgerstore.MemoryRepositories
	provider *mock.MockProvider
	vectors  *vector.Local
	keywords *lexical.Index
	indexer  *indexer.Indexer
	searcher *Searcher
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()

	repos, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	provider := mock.NewMockProvider()

	vectors, err := vector.NewLocal(provider, repos.Points)
	require.NoError(t, err)

	keywords, err := lexical.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { keywords.Close() })

	ix, err := indexer.New(repos.Documents, repos.Workspaces, vectors, keywords, split.NewRecursive())
	require.NoError(t, err)

	searcher, err := NewSearcher(vectors, keywords, repos.Workspaces, provider)
	require.NoError(t, err)

	return &searchFixture{
		repos:    repos,
		provider: provider,
		vectors:  vectors,
		keywords: keywords,
		indexer:  ix,
		searcher: searcher,
	}
}

// index stores a short single-chunk document in both indexes.
func (f *searchFixture) index(t *testing.T, workspaceID, sourceID, content string) {
	t.Helper()
	err := f.indexer.IndexDocument(context.Background(), workspaceID, sourceID,
		"static", "Title "+sourceID, content, time.Now().UTC())
	require.NoError(t, err)
}

func TestNewSearcher(t *testing.T) {
	f := newSearchFixture(t)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(f.vectors, f.keywords, f.repos.Workspaces, f.provider)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(f.vectors, f.keywords, f.repos.Workspaces, f.provider, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(f.vectors, f.keywords, f.repos.Workspaces, f.provider, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil vector service", func(t *testing.T) {
		_, err := NewSearcher(nil, f.keywords, f.repos.Workspaces, f.provider)
		assert.Equal(t, ErrVectorServiceRequired, err)
	})

	t.Run("nil keyword index", func(t *testing.T) {
		_, err := NewSearcher(f.vectors, nil, f.repos.Workspaces, f.provider)
		assert.Equal(t, ErrKeywordIndexRequired, err)
	})

	t.Run("nil workspace repository", func(t *testing.T) {
		_, err := NewSearcher(f.vectors, f.keywords, nil, f.provider)
		assert.Equal(t, ErrWorkspaceRepositoryRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewSearcher(f.vectors, f.keywords, f.repos.Workspaces, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})
}

func TestSearch_EmptyIndexes(t *testing.T) {
	f := newSearchFixture(t)

	results, err := f.searcher.Search(context.Background(), "ws-1", "anything at all", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_ExactContentRanksFirst(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	f.index(t, "ws-1", "doc-brewing", "Zymurgy covers fermentation chemistry in brewing.")
	f.index(t, "ws-1", "doc-network", "Packet routing tables govern network traffic flow.")
	f.index(t, "ws-1", "doc-garden", "Tomato seedlings need consistent watering schedules.")

	// The query is the stored chunk verbatim: top dense rank, top keyword
	// rank, and the verbatim boost all point at the same chunk.
	results, err := f.searcher.Search(ctx, "ws-1", "Zymurgy covers fermentation chemistry in brewing.", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-brewing", results[0].SourceID)
	assert.Equal(t, "ws-1", results[0].WorkspaceID)
	assert.Contains(t, results[0].Text, "Zymurgy")
}

func TestSearch_KeywordHitSurfacesRareTerm(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	f.index(t, "ws-1", "doc-brewing", "Zymurgy covers fermentation chemistry in brewing.")
	f.index(t, "ws-1", "doc-network", "Packet routing tables govern network traffic flow.")

	results, err := f.searcher.Search(ctx, "ws-1", "zymurgy fermentation", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-brewing", results[0].SourceID)
}

func TestSearch_WorkspaceScoping(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	f.index(t, "ws-1", "doc-1", "Confidential quarterly revenue projections.")

	results, err := f.searcher.Search(ctx, "ws-2", "quarterly revenue projections", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_MaxHits(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	f.index(t, "ws-1", "doc-1", "Alpha release notes for the storage layer.")
	f.index(t, "ws-1", "doc-2", "Beta release notes for the storage layer.")
	f.index(t, "ws-1", "doc-3", "Gamma release notes for the storage layer.")
	f.index(t, "ws-1", "doc-4", "Delta release notes for the storage layer.")

	results, err := f.searcher.Search(ctx, "ws-1", "release notes storage", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Scores come back sorted descending.
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

type recordingMonitor struct {
	started      string
	denseIDs     []string
	keywordIDs   []string
	bothHits     []string
	finishedWith int
}

var _ SearchMonitor = (*recordingMonitor)(nil)

func (r *recordingMonitor) Start(query string)              { r.started = query }
func (r *recordingMonitor) AfterDenseSearch(ids []string)   { r.denseIDs = ids }
func (r *recordingMonitor) AfterKeywordSearch(ids []string) { r.keywordIDs = ids }
func (r *recordingMonitor) DenseAndKeywordHit(id string)    { r.bothHits = append(r.bothHits, id) }
func (r *recordingMonitor) DenseHit(_ string)               {}
func (r *recordingMonitor) KeywordHit(_ string)             {}
func (r *recordingMonitor) Finish(results []*Result)        { r.finishedWith = len(results) }

func TestSearchWithMonitor(t *testing.T) {
	f := newSearchFixture(t)
	ctx := context.Background()

	f.index(t, "ws-1", "doc-brewing", "Zymurgy covers fermentation chemistry in brewing.")

	monitor := &recordingMonitor{}
	results, err := f.searcher.SearchWithMonitor(ctx, "ws-1", "zymurgy fermentation chemistry", 10, monitor)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "zymurgy fermentation chemistry", monitor.started)
	assert.NotEmpty(t, monitor.denseIDs)
	assert.NotEmpty(t, monitor.keywordIDs)
	assert.NotEmpty(t, monitor.bothHits)
	assert.Equal(t, len(results), monitor.finishedWith)
}

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		query    string
		expected bool
	}{
		{"all words present", "the quick brown fox jumps", "quick fox", true},
		{"missing word", "the quick brown fox", "quick turtle", false},
		{"stop words ignored", "quick brown fox", "the quick fox", true},
		{"punctuation trimmed", "Quick, brown fox!", "quick fox", true},
		{"only stop words", "quick brown fox", "the a an", false},
		{"empty query", "quick brown fox", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, containsAllQueryWords(tt.text, tt.query))
		})
	}
}
