package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/lexical"
	"github.com/poiesic/indexit/storage"
	"github.com/poiesic/indexit/vector"
)

const (
	// rrfK is the reciprocal rank fusion constant. Larger values flatten the
	// difference between top and bottom ranks.
	rrfK = 60

	// verbatimBoost is added when a chunk contains every query word. On the
	// RRF scale it is worth roughly one first-place rank.
	verbatimBoost = 1.0 / rrfK

	// candidateFactor widens both retrievals beyond the requested limit so
	// fusion has overlap to work with.
	candidateFactor = 3
)

// Result is one fused search hit.
type Result struct {
	PointID     string
	WorkspaceID string
	SourceID    string
	Text        string
	Heading     string
	Score       float64
}

// Searcher provides hybrid dense and keyword search over indexed chunks.
type Searcher struct {
	vectors    vector.Service
	keywords   *lexical.Index
	workspaces storage.WorkspaceRepository
	provider   ai.Provider
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	vectors vector.Service,
	keywords *lexical.Index,
	workspaces storage.WorkspaceRepository,
	provider ai.Provider,
	opts ...Option,
) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorServiceRequired
	}
	if keywords == nil {
		return nil, ErrKeywordIndexRequired
	}
	if workspaces == nil {
		return nil, ErrWorkspaceRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		vectors:    vectors,
		keywords:   keywords,
		workspaces: workspaces,
		provider:   provider,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search runs a hybrid query against one workspace.
// Returns up to maxHits results, ranked by fused relevance score.
func (s *Searcher) Search(ctx context.Context, workspaceID, query string, maxHits int) ([]*Result, error) {
	return s.SearchWithMonitor(ctx, workspaceID, query, maxHits, nil)
}

// SearchWithMonitor runs a hybrid query with monitoring. The monitor receives
// callbacks at each stage of the search process.
// Returns up to maxHits results, ranked by fused relevance score.
func (s *Searcher) SearchWithMonitor(ctx context.Context, workspaceID, query string, maxHits int, monitor SearchMonitor) ([]*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if maxHits <= 0 {
		maxHits = 10
	}

	monitor.Start(query)
	candidates := maxHits * candidateFactor

	// 1. Dense retrieval. The query is embedded with the same backend the
	// workspace's documents route to, so it lands in the same vector space.
	embedding, err := s.embedQuery(ctx, workspaceID, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	denseMatches, err := s.vectors.Search(ctx, workspaceID, embedding, candidates)
	if err != nil {
		s.logger.Error("error querying dense index", "err", err)
		return nil, err
	}

	denseRank := make(map[string]int, len(denseMatches))
	densePoints := make(map[string]*core.VectorPoint, len(denseMatches))
	denseIds := make([]string, 0, len(denseMatches))
	for i, match := range denseMatches {
		denseRank[match.Point.ID] = i + 1
		densePoints[match.Point.ID] = match.Point
		denseIds = append(denseIds, match.Point.ID)
	}
	monitor.AfterDenseSearch(denseIds)

	// 2. Keyword retrieval over the full-text index.
	keywordMatches, err := s.keywords.Search(ctx, workspaceID, query, candidates)
	if err != nil {
		s.logger.Error("error querying keyword index", "err", err)
		return nil, err
	}

	keywordRank := make(map[string]int, len(keywordMatches))
	keywordHits := make(map[string]lexical.Match, len(keywordMatches))
	keywordIds := make([]string, 0, len(keywordMatches))
	for i, match := range keywordMatches {
		keywordRank[match.PointID] = i + 1
		keywordHits[match.PointID] = match
		keywordIds = append(keywordIds, match.PointID)
	}
	monitor.AfterKeywordSearch(keywordIds)

	// 3. Reciprocal rank fusion over the union of both lists.
	results := make([]*Result, 0, len(denseRank)+len(keywordRank))
	seen := make(map[string]bool)

	for pointID := range denseRank {
		seen[pointID] = true
		point := densePoints[pointID]
		result := &Result{
			PointID:     pointID,
			WorkspaceID: point.WorkspaceID,
			SourceID:    point.SourceID,
			Text:        point.Text,
			Heading:     point.HeadingPath,
			Score:       1.0 / float64(rrfK+denseRank[pointID]),
		}
		if kr, ok := keywordRank[pointID]; ok {
			result.Score += 1.0 / float64(rrfK+kr)
			monitor.DenseAndKeywordHit(pointID)
		} else {
			monitor.DenseHit(pointID)
		}
		results = append(results, result)
	}
	for pointID, match := range keywordHits {
		if seen[pointID] {
			continue
		}
		monitor.KeywordHit(pointID)
		results = append(results, &Result{
			PointID:     pointID,
			WorkspaceID: match.WorkspaceID,
			SourceID:    match.SourceID,
			Text:        match.Text,
			Heading:     match.Heading,
			Score:       1.0 / float64(rrfK+keywordRank[pointID]),
		})
	}

	// 4. Verbatim match boost.
	for _, result := range results {
		if containsAllQueryWords(result.Text, query) {
			result.Score += verbatimBoost
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].PointID < results[j].PointID
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}

// embedQuery picks the embedding backend the workspace's documents route to
// and embeds the query with it.
func (s *Searcher) embedQuery(ctx context.Context, workspaceID, query string) ([]float32, error) {
	ws, err := s.workspaces.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		ws = core.DefaultWorkspace(workspaceID)
	}

	backend := ai.SelectProvider(ws.Trust, ws.PreferCloud, ws.CloudConsent)
	embedding, err := s.provider.Embedder(backend).EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	vector.Normalize(embedding)
	return embedding, nil
}
