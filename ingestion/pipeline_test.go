package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/ai/mock"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/events"
	"github.com/poiesic/indexit/indexer"
	"github.com/poiesic/indexit/lexical"
	"github.com/poiesic/indexit/queue"
	"github.com/poiesic/indexit/source"
	"github.com/poiesic/indexit/split"
	badgerstore "github.com/poiesic/indexit/storage/badger"
	"github.com/poiesic/indexit/vector"
)

type testRig struct {
	pipeline  *Pipeline
	repos     *badgerstore.MemoryRepositories
	connector *source.Static
	provider  *mock.MockProvider
	vectors   vector.Service
	keywords  *lexical.Index
	indexer   *indexer.Indexer
	collector *events.Collector
}

func newRig(t *testing.T) *testRig {
	t.Helper()

	repos, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	q, err := queue.NewDurable(repos.Backend, queue.WithPollInterval(15*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	provider := mock.NewMockProvider()
	vectors, err := vector.NewLocal(provider, repos.Points)
	require.NoError(t, err)

	keywords, err := lexical.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { keywords.Close() })

	splitter := split.NewRecursive(split.WithChunkSize(200), split.WithChunkOverlap(20))

	collector := events.NewCollector()
	ix, err := indexer.New(repos.Documents, repos.Workspaces, vectors, keywords, splitter,
		indexer.WithPublisher(collector))
	require.NoError(t, err)

	connector := source.NewStatic()
	pipeline, err := New(Deps{
		Queue:      q,
		Connector:  connector,
		Splitter:   splitter,
		Provider:   provider,
		Vectors:    vectors,
		Keywords:   keywords,
		Indexer:    ix,
		Documents:  repos.Documents,
		Workspaces: repos.Workspaces,
		Processed:  repos.Processed,
	}, WithPublisher(collector))
	require.NoError(t, err)
	t.Cleanup(func() { pipeline.Close() })

	require.NoError(t, pipeline.Run())

	return &testRig{
		pipeline:  pipeline,
		repos:     repos,
		connector: connector,
		provider:  provider,
		vectors:   vectors,
		keywords:  keywords,
		indexer:   ix,
		collector: collector,
	}
}

func (r *testRig) waitSynced(t *testing.T, workspaceID, sourceID string) *core.DocumentEntry {
	t.Helper()
	var entry *core.DocumentEntry
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		got, err := r.repos.Documents.GetDocument(context.Background(), workspaceID, sourceID)
		if err == nil && got.Status == core.SyncSynced && got.Summary != "" {
			entry = got
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NotNil(t, entry, "document %s/%s never reached synced+summarized", workspaceID, sourceID)
	return entry
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

const sampleContent = "The onboarding guide explains accounts. " +
	"It also covers workstation setup in detail. " +
	"Finally it lists the security rules every employee must follow."

func TestEndToEndIngest(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.connector.Add("doc-1", "Onboarding Guide", sampleContent, time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)

	entry := rig.waitSynced(t, "ws-1", "doc-1")
	assert.Equal(t, "Onboarding Guide", entry.Title)
	assert.NotZero(t, entry.ChunkCount)
	assert.Len(t, entry.PointIDs, entry.ChunkCount)
	assert.Equal(t, core.Fingerprint(sampleContent), entry.Fingerprint)
	assert.True(t, entry.Embedding.Present())
	assert.NotEmpty(t, entry.Summary)

	// Both indexes can find it.
	count, err := rig.vectors.ExactCount(ctx, "ws-1", "doc-1", entry.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, entry.ChunkCount, count)
	matches, err := rig.keywords.Search(ctx, "ws-1", "workstation", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, matches)

	assert.Len(t, rig.collector.OfType(events.TypeDocumentIndexed), 1)
	completed := rig.collector.OfType(events.TypePipelineCompleted)
	require.Len(t, completed, 1)
	assert.NotEmpty(t, completed[0].Detail)

	// Every stage in the chain recorded its execution.
	snapshot := rig.pipeline.Metrics().Snapshot()
	for _, stage := range Stages() {
		snap := snapshot[stage]
		assert.GreaterOrEqual(t, snap.Processed, int64(1), "stage %s not counted", stage)
		assert.GreaterOrEqual(t, snap.Items, int64(1), "stage %s has no items", stage)
		assert.False(t, snap.LastProcessedAt.IsZero(), "stage %s has no last-processed time", stage)
	}
}

func TestDuplicateSubmissionSuppressed(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.connector.Add("doc-1", "Doc", sampleContent, time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	rig.waitSynced(t, "ws-1", "doc-1")

	embedCalls := rig.provider.LocalEmbedder().CallCount()

	// Same unchanged content again: fetch short-circuits, no model work.
	_, err = rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	waitUntil(t, 10*time.Second, func() bool {
		return rig.pipeline.Metrics().Snapshot()[StageFetch].Duplicates >= 1
	})

	assert.Equal(t, embedCalls, rig.provider.LocalEmbedder().CallCount())
	assert.Len(t, rig.collector.OfType(events.TypeDocumentIndexed), 1)
}

func TestChangedContentReindexed(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.connector.Add("doc-42", "Doc 42", sampleContent, time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-42")
	require.NoError(t, err)
	v1 := rig.waitSynced(t, "ws-1", "doc-42")

	changed := sampleContent + " A fresh paragraph about the revised travel policy was appended."
	rig.connector.Add("doc-42", "Doc 42", changed, time.Time{})
	_, err = rig.pipeline.StartIngest(ctx, "ws-1", "doc-42")
	require.NoError(t, err)
	waitUntil(t, 15*time.Second, func() bool {
		entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-42")
		return err == nil && entry.Fingerprint == core.Fingerprint(changed) && entry.Status == core.SyncSynced
	})

	entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-42")
	require.NoError(t, err)
	for _, oldID := range v1.PointIDs {
		assert.NotContains(t, entry.PointIDs, oldID, "point handle reused across versions")
	}

	// Old version's points are gone from the dense index.
	count, err := rig.vectors.ExactCount(ctx, "ws-1", "doc-42", v1.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	matches, err := rig.keywords.Search(ctx, "ws-1", "travel policy", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, matches)
}

func TestDeleteBypassesChain(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.connector.Add("doc-1", "Doc", sampleContent, time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	rig.waitSynced(t, "ws-1", "doc-1")

	_, err = rig.pipeline.StartDelete(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	waitUntil(t, 10*time.Second, func() bool {
		entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
		return err == nil && entry.Status == core.SyncDeleted
	})

	// Keyword entries went with the delete; dense points wait for the
	// reconciler.
	matches, err := rig.keywords.Search(ctx, "ws-1", "onboarding", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = rig.indexer.ReconcileOrphans(ctx, "ws-1")
	require.NoError(t, err)
	count, err := rig.vectors.ExactCount(ctx, "ws-1", "doc-1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Len(t, rig.collector.OfType(events.TypeDocumentDeleted), 1)
}

func TestScanUpgradeRedirectsEmbedding(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	// Workspace starts cloud-eligible: public, prefers cloud, has consent.
	ws := &core.WorkspaceRecord{
		ID:           "ws-1",
		Trust:        core.TrustPublic,
		PreferCloud:  true,
		CloudConsent: true,
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, rig.repos.Workspaces.PutWorkspace(ctx, ws))

	rig.provider.MockScanner().ScanFunc = func(ctx context.Context, texts []string, current core.TrustLevel) (*ai.ScanResult, error) {
		return &ai.ScanResult{
			RecommendedTrust: core.TrustRegulated,
			ShouldUpgrade:    true,
			DetectedPatterns: []string{"pii_ssn"},
		}, nil
	}

	rig.connector.Add("doc-1", "Sensitive",
		"Employee SSN records live in this folder. Handle every file with care "+
			"and never copy its contents to an external machine.", time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	rig.waitSynced(t, "ws-1", "doc-1")

	got, err := rig.repos.Workspaces.GetWorkspace(ctx, "ws-1")
	require.NoError(t, err)
	assert.Equal(t, core.TrustRegulated, got.Trust)
	assert.Equal(t, core.TrustPublic, got.PriorTrust)
	assert.True(t, got.NeedsReview)

	// Regulated content must not reach the cloud embedder even though the
	// workspace was cloud-eligible at submission time.
	assert.Zero(t, rig.provider.CloudEmbedder().CallCount())
	assert.NotZero(t, rig.provider.LocalEmbedder().CallCount())

	assert.Len(t, rig.collector.OfType(events.TypeTrustUpgraded), 1)
}

func TestScanFailureIsNonFatal(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.provider.MockScanner().ScanFunc = func(ctx context.Context, texts []string, current core.TrustLevel) (*ai.ScanResult, error) {
		return nil, context.DeadlineExceeded
	}

	rig.connector.Add("doc-1", "Doc", sampleContent, time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	entry := rig.waitSynced(t, "ws-1", "doc-1")
	assert.Equal(t, core.SyncSynced, entry.Status)

	snapshot := rig.pipeline.Metrics().Snapshot()
	assert.NotZero(t, snapshot[StageScan].Failed)
}

func TestEnrichFailureIsNonFatal(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.provider.MockSummarizer().SummarizeFunc = func(ctx context.Context, content string) (string, error) {
		return "", errors.New("summarizer unavailable")
	}

	rig.connector.Add("doc-1", "Doc", sampleContent, time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	waitUntil(t, 15*time.Second, func() bool {
		entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
		return err == nil && entry.Status == core.SyncSynced
	})

	entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, core.SyncSynced, entry.Status)
	assert.Empty(t, entry.Summary)

	// The failure is counted but the chain still ran to completion.
	waitUntil(t, 10*time.Second, func() bool {
		return rig.pipeline.Metrics().Snapshot()[StageEnrich].Failed >= 1
	})
	assert.Len(t, rig.collector.OfType(events.TypePipelineCompleted), 1)
}

func TestSkipEnrichLeavesDocumentUnsummarized(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.connector.Add("doc-1", "Doc", sampleContent, time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-1", WithSkipEnrich())
	require.NoError(t, err)
	waitUntil(t, 15*time.Second, func() bool {
		entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
		return err == nil && entry.Status == core.SyncSynced &&
			rig.pipeline.Metrics().Snapshot()[StageEnrich].Processed >= 1
	})

	entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	assert.Empty(t, entry.Summary)
	assert.Zero(t, rig.provider.MockSummarizer().CallCount())
}

func TestShortContentSkipsSummarizer(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.connector.Add("doc-1", "Note", "A short reminder.", time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	waitUntil(t, 15*time.Second, func() bool {
		return rig.pipeline.Metrics().Snapshot()[StageEnrich].Processed >= 1
	})

	entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, core.SyncSynced, entry.Status)
	assert.Empty(t, entry.Summary)
	assert.Zero(t, rig.provider.MockSummarizer().CallCount())
}

func TestStartFromStageRecovery(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	// Inject directly at the chunk stage as crash recovery would.
	data := &JobData{
		Op:          OpIngest,
		WorkspaceID: "ws-1",
		SourceID:    "doc-9",
		SourceType:  "static",
		Title:       "Recovered Doc",
		Content:     sampleContent,
		Fingerprint: core.Fingerprint(sampleContent),
		ModifiedAt:  time.Now().UTC(),
	}
	_, err := rig.pipeline.StartFromStage(ctx, StageChunk, data)
	require.NoError(t, err)

	waitUntil(t, 15*time.Second, func() bool {
		entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-9")
		return err == nil && entry.Status == core.SyncSynced
	})

	entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-9")
	require.NoError(t, err)
	assert.NotZero(t, entry.ChunkCount)
}

func TestEmptyContentClearsPreviousVersion(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	rig.connector.Add("doc-1", "Doc", sampleContent, time.Time{})
	_, err := rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	rig.waitSynced(t, "ws-1", "doc-1")

	rig.connector.Add("doc-1", "Doc", "", time.Time{})
	_, err = rig.pipeline.StartIngest(ctx, "ws-1", "doc-1")
	require.NoError(t, err)
	waitUntil(t, 15*time.Second, func() bool {
		entry, err := rig.repos.Documents.GetDocument(ctx, "ws-1", "doc-1")
		return err == nil && entry.Status == core.SyncSynced && entry.ChunkCount == 0
	})

	count, err := rig.vectors.ExactCount(ctx, "ws-1", "doc-1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	matches, err := rig.keywords.Search(ctx, "ws-1", "onboarding", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestJobDataCarriesChainContext(t *testing.T) {
	started := time.Now().UTC().Truncate(time.Millisecond)
	data := &JobData{
		Op:          OpIngest,
		WorkspaceID: "ws-1",
		SourceID:    "doc-1",
		StartedAt:   started,
		PrevStage:   StageScan.String(),
		SkipEnrich:  true,
	}
	payload, err := data.encode()
	require.NoError(t, err)

	got, err := decodeJobData(payload)
	require.NoError(t, err)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, StageScan.String(), got.PrevStage)
	assert.True(t, got.SkipEnrich)
}

func TestHealthReport(t *testing.T) {
	rig := newRig(t)
	ctx := context.Background()

	report, err := rig.pipeline.Health(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy)
	assert.Len(t, report.Stages, len(Stages()))

	// Push one stage over the failure threshold.
	for i := int64(0); i <= failureThreshold; i++ {
		rig.pipeline.Metrics().stage(StageEmbed).recordError(context.DeadlineExceeded)
	}
	report, err = rig.pipeline.Health(ctx)
	require.NoError(t, err)
	assert.False(t, report.Healthy)
}
