package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/ai/mock"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/events"
	"github.com/poiesic/indexit/indexer"
	"github.com/poiesic/indexit/lexical"
	"github.com/poiesic/indexit/source"
	"github.com/poiesic/indexit/split"
	badgerstore "github.com/poiesic/indexit/storage/badger"
	"github.com/poiesic/indexit/vector"
)

type rig struct {
	repos     *badgerstore.MemoryRepositories
	connector *source.Static
	indexer   *indexer.Indexer
	migrator  *Migrator
	collector *events.Collector
}

func newRig(t *testing.T) *rig {
	t.Helper()

	repos, err := badgerstore.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	vectors, err := vector.NewLocal(mock.NewMockProvider(), repos.Points)
	require.NoError(t, err)

	keywords, err := lexical.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { keywords.Close() })

	ix, err := indexer.New(repos.Documents, repos.Workspaces, vectors, keywords, split.NewRecursive())
	require.NoError(t, err)

	connector := source.NewStatic()
	collector := events.NewCollector()
	cfg := DefaultConfig()
	cfg.FetchBackoff = 10 * time.Millisecond
	migrator, err := New(repos.Documents, connector, ix, cfg, WithPublisher(collector))
	require.NoError(t, err)

	return &rig{
		repos:     repos,
		connector: connector,
		indexer:   ix,
		migrator:  migrator,
		collector: collector,
	}
}

// seedOutdated indexes a document and then rewrites its embedding metadata
// to an obsolete version, as a real pre-migration store would look.
func (r *rig) seedOutdated(t *testing.T, workspaceID, sourceID, content string) {
	t.Helper()
	ctx := context.Background()

	r.connector.Add(sourceID, "Doc "+sourceID, content, time.Time{})
	require.NoError(t, r.indexer.IndexDocument(ctx, workspaceID, sourceID, "static", "Doc "+sourceID, content, time.Now().UTC()))

	entry, err := r.repos.Documents.GetDocument(ctx, workspaceID, sourceID)
	require.NoError(t, err)
	entry.Embedding.Version = "local-old-model-384-v1"
	require.NoError(t, r.repos.Documents.PutDocument(ctx, entry))
}

func TestCandidateDocuments(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	r.seedOutdated(t, "ws-1", "doc-old", "Content from the previous model era.")

	// A freshly indexed document is already on the current spec.
	r.connector.Add("doc-new", "Doc doc-new", "Brand new content.", time.Time{})
	require.NoError(t, r.indexer.IndexDocument(ctx, "ws-1", "doc-new", "static", "Doc doc-new", "Brand new content.", time.Now().UTC()))

	candidates, err := r.migrator.CandidateDocuments(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "doc-old", candidates[0].SourceID)
}

func TestMigrationReindexesCandidates(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	r.seedOutdated(t, "ws-1", "doc-a", "First outdated document with enough text to chunk.")
	r.seedOutdated(t, "ws-1", "doc-b", "Second outdated document, also plenty of text.")

	status, err := r.migrator.Start(ctx, "ws-1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Total)

	waitCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	require.NoError(t, r.migrator.Wait(waitCtx))

	final := r.migrator.Status()
	assert.False(t, final.Running)
	assert.Equal(t, 2, final.Done)
	assert.Equal(t, 0, final.Failed)

	for _, sourceID := range []string{"doc-a", "doc-b"} {
		entry, err := r.repos.Documents.GetDocument(ctx, "ws-1", sourceID)
		require.NoError(t, err)
		assert.False(t, core.NeedsMigration(entry.Embedding),
			"%s still on old embedding version %q", sourceID, entry.Embedding.Version)
		assert.Equal(t, core.SyncSynced, entry.Status)
	}

	assert.Len(t, r.collector.OfType(events.TypeMigrationStarted), 1)
	assert.Len(t, r.collector.OfType(events.TypeMigrationFinished), 1)
}

func TestMigrationDryRun(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	r.seedOutdated(t, "ws-1", "doc-a", "Outdated content.")

	status, err := r.migrator.Start(ctx, "ws-1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Total)
	assert.False(t, status.Running)
	assert.True(t, status.DryRun)

	entry, err := r.repos.Documents.GetDocument(ctx, "ws-1", "doc-a")
	require.NoError(t, err)
	assert.True(t, core.NeedsMigration(entry.Embedding), "dry run actually re-indexed the document")

	// Dry run does not hold the run slot.
	_, err = r.migrator.Start(ctx, "ws-1", true)
	assert.NoError(t, err)
}

func TestMigrationRejectsConcurrentRuns(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	// A slow connector keeps the first migration in flight.
	for i := 0; i < 3; i++ {
		r.seedOutdated(t, "ws-1", "doc-"+string(rune('a'+i)), "Some outdated text to migrate.")
	}
	slow := &slowConnector{inner: r.connector, delay: 200 * time.Millisecond}
	cfg := DefaultConfig()
	cfg.Parallelism = 1
	migrator, err := New(r.repos.Documents, slow, r.indexer, cfg)
	require.NoError(t, err)

	_, err = migrator.Start(ctx, "ws-1", false)
	require.NoError(t, err)
	_, err = migrator.Start(ctx, "ws-1", false)
	assert.ErrorIs(t, err, ErrMigrationRunning)

	migrator.Cancel()
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, migrator.Wait(waitCtx))

	// After the cancelled run drains, a new run is accepted.
	_, err = migrator.Start(ctx, "ws-1", true)
	assert.NoError(t, err)
}

func TestMigrationCountsFetchFailures(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	r.seedOutdated(t, "ws-1", "doc-a", "Reachable document content.")
	r.seedOutdated(t, "ws-1", "doc-gone", "This one will vanish from the source.")
	r.connector.Remove("doc-gone")

	cfg := DefaultConfig()
	cfg.FetchAttempts = 1
	migrator, err := New(r.repos.Documents, r.connector, r.indexer, cfg)
	require.NoError(t, err)

	_, err = migrator.Start(ctx, "ws-1", false)
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	require.NoError(t, migrator.Wait(waitCtx))

	status := migrator.Status()
	assert.Equal(t, 1, status.Done)
	assert.Equal(t, 1, status.Failed)
	assert.NotEmpty(t, status.LastError)
}

type slowConnector struct {
	inner source.Connector
	delay time.Duration
}

func (s *slowConnector) FetchRaw(ctx context.Context, sourceID string) (*source.RawDocument, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.inner.FetchRaw(ctx, sourceID)
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = RetryWithBackoff(ctx, func() error {
		attempts++
		return errors.New("permanent")
	}, 2, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, "permanent", err.Error())
	assert.Equal(t, 2, attempts)

	err = RetryWithBackoff(ctx, func() error { return nil }, 0, time.Millisecond)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = RetryWithBackoff(cancelled, func() error { return nil }, 1, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}
