package ingestion

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageMetricsLatencyRunningMean(t *testing.T) {
	m := NewMetrics()
	sm := m.stage(StageEmbed)

	sm.recordSuccess(100*time.Millisecond, 4)
	sm.recordSuccess(300*time.Millisecond, 2)

	snap := m.Snapshot()[StageEmbed]
	assert.Equal(t, int64(2), snap.Processed)
	assert.Equal(t, int64(6), snap.Items)
	assert.Equal(t, int64(400), snap.TotalLatencyMS)
	assert.Equal(t, int64(200), snap.AvgLatencyMS)
	assert.False(t, snap.LastProcessedAt.IsZero())
}

func TestStageMetricsZeroProcessedHasNoAverage(t *testing.T) {
	m := NewMetrics()
	m.stage(StageFetch).recordError(errors.New("unreachable"))

	snap := m.Snapshot()[StageFetch]
	assert.Equal(t, int64(1), snap.Failed)
	assert.Zero(t, snap.AvgLatencyMS)
	assert.True(t, snap.LastProcessedAt.IsZero())
}

func TestStageMetricsTruncatesLastError(t *testing.T) {
	m := NewMetrics()
	long := strings.Repeat("x", 2*maxStageErrorLen)
	m.stage(StageIndex).recordError(errors.New(long))

	snap := m.Snapshot()[StageIndex]
	require.Len(t, snap.LastError, maxStageErrorLen)
	assert.False(t, snap.LastErrorAt.IsZero())
}

func TestSnapshotCoversEveryStage(t *testing.T) {
	snapshot := NewMetrics().Snapshot()
	require.Len(t, snapshot, len(Stages()))
	for _, stage := range Stages() {
		_, ok := snapshot[stage]
		assert.True(t, ok, "stage %s missing from snapshot", stage)
	}
}
