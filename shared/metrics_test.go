package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServiceMetricsSnapshot(t *testing.T) {
	metrics := NewServiceMetrics("QuoteSyncJob")
	metrics.RecordRequest(true, 10*time.Millisecond)
	metrics.RecordRequest(true, 30*time.Millisecond)
	metrics.RecordRequest(false, 20*time.Millisecond)
	metrics.IncrementCustomCounter("sync_partial")
	metrics.IncrementCustomCounter("sync_partial")

	snapshot := metrics.GetSnapshot()
	require.Equal(t, "QuoteSyncJob", snapshot.ServiceName)
	require.Equal(t, int64(3), snapshot.TotalRequests)
	require.Equal(t, int64(1), snapshot.FailedRequests)
	require.InDelta(t, 66.67, metrics.GetSuccessRate(), 0.01)
	require.Equal(t, 20*time.Millisecond, snapshot.AverageProcessingTime)
	require.Equal(t, 10*time.Millisecond, snapshot.MinProcessingTime)
	require.Equal(t, 30*time.Millisecond, snapshot.MaxProcessingTime)
	require.Equal(t, int64(2), snapshot.Counters["sync_partial"])

	metrics.Reset()
	require.Zero(t, metrics.GetSnapshot().TotalRequests)
	require.Zero(t, metrics.GetSuccessRate())
}
