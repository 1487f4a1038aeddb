package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterEnforcesMinimumDelay(t *testing.T) {
	limiter := NewHTTPRequestRateLimiter(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	require.Less(t, time.Since(start), 30*time.Millisecond)

	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))
	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	require.Equal(t, int64(3), limiter.GetRequestCount())
	require.Equal(t, 30*time.Millisecond, limiter.MinimumDelay())

	limiter.Reset()
	require.Zero(t, limiter.GetRequestCount())
}

func TestRateLimiterHonoursCancellation(t *testing.T) {
	limiter := NewHTTPRequestRateLimiter(time.Hour)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int64(1), limiter.GetRequestCount())
}
