package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendLimiterAllowsBurst(t *testing.T) {
	limiter := NewSendLimiter(1, 3)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "burst tokens must not block")
}

func TestSendLimiterPacesBeyondBurst(t *testing.T) {
	limiter := NewSendLimiter(50, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond, "second token accrues at the configured rate")
}

func TestSendLimiterDisabledWhenRateZero(t *testing.T) {
	limiter := NewSendLimiter(0, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSendLimiterHonorsContext(t *testing.T) {
	limiter := NewSendLimiter(0.001, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.Wait(cancelCtx), context.DeadlineExceeded)
}

func TestSendLimiterNilIsNoop(t *testing.T) {
	var limiter *SendLimiter
	assert.NoError(t, limiter.Wait(context.Background()))
}
