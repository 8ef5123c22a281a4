package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(rate.Every(time.Hour), 3)

	for i := 0; i < 3; i++ {
		assert.True(t, tb.Allow(), "permit %d", i+1)
	}
	assert.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(rate.Every(time.Hour), 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.Error(t, err)
}

func TestWaitRefills(t *testing.T) {
	tb := NewTokenBucket(rate.Every(10*time.Millisecond), 1)
	require.True(t, tb.Allow())

	start := time.Now()
	require.NoError(t, tb.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestPauseBlocksAllow(t *testing.T) {
	tb := NewTokenBucket(rate.Inf, 1)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }

	tb.Pause(30 * time.Second)
	assert.False(t, tb.Allow())

	now = now.Add(31 * time.Second)
	assert.True(t, tb.Allow())

	tb.Pause(time.Minute)
	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestPauseCancelledWait(t *testing.T) {
	tb := NewTokenBucket(rate.Inf, 1)
	tb.Pause(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.Canceled)
}

func TestNewPerMinute(t *testing.T) {
	unlimited := NewPerMinute(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, unlimited.Allow())
	}

	limited := NewPerMinute(60, 2)
	assert.True(t, limited.Allow())
	assert.True(t, limited.Allow())
	assert.False(t, limited.Allow())
}

func TestResetConcurrentWithCallers(t *testing.T) {
	tb := NewTokenBucket(rate.Every(time.Millisecond), 2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tb.Allow()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, tb.Wait(ctx))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tb.Reset()
			}
		}()
	}
	wg.Wait()

	tb.Reset()
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
}
