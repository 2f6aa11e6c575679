package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestRateLimiter() *RateLimiter {
	return NewRateLimiter(100*time.Millisecond, testLogger())
}

func TestApplyDelay_RespectsContextCancellation(t *testing.T) {
	rl := newTestRateLimiter()
	host := "example.test"
	rl.UpdateLastRequestTime(host)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := rl.ApplyDelay(ctx, host, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestApplyDelay_SleepsForExpectedDuration(t *testing.T) {
	rl := newTestRateLimiter()
	host := "example.test"
	rl.UpdateLastRequestTime(host)

	start := time.Now()
	assert.NoError(t, rl.ApplyDelay(context.Background(), host, 100*time.Millisecond))
	elapsed := time.Since(start)

	// jitter is +/- 10%
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestApplyDelay_NoDelayOnFirstRequest(t *testing.T) {
	rl := newTestRateLimiter()

	start := time.Now()
	assert.NoError(t, rl.ApplyDelay(context.Background(), "fresh-host.test", 5*time.Second))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestApplyDelay_ZeroDelayFallsBackToDefault(t *testing.T) {
	rl := NewRateLimiter(0, testLogger())
	rl.UpdateLastRequestTime("example.test")

	start := time.Now()
	assert.NoError(t, rl.ApplyDelay(context.Background(), "example.test", 0))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestUpdateLastRequestTime_Concurrent(t *testing.T) {
	rl := newTestRateLimiter()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rl.UpdateLastRequestTime("example.test")
		}()
	}
	wg.Wait()

	rl.hostLastRequestMu.Lock()
	_, ok := rl.hostLastRequest["example.test"]
	rl.hostLastRequestMu.Unlock()
	assert.True(t, ok)
}
