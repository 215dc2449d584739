package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name      string
		perMinute int
		burst     int
		calls     int
		wantPass  int
	}{
		{name: "burst allows initial requests", perMinute: 60, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst blocks", perMinute: 60, burst: 2, calls: 5, wantPass: 2},
		{name: "single token", perMinute: 1, burst: 1, calls: 4, wantPass: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.perMinute, tt.burst)
			defer rl.Stop()

			passed := 0
			for range tt.calls {
				if rl.Allow("subject") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	assert.True(t, rl.Allow("key1"))
	assert.False(t, rl.Allow("key1"), "key1 should be exhausted")
	assert.True(t, rl.Allow("key2"), "key2 should be independent")
}

func TestKeyedRateLimiter_RetryAfter(t *testing.T) {
	rl := New(60, 1) // one token per second
	defer rl.Stop()

	assert.Zero(t, rl.RetryAfter("key"), "a fresh bucket has a token")

	rl.Allow("key")
	wait := rl.RetryAfter("key")
	assert.Greater(t, wait, 500*time.Millisecond)
	assert.LessOrEqual(t, wait, time.Second)
}

func TestKeyedRateLimiter_EvictsIdleKeys(t *testing.T) {
	rl := New(60, 1)
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(DefaultIdleTTL + time.Second)
	rl.Allow("fresh")

	rl.evictIdle()
	assert.Equal(t, 1, rl.Len())

	assert.True(t, rl.Allow("old"), "an evicted key starts with a full bucket")
}

func TestKeyedRateLimiter_StopTwice(t *testing.T) {
	rl := New(60, 1)
	rl.Stop()
	assert.NoError(t, rl.Shutdown())
}
