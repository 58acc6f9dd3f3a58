package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketExhaustion(t *testing.T) {
	bucket := NewTokenBucket(2, 1, time.Hour)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.True(t, allowed)

	allowed, wait := bucket.Allow()
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))
}

func TestTokenBucketRefill(t *testing.T) {
	bucket := NewTokenBucket(1, 1, 10*time.Millisecond)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.False(t, allowed)

	time.Sleep(15 * time.Millisecond)

	allowed, _ = bucket.Allow()
	assert.True(t, allowed)
}

func TestRateLimiterIsolatesUsersAndActions(t *testing.T) {
	limiter := NewRateLimiter()

	for i := 0; i < 20; i++ {
		allowed, _ := limiter.Allow("alice", "send_message")
		assert.True(t, allowed)
	}
	allowed, _ := limiter.Allow("alice", "send_message")
	assert.False(t, allowed)

	// A different user, and a different action for the same user, still pass.
	allowed, _ = limiter.Allow("bob", "send_message")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("alice", "follow")
	assert.True(t, allowed)
}
