package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_AllowUntilEmpty(t *testing.T) {
	tb := NewTokenBucket(3, 0)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "bucket is exhausted and refill rate is zero")
}

func TestTokenBucket_AllowN(t *testing.T) {
	tb := NewTokenBucket(10, 0)

	assert.True(t, tb.AllowN(7))
	assert.False(t, tb.AllowN(5), "only 3 tokens left")
	assert.True(t, tb.AllowN(3))
}

func TestTokenBucket_Reset(t *testing.T) {
	tb := NewTokenBucket(2, 0)

	assert.True(t, tb.AllowN(2))
	assert.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.AllowN(2))
}

func TestTokenBucket_AvailableCapped(t *testing.T) {
	tb := NewTokenBucket(5, 1000)

	assert.InDelta(t, 5.0, tb.Available(), 0.01, "refill never exceeds capacity")
}
