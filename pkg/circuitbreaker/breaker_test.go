package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBreaker(resetTimeout time.Duration) *CircuitBreaker {
	return New(Config{
		FailureThreshold: 3,
		ResetTimeout:     resetTimeout,
		HalfOpenMaxCalls: 2,
	})
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	assert.True(t, cb.Allow())

	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.GetState())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())
	assert.False(t, cb.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	cb.Failure()
	cb.Failure()
	cb.Success()

	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateClosed, cb.GetState(), "the streak was broken by a success")
}

func TestBreaker_HalfOpenProbes(t *testing.T) {
	cb := newTestBreaker(time.Millisecond)

	cb.Failure()
	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())

	time.Sleep(5 * time.Millisecond)

	// the first call after the reset timeout is a probe
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.GetState())

	// second probe allowed, third rejected
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow())

	cb.Success()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(time.Millisecond)

	cb.Failure()
	cb.Failure()
	cb.Failure()

	time.Sleep(5 * time.Millisecond)
	assert.True(t, cb.Allow())

	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestBreaker_Reset(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	cb.Failure()
	cb.Failure()
	cb.Failure()
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.Allow())
}

func TestBreaker_Metrics(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	cb.Failure()

	metrics := cb.GetMetrics()
	assert.Equal(t, "closed", metrics["state"])
	assert.Equal(t, 1, metrics["failure_count"])
	assert.Equal(t, 3, metrics["failure_threshold"])
}
