package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)
	assert.True(t, b.Allow())

	b.Failure()
	b.Failure()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	b.Failure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)
	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker("test", 1, 20*time.Millisecond)
	b.Failure()
	assert.False(t, b.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.Allow(), "cooldown elapsed, probe allowed")
	assert.Equal(t, StateHalfOpen, b.State())

	b.Success()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("test", 2, 20*time.Millisecond)
	b.Failure()
	b.Failure()
	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.Allow())

	b.Failure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}
