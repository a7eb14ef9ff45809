package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := NewCircuitBreaker(1)
	assert.Equal(t, BreakerClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3)

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.Allow())

	assert.True(t, b.RecordFailure(), "third failure should trip")
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())

	// Further failures while open are counted but never report a fresh trip.
	assert.False(t, b.RecordFailure())
	assert.Equal(t, 4, b.ConsecutiveFailures())
}

func TestBreakerDefaultThresholdIsOne(t *testing.T) {
	b := NewCircuitBreaker(0)
	assert.True(t, b.RecordFailure())
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsStreakButNotOpenState(t *testing.T) {
	b := NewCircuitBreaker(2)
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, 0, b.ConsecutiveFailures())

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())

	// Only an explicit health check reopens the path.
	b.RecordSuccess()
	assert.Equal(t, BreakerOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreakerHealthCheckPassedCloses(t *testing.T) {
	b := NewCircuitBreaker(1)
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())

	b.HealthCheckPassed()
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.ConsecutiveFailures())
	assert.True(t, b.Allow())
}
