package service

import "sync"

// BreakerState is the circuit breaker position.
type BreakerState string

const (
	BreakerClosed BreakerState = "closed"
	BreakerOpen   BreakerState = "open"
)

// CircuitBreaker guards remote polling. It trips open once consecutive
// failures reach the threshold and stays open until an explicit health check
// passes; successes while closed reset the failure streak. A single-threshold
// breaker, not exponential backoff.
type CircuitBreaker struct {
	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	threshold           int
}

// NewCircuitBreaker builds a closed breaker with the given trip threshold.
func NewCircuitBreaker(threshold int) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &CircuitBreaker{state: BreakerClosed, threshold: threshold}
}

// Allow reports whether a poll tick may execute.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == BreakerClosed
}

// RecordSuccess resets the failure streak.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
}

// RecordFailure counts a failure and reports whether this call tripped the
// breaker open.
func (b *CircuitBreaker) RecordFailure() (tripped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	if b.state == BreakerClosed && b.consecutiveFailures >= b.threshold {
		b.state = BreakerOpen
		return true
	}
	return false
}

// HealthCheckPassed closes the breaker and clears the failure streak. This is
// the only way back from open.
func (b *CircuitBreaker) HealthCheckPassed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.consecutiveFailures = 0
}

// State returns the current position.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *CircuitBreaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}
