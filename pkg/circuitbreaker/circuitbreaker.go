package circuitbreaker

import (
	"fmt"
	"sync"
	"time"
)

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when the breaker rejects a call without executing it.
var ErrOpen = fmt.Errorf("circuit breaker is open")

// Config holds breaker thresholds.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // successes in half-open before closing
	Timeout          time.Duration // open duration before probing half-open
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker short-circuits calls to a dependency that keeps failing, so
// a dead backend stops adding latency to every request.
type CircuitBreaker struct {
	config Config

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
}

func New(config Config) *CircuitBreaker {
	return &CircuitBreaker{config: config, state: StateClosed}
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrOpen
	}
	err := fn()
	cb.record(err == nil)
	return err
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.openedAt) >= cb.config.Timeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
			return true
		}
		return false
	}
	return true
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if success {
		switch cb.state {
		case StateHalfOpen:
			cb.successCount++
			if cb.successCount >= cb.config.SuccessThreshold {
				cb.state = StateClosed
				cb.failureCount = 0
			}
		case StateClosed:
			cb.failureCount = 0
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = time.Now()
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
	}
}
