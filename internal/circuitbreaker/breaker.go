package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned by Call while the circuit is open
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	// StateClosed means requests are allowed
	StateClosed State = iota
	// StateOpen means requests fail fast until the timeout elapses
	StateOpen
	// StateHalfOpen means a single probe request is allowed
	StateHalfOpen
)

// String returns the string representation of the state
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

// CircuitBreaker stops calling an upstream service after repeated failures
type CircuitBreaker struct {
	mu sync.Mutex

	name          string
	threshold     int
	timeout       time.Duration
	onStateChange func(name string, from, to State)
	now           func() time.Time

	state               State
	consecutiveFailures int
	probing             bool
	lastFailureTime     time.Time
}

// Config holds configuration for the circuit breaker
type Config struct {
	Name          string                            // Service name passed to OnStateChange
	Threshold     int                               // Consecutive failures before opening (default: 5)
	Timeout       time.Duration                     // Time to wait before a probe (default: 30s)
	OnStateChange func(name string, from, to State) // Called without the lock held
}

// New creates a new circuit breaker with the given configuration
func New(config Config) *CircuitBreaker {
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &CircuitBreaker{
		name:          config.Name,
		threshold:     config.Threshold,
		timeout:       config.Timeout,
		onStateChange: config.OnStateChange,
		now:           time.Now,
		state:         StateClosed,
	}
}

// Name returns the service name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call runs fn unless the circuit is open. Context cancellation by the
// caller is not counted as an upstream failure.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		cb.release()
		return err
	}
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()

	switch cb.state {
	case StateClosed:
		cb.mu.Unlock()
		return nil

	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.timeout {
			cb.mu.Unlock()
			return fmt.Errorf("%s: %w", cb.name, ErrOpen)
		}
		cb.probing = true
		notify := cb.setState(StateHalfOpen)
		cb.mu.Unlock()
		notify()
		return nil

	case StateHalfOpen:
		defer cb.mu.Unlock()
		if cb.probing {
			return fmt.Errorf("%s: %w", cb.name, ErrOpen)
		}
		cb.probing = true
		return nil

	default:
		cb.mu.Unlock()
		return fmt.Errorf("unknown circuit breaker state")
	}
}

// release gives back a half-open probe slot without recording a result
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	cb.probing = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	cb.probing = false

	var notify func()
	if err != nil {
		cb.lastFailureTime = cb.now()
		cb.consecutiveFailures++
		if cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.threshold {
			notify = cb.setState(StateOpen)
		}
	} else {
		cb.consecutiveFailures = 0
		notify = cb.setState(StateClosed)
	}
	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// setState changes the state and returns the callback to run after unlocking
func (cb *CircuitBreaker) setState(newState State) func() {
	oldState := cb.state
	if oldState == newState {
		return func() {}
	}
	cb.state = newState

	if cb.onStateChange == nil {
		return func() {}
	}
	return func() { cb.onStateChange(cb.name, oldState, newState) }
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit and clears the failure count
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.consecutiveFailures = 0
	cb.probing = false
	notify := cb.setState(StateClosed)
	cb.mu.Unlock()
	notify()
}

// GetStats returns statistics about the circuit breaker
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		LastFailureTime:     cb.lastFailureTime,
	}
}

// Stats holds statistics about the circuit breaker
type Stats struct {
	State               State
	ConsecutiveFailures int
	LastFailureTime     time.Time
}
