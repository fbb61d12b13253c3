package cache

import (
	"errors"
	"sync"
	"time"
)

type CircuitBreakerState int

const (
	CircuitBreakerClosed CircuitBreakerState = iota
	CircuitBreakerOpen
	CircuitBreakerHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	MaxFailures      int           `json:"max_failures"`
	Timeout          time.Duration `json:"timeout"`
	HalfOpenMaxCalls int           `json:"half_open_max_calls"`

	// OnStateChange, when set, is called after every transition while the
	// breaker lock is not held.
	OnStateChange func(from, to CircuitBreakerState)
}

func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker stops calling a failing dependency for Timeout after
// MaxFailures consecutive errors, then lets up to HalfOpenMaxCalls trial
// calls through. All trials succeeding closes it again; any trial failing
// reopens it.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	halfOpenCalls   int
	lastFailureTime time.Time

	maxFailures      int
	timeout          time.Duration
	halfOpenMaxCalls int
	onStateChange    func(from, to CircuitBreakerState)
	now              func() time.Time
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	halfOpenMax := config.HalfOpenMaxCalls
	if halfOpenMax < 1 {
		halfOpenMax = 1
	}

	return &CircuitBreaker{
		state:            CircuitBreakerClosed,
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		halfOpenMaxCalls: halfOpenMax,
		onStateChange:    config.OnStateChange,
		now:              time.Now,
	}
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()
	cb.after(err == nil)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	from := cb.state

	switch cb.state {
	case CircuitBreakerOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.timeout {
			cb.mu.Unlock()
			return ErrCircuitBreakerOpen
		}
		cb.state = CircuitBreakerHalfOpen
		cb.successCount = 0
		cb.halfOpenCalls = 0
		fallthrough
	case CircuitBreakerHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			to := cb.state
			cb.mu.Unlock()
			cb.notify(from, to)
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCalls++
	}

	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
	return nil
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	from := cb.state

	if success {
		switch cb.state {
		case CircuitBreakerClosed:
			cb.failureCount = 0
		case CircuitBreakerHalfOpen:
			cb.successCount++
			if cb.successCount >= cb.halfOpenMaxCalls {
				cb.state = CircuitBreakerClosed
				cb.failureCount = 0
				cb.successCount = 0
				cb.halfOpenCalls = 0
			}
		}
	} else {
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		switch cb.state {
		case CircuitBreakerClosed:
			if cb.failureCount >= cb.maxFailures {
				cb.state = CircuitBreakerOpen
			}
		case CircuitBreakerHalfOpen:
			cb.state = CircuitBreakerOpen
			cb.successCount = 0
			cb.halfOpenCalls = 0
		}
	}

	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
}

func (cb *CircuitBreaker) notify(from, to CircuitBreakerState) {
	if from != to && cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"state":           cb.state.String(),
		"failure_count":   cb.failureCount,
		"success_count":   cb.successCount,
		"last_failure":    cb.lastFailureTime.Unix(),
		"max_failures":    cb.maxFailures,
		"timeout_seconds": cb.timeout.Seconds(),
	}
}
