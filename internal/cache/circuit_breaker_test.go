package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move the breaker past its timeout without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(maxFailures, halfOpen int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      maxFailures,
		Timeout:          time.Minute,
		HalfOpenMaxCalls: halfOpen,
	})
	cb.now = clock.Now
	return cb, clock
}

func fail() error { return fmt.Errorf("operation failed") }

func ok() error { return nil }

func TestCircuitBreakerBasicFlow(t *testing.T) {
	cb, _ := newTestBreaker(3, 2)

	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected initial state to be Closed, got %v", cb.GetState())
	}

	if err := cb.Execute(ok); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected state to remain Closed after success, got %v", cb.GetState())
	}
}

func TestCircuitBreakerFailureTransition(t *testing.T) {
	cb, _ := newTestBreaker(2, 2)

	if err := cb.Execute(fail); err == nil {
		t.Error("Expected error, got nil")
	}
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected state to be Closed after first failure, got %v", cb.GetState())
	}

	if err := cb.Execute(fail); err == nil {
		t.Error("Expected error, got nil")
	}
	if cb.GetState() != CircuitBreakerOpen {
		t.Errorf("Expected state to be Open after reaching failure threshold, got %v", cb.GetState())
	}
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, 1)

	_ = cb.Execute(fail)
	_ = cb.Execute(ok)
	_ = cb.Execute(fail)

	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected non-consecutive failures to keep the breaker Closed, got %v", cb.GetState())
	}
}

func TestCircuitBreakerOpenState(t *testing.T) {
	cb, _ := newTestBreaker(1, 2)

	_ = cb.Execute(fail)
	if cb.GetState() != CircuitBreakerOpen {
		t.Errorf("Expected state to be Open, got %v", cb.GetState())
	}

	err := cb.Execute(func() error {
		t.Error("Operation should not be executed when circuit is open")
		return nil
	})
	if err != ErrCircuitBreakerOpen {
		t.Errorf("Expected ErrCircuitBreakerOpen, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenCloses(t *testing.T) {
	cb, clock := newTestBreaker(1, 2)

	_ = cb.Execute(fail)
	clock.Advance(time.Minute)

	if err := cb.Execute(ok); err != nil {
		t.Fatalf("Expected trial call to run, got %v", err)
	}
	if cb.GetState() != CircuitBreakerHalfOpen {
		t.Errorf("Expected HalfOpen after first trial success, got %v", cb.GetState())
	}

	if err := cb.Execute(ok); err != nil {
		t.Fatalf("Expected second trial call to run, got %v", err)
	}
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected Closed after all trial calls succeeded, got %v", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, 2)

	_ = cb.Execute(fail)
	clock.Advance(time.Minute)

	if err := cb.Execute(fail); err == nil {
		t.Error("Expected trial failure to be returned")
	}
	if cb.GetState() != CircuitBreakerOpen {
		t.Errorf("Expected Open after failed trial, got %v", cb.GetState())
	}
	if err := cb.Execute(ok); err != ErrCircuitBreakerOpen {
		t.Errorf("Expected ErrCircuitBreakerOpen before timeout elapses again, got %v", err)
	}
}

func TestCircuitBreakerStateChangeHook(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      1,
		Timeout:          time.Minute,
		HalfOpenMaxCalls: 1,
		OnStateChange: func(from, to CircuitBreakerState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	clock := &fakeClock{now: time.Now()}
	cb.now = clock.Now

	_ = cb.Execute(fail)
	clock.Advance(2 * time.Minute)
	_ = cb.Execute(ok)

	expected := []string{"closed->open", "open->half-open", "half-open->closed"}
	if fmt.Sprint(transitions) != fmt.Sprint(expected) {
		t.Errorf("Expected transitions %v, got %v", expected, transitions)
	}
}

func TestCircuitBreakerConcurrency(t *testing.T) {
	cb, _ := newTestBreaker(5, 3)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = cb.Execute(func() error {
					if (id+j)%3 == 0 {
						return fmt.Errorf("failure %d-%d", id, j)
					}
					return nil
				})
			}
		}(i)
	}
	wg.Wait()

	err := cb.Execute(ok)
	if err != nil && err != ErrCircuitBreakerOpen {
		t.Errorf("Unexpected error after concurrent operations: %v", err)
	}

	stats := cb.GetStats()
	if _, ok := stats["state"].(string); !ok {
		t.Errorf("Expected string state in stats, got %v", stats["state"])
	}
}
