package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream 503")

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

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

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock, *[]string) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	var transitions []string
	cb := New(Config{
		Name:      "weather",
		Threshold: threshold,
		Timeout:   time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	cb.now = clock.Now
	return cb, clock, &transitions
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _, transitions := newTestBreaker(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Call(ctx, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d error = %v, want upstream error", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}

	called := false
	err := cb.Call(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) || called {
		t.Errorf("open circuit: err = %v, called = %v", err, called)
	}
	if len(*transitions) != 1 || (*transitions)[0] != "weather:closed->open" {
		t.Errorf("transitions = %q", *transitions)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb, _, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = cb.Call(ctx, fail)
	_ = cb.Call(ctx, succeed)
	_ = cb.Call(ctx, fail)

	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.GetState())
	}
	if got := cb.GetStats().ConsecutiveFailures; got != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", got)
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	tests := []struct {
		name  string
		probe func(context.Context) error
		want  State
	}{
		{"probe success closes", succeed, StateClosed},
		{"probe failure reopens", fail, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock, _ := newTestBreaker(1)
			ctx := context.Background()
			_ = cb.Call(ctx, fail)

			clock.Advance(30 * time.Second)
			if err := cb.Call(ctx, succeed); !errors.Is(err, ErrOpen) {
				t.Fatalf("before timeout err = %v, want ErrOpen", err)
			}

			clock.Advance(31 * time.Second)
			_ = cb.Call(ctx, tt.probe)
			if cb.GetState() != tt.want {
				t.Errorf("state = %v, want %v", cb.GetState(), tt.want)
			}
		})
	}
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	cb, clock, _ := newTestBreaker(1)
	ctx := context.Background()
	_ = cb.Call(ctx, fail)
	clock.Advance(2 * time.Minute)

	inProbe := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Call(ctx, func(context.Context) error {
			close(inProbe)
			<-release
			return nil
		})
	}()

	<-inProbe
	if err := cb.Call(ctx, succeed); !errors.Is(err, ErrOpen) {
		t.Errorf("second call during probe err = %v, want ErrOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("probe err = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %v, want closed", cb.GetState())
	}
}

func TestCircuitBreaker_CallerCancelNotCounted(t *testing.T) {
	cb, _, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Call(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("cancelled call opened the circuit")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _, transitions := newTestBreaker(1)
	_ = cb.Call(context.Background(), fail)
	cb.Reset()

	if cb.GetState() != StateClosed || cb.GetStats().ConsecutiveFailures != 0 {
		t.Errorf("after Reset: %+v", cb.GetStats())
	}
	if got := (*transitions)[len(*transitions)-1]; got != "weather:open->closed" {
		t.Errorf("last transition = %q", got)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
