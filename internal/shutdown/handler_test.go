package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yourusername/kukisti/internal/output"
)

func TestShutdown_StepOrder(t *testing.T) {
	h := NewHandler(output.NopLogger{}, time.Second)
	defer h.Stop()

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"session", "pool", "maintenance", "database"} {
		h.Register(name, func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			if name == "pool" {
				return errors.New("grace period exceeded")
			}
			return nil
		})
	}

	h.Shutdown()
	h.Shutdown()

	select {
	case <-h.Done():
	default:
		t.Fatal("Done() not closed after Shutdown")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 4 || order[0] != "session" || order[3] != "database" {
		t.Errorf("steps ran as %q, want registration order once, errors not stopping later steps", order)
	}
	if h.Forced() {
		t.Error("Forced() = true for a fast shutdown")
	}
}

func TestShutdown_ForceTimeout(t *testing.T) {
	h := NewHandler(output.NopLogger{}, 20*time.Millisecond)
	defer h.Stop()

	release := make(chan struct{})
	defer close(release)
	h.Register("stuck", func() error {
		<-release
		return nil
	})

	start := time.Now()
	h.Shutdown()
	if time.Since(start) > time.Second {
		t.Errorf("Shutdown took %v despite the force timeout", time.Since(start))
	}
	if !h.Forced() {
		t.Error("Forced() = false")
	}
}

func TestWait_Context(t *testing.T) {
	h := NewHandler(output.NopLogger{}, time.Second)
	defer h.Stop()

	ran := make(chan struct{}, 1)
	h.Register("mark", func() error {
		ran <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Wait(ctx)

	select {
	case <-ran:
	default:
		t.Error("Wait returned without running steps")
	}
}

func TestWait_AfterShutdown(t *testing.T) {
	h := NewHandler(output.NopLogger{}, time.Second)
	defer h.Stop()

	h.Shutdown()
	done := make(chan struct{})
	go func() {
		h.Wait(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked after Shutdown")
	}
}
