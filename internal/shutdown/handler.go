package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yourusername/kukisti/internal/output"
)

type step struct {
	name string
	fn   func() error
}

// Handler runs named shutdown steps in registration order when a signal
// arrives or Shutdown is called
type Handler struct {
	logger       output.Logger
	forceTimeout time.Duration

	mu    sync.Mutex
	steps []step

	signalChan   chan os.Signal
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	forced       bool
}

// NewHandler creates a handler listening for SIGINT and SIGTERM
func NewHandler(logger output.Logger, forceTimeout time.Duration) *Handler {
	h := &Handler{
		logger:       logger,
		forceTimeout: forceTimeout,
		signalChan:   make(chan os.Signal, 1),
		shutdownChan: make(chan struct{}),
	}
	signal.Notify(h.signalChan, syscall.SIGINT, syscall.SIGTERM)
	return h
}

// Register adds a step. Steps run sequentially in the order registered.
func (h *Handler) Register(name string, fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.steps = append(h.steps, step{name: name, fn: fn})
}

// Wait blocks until a signal arrives, ctx is done, or Shutdown is called
// elsewhere, then makes sure shutdown has completed
func (h *Handler) Wait(ctx context.Context) {
	select {
	case sig, ok := <-h.signalChan:
		if ok {
			h.logger.Info("Received signal: %v", sig)
		}
	case <-ctx.Done():
	case <-h.shutdownChan:
		return
	}
	h.Shutdown()
}

// Shutdown runs the steps once. It returns after they finish or after the
// force timeout, whichever comes first.
func (h *Handler) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.logger.Info("Initiating graceful shutdown...")

		done := make(chan struct{})
		go func() {
			h.runSteps()
			close(done)
		}()

		timer := time.NewTimer(h.forceTimeout)
		defer timer.Stop()

		select {
		case <-done:
			h.logger.Success("Graceful shutdown completed")
		case <-timer.C:
			h.mu.Lock()
			h.forced = true
			h.mu.Unlock()
			h.logger.Warning("Forced shutdown after %v", h.forceTimeout)
		}

		close(h.shutdownChan)
	})
}

func (h *Handler) runSteps() {
	h.mu.Lock()
	steps := append([]step(nil), h.steps...)
	h.mu.Unlock()

	for _, s := range steps {
		h.logger.Debug("Shutdown: %s", s.name)
		if err := s.fn(); err != nil {
			h.logger.Error("Shutdown step %q failed: %v", s.name, err)
		}
	}
}

// Done is closed when shutdown has completed or was forced
func (h *Handler) Done() <-chan struct{} {
	return h.shutdownChan
}

// Forced reports whether the last shutdown hit the force timeout
func (h *Handler) Forced() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.forced
}

// Stop stops listening for signals
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.signalChan)
		close(h.signalChan)
	})
}
