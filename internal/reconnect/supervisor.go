// Package reconnect keeps the bot connected by running a fresh session after
// each transport failure, with exponential backoff.
package reconnect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/kukisti/internal/output"
)

// ErrNotConnected is returned by SendMessage between sessions
var ErrNotConnected = errors.New("not connected")

// Session is one connection attempt. A Session is used once.
type Session interface {
	Run(ctx context.Context) error
	Stop()
	SendMessage(ctx context.Context, channel, text string) error
	ReachedReady() bool
	Stopped() bool
}

// Factory creates the session for the next attempt
type Factory func() Session

// Supervisor runs sessions until stopped. It forwards sends to the current
// session and is the stop target for the admin quit phrase.
type Supervisor struct {
	factory  Factory
	logger   output.Logger
	minDelay time.Duration
	maxDelay time.Duration
	enabled  bool

	mu      sync.Mutex
	current Session

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	attempts atomic.Int64
}

// New creates a supervisor. With enabled false the first session failure
// ends Run.
func New(factory Factory, logger output.Logger, minDelay, maxDelay time.Duration, enabled bool) *Supervisor {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Supervisor{
		factory:  factory,
		logger:   logger,
		minDelay: minDelay,
		maxDelay: maxDelay,
		enabled:  enabled,
		stopCh:   make(chan struct{}),
	}
}

// Run blocks running sessions. It returns nil after Stop or ctx
// cancellation, and the session's transport error when reconnecting is
// disabled.
func (s *Supervisor) Run(ctx context.Context) error {
	delay := s.minDelay

	for {
		sess := s.factory()
		s.mu.Lock()
		if s.stopped.Load() {
			s.mu.Unlock()
			return nil
		}
		s.current = sess
		s.mu.Unlock()

		attempt := s.attempts.Add(1)
		err := sess.Run(ctx)

		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()

		if s.stopped.Load() || ctx.Err() != nil || sess.Stopped() {
			return nil
		}
		if !s.enabled {
			return err
		}

		if sess.ReachedReady() {
			delay = s.minDelay
		}
		s.logger.Warning("Session %d ended: %v. Reconnecting in %v", attempt, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.stopCh:
			timer.Stop()
			return nil
		}

		delay *= 2
		if delay > s.maxDelay {
			delay = s.maxDelay
		}
	}
}

// Stop ends the current session and prevents further reconnects
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped.Store(true)
	cur := s.current
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopCh) })
	if cur != nil {
		cur.Stop()
	}
}

// SendMessage forwards to the current session
func (s *Supervisor) SendMessage(ctx context.Context, channel, text string) error {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	if cur == nil {
		return ErrNotConnected
	}
	return cur.SendMessage(ctx, channel, text)
}

// Attempts returns how many sessions have been started
func (s *Supervisor) Attempts() int64 {
	return s.attempts.Load()
}
