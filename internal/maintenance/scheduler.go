package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourusername/kukisti/internal/output"
)

// Store is the database surface the scheduler maintains
type Store interface {
	Vacuum(ctx context.Context) error
	CleanupOldMetrics(ctx context.Context, olderThan time.Duration) (int64, error)
	CleanupOldTitles(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Scheduler periodically purges old command metrics and cached titles, then
// runs VACUUM
type Scheduler struct {
	store          Store
	logger         output.Logger
	interval       time.Duration
	retention      time.Duration
	titleRetention time.Duration

	done chan struct{}
	wg   sync.WaitGroup

	mu        sync.Mutex
	running   bool
	lastRunAt time.Time
}

// New creates a new maintenance scheduler. Metrics older than retentionDays
// are deleted; cached titles are deleted once older than titleTTL, or
// retentionDays when titleTTL is 0.
func New(store Store, logger output.Logger, interval time.Duration, retentionDays int, titleTTL time.Duration) *Scheduler {
	retention := time.Duration(retentionDays) * 24 * time.Hour
	if titleTTL <= 0 {
		titleTTL = retention
	}
	return &Scheduler{
		store:          store,
		logger:         logger,
		interval:       interval,
		retention:      retention,
		titleRetention: titleTTL,
	}
}

// Start begins the maintenance loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	if s.interval <= 0 {
		return fmt.Errorf("maintenance interval must be positive, got %v", s.interval)
	}
	s.running = true
	s.done = make(chan struct{})

	s.logger.Info("Starting database maintenance scheduler (every %v, retention %v)", s.interval, s.retention)

	s.wg.Add(1)
	go s.run(s.done)
	return nil
}

// Stop stops the maintenance loop and waits for a running pass to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Success("Database maintenance scheduler stopped")
	return nil
}

func (s *Scheduler) run(done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Database maintenance failed: %v", err)
			}
			cancel()
		}
	}
}

// RunOnce performs one cleanup and VACUUM pass
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	metrics, err := s.store.CleanupOldMetrics(ctx, s.retention)
	if err != nil {
		return err
	}
	titles, err := s.store.CleanupOldTitles(ctx, s.titleRetention)
	if err != nil {
		return err
	}
	if err := s.store.Vacuum(ctx); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}

	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.mu.Unlock()

	s.logger.Success("Database maintenance completed in %.2f seconds: deleted %d metrics and %d titles",
		time.Since(start).Seconds(), metrics, titles)
	return nil
}

// LastRun returns the time of the last successful pass
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}

// IsRunning returns whether the scheduler loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
