package commands

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/kukisti/internal/errors"
	"github.com/yourusername/kukisti/internal/output"
	"golang.org/x/sync/semaphore"
)

// Task is one unit of handler work. ctx is cancelled when the pool's
// shutdown grace period runs out.
type Task func(ctx context.Context)

// Pool runs tasks off the read loop. Each key (a channel) has its own FIFO
// lane so replies to one channel keep their order, while a weighted
// semaphore bounds how many tasks run at once across all lanes.
type Pool struct {
	logger   output.Logger
	sem      *semaphore.Weighted
	laneSize int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	lanes    map[string]chan Task
	closed   bool
	draining atomic.Bool
	running  atomic.Int64
	wg       sync.WaitGroup
}

// NewPool creates a pool running at most workers tasks concurrently, with
// up to laneSize queued tasks per key
func NewPool(workers, laneSize int, logger output.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if laneSize < 1 {
		laneSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(workers)),
		laneSize: laneSize,
		ctx:      ctx,
		cancel:   cancel,
		lanes:    make(map[string]chan Task),
	}
}

// Submit queues task on the lane for key without blocking. It returns
// ErrQueueFull when the lane is full and ErrPoolClosed after Shutdown.
func (p *Pool) Submit(key string, task Task) error {
	key = strings.ToLower(key)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.ErrPoolClosed
	}

	lane, ok := p.lanes[key]
	if !ok {
		lane = make(chan Task, p.laneSize)
		p.lanes[key] = lane
		p.wg.Add(1)
		go p.runLane(key, lane)
	}

	select {
	case lane <- task:
		return nil
	default:
		return errors.ErrQueueFull
	}
}

// Running returns the number of tasks executing right now
func (p *Pool) Running() int64 {
	return p.running.Load()
}

// Shutdown stops accepting tasks and drops queued ones that have not
// started. In-flight tasks get grace to finish; after that their context is
// cancelled and they are abandoned. Returns true if every lane finished
// within the grace period.
func (p *Pool) Shutdown(grace time.Duration) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return true
	}
	p.closed = true
	p.draining.Store(true)
	for _, lane := range p.lanes {
		close(lane)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		p.cancel()
		return true
	case <-timer.C:
		p.logger.Warning("Handler grace period of %v expired, abandoning %d task(s)", grace, p.running.Load())
		p.cancel()
		return false
	}
}

func (p *Pool) runLane(key string, lane chan Task) {
	defer p.wg.Done()

	for task := range lane {
		if p.draining.Load() {
			continue
		}
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			continue
		}
		p.run(key, task)
		p.sem.Release(1)
	}
}

func (p *Pool) run(key string, task Task) {
	p.running.Add(1)
	defer p.running.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task for %s panicked: %v", key, r)
		}
	}()
	task(p.ctx)
}
