package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/figpack/figscan/internal/domain"
	"github.com/figpack/figscan/internal/logger"
)

// PoolState represents the current state of the pool.
type PoolState int32

const (
	// PoolStateStopped means the pool is not running.
	PoolStateStopped PoolState = iota

	// PoolStateRunning means the pool is actively processing jobs.
	PoolStateRunning

	// PoolStateDraining means the pool is shutting down gracefully.
	PoolStateDraining

	// poolPercentageMultiplier converts ratio to percentage.
	poolPercentageMultiplier = 100
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// JobHandler processes one candidate repository. Handlers run concurrently
// across candidates and must not share mutable state beyond their own
// scratch subdirectory.
type JobHandler func(ctx context.Context, cand domain.Candidate) error

// Pool manages a pool of workers for processing candidate repositories.
type Pool struct {
	config  Config
	handler JobHandler
	logger  logger.Interface
	state   atomic.Int32
	sem     chan struct{} // Semaphore for bounded concurrency
	wg      sync.WaitGroup
	stopCh  chan struct{}

	// Stats
	totalJobsProcessed atomic.Int64
	totalJobsSucceeded atomic.Int64
	totalJobsFailed    atomic.Int64
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, handler JobHandler, log logger.Interface) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}

	p := &Pool{
		config:  cfg,
		handler: handler,
		logger:  log.WithComponent("worker"),
		sem:     make(chan struct{}, cfg.PoolSize),
		stopCh:  make(chan struct{}),
	}

	p.state.Store(int32(PoolStateStopped))

	return p, nil
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}

	p.logger.Info("worker pool started", "pool_size", p.config.PoolSize)

	return nil
}

// Stop gracefully stops the worker pool, waiting for in-flight jobs up to
// the drain timeout.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("pool is not running")
	}

	p.logger.Info("worker pool draining")

	// Signal stop
	close(p.stopCh)

	// Wait for active jobs to finish with timeout
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out")
	case <-time.After(p.config.DrainTimeout):
		p.logger.Warn("worker pool drain timeout exceeded")
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit submits a candidate for processing.
// Blocks if all workers are busy.
func (p *Pool) Submit(ctx context.Context, cand domain.Candidate) error {
	if p.State() != PoolStateRunning {
		return errors.New("pool is not running")
	}

	// Acquire semaphore (blocks if pool is full)
	select {
	case p.sem <- struct{}{}:
		// Got a slot
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("pool is stopping")
	}

	p.wg.Add(1)

	go func() {
		defer func() {
			<-p.sem // Release semaphore
			p.wg.Done()
		}()

		err := p.handler(ctx, cand)

		p.totalJobsProcessed.Add(1)
		if err != nil {
			p.totalJobsFailed.Add(1)
		} else {
			p.totalJobsSucceeded.Add(1)
		}
	}()

	return nil
}

// Wait blocks until every submitted job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.State() == PoolStateRunning
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.config.PoolSize
}

// Stats returns pool statistics.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		State:         p.State(),
		PoolSize:      p.config.PoolSize,
		JobsProcessed: p.totalJobsProcessed.Load(),
		JobsSucceeded: p.totalJobsSucceeded.Load(),
		JobsFailed:    p.totalJobsFailed.Load(),
	}
}

// PoolStats holds statistics for the pool.
type PoolStats struct {
	State         PoolState
	PoolSize      int
	JobsProcessed int64
	JobsSucceeded int64
	JobsFailed    int64
}

// SuccessRate returns the success rate as a percentage.
func (s PoolStats) SuccessRate() float64 {
	if s.JobsProcessed == 0 {
		return 0
	}
	return float64(s.JobsSucceeded) / float64(s.JobsProcessed) * poolPercentageMultiplier
}
