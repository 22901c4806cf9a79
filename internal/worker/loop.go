package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/pipeline"
)

// Loop drains the job queue: one claimer, up to concurrent_jobs parallel
// pipeline executions. Shutdown stops claiming and drains in-flight work
// within the configured grace period.
type Loop struct {
	jobs         interfaces.JobStorage
	executor     *pipeline.Executor
	pollInterval time.Duration
	concurrency  int
	grace        time.Duration
	logger       arbor.ILogger
}

// NewLoop creates a new worker loop
func NewLoop(jobs interfaces.JobStorage, executor *pipeline.Executor, config *common.Config, logger arbor.ILogger) *Loop {
	concurrency := config.Worker.ConcurrentJobs
	if concurrency < 1 {
		concurrency = 1
	}
	return &Loop{
		jobs:         jobs,
		executor:     executor,
		pollInterval: config.PollInterval(),
		concurrency:  concurrency,
		grace:        config.ShutdownGrace(),
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled, then drains. In-flight jobs always
// reach a terminal JobStore transition before Run returns, up to the grace
// deadline.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info().
		Int("concurrency", l.concurrency).
		Dur("poll_interval", l.pollInterval).
		Msg("Worker loop started")

	slots := make(chan struct{}, l.concurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain(&wg)
			return
		case <-ticker.C:
			l.claimWhileCapacity(ctx, slots, &wg)
		}
	}
}

// claimWhileCapacity claims and dispatches jobs until the pool is full or
// the queue is empty.
func (l *Loop) claimWhileCapacity(ctx context.Context, slots chan struct{}, wg *sync.WaitGroup) {
	for {
		select {
		case <-ctx.Done():
			return
		case slots <- struct{}{}:
		default:
			return // pool full; wait for the next tick
		}

		job, err := l.jobs.ClaimNext(ctx)
		if err != nil {
			l.logger.Error().Err(err).Msg("Failed to claim next job")
			<-slots
			return
		}
		if job == nil {
			<-slots
			return // queue empty
		}

		wg.Add(1)
		go func(job *models.Job) {
			defer wg.Done()
			defer func() { <-slots }()
			// Executors run detached from the loop context so shutdown
			// cannot abandon a job mid-transition.
			l.executor.Run(context.Background(), job)
		}(job)
	}
}

// drain waits for in-flight executors with a bounded deadline.
func (l *Loop) drain(wg *sync.WaitGroup) {
	l.logger.Info().Dur("grace", l.grace).Msg("Worker loop draining")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info().Msg("Worker loop drained")
	case <-time.After(l.grace):
		l.logger.Warn().Msg("Drain deadline exceeded; abandoned jobs will be swept")
	}
}
