package worker

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// Sweeper re-queues jobs stuck in PROCESSING after a worker crash. Swept
// jobs keep their failure_count; a crash is not the job's fault.
type Sweeper struct {
	jobs      interfaces.JobStorage
	threshold time.Duration
	logger    arbor.ILogger
}

// NewSweeper creates a new stuck-job sweeper
func NewSweeper(jobs interfaces.JobStorage, threshold time.Duration, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		jobs:      jobs,
		threshold: threshold,
		logger:    logger,
	}
}

// Sweep runs one pass. Returns the number of jobs re-queued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	swept, err := s.jobs.RequeueStuck(ctx, s.threshold)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.logger.Info().Int("swept", swept).Dur("threshold", s.threshold).Msg("Stuck jobs re-queued")
	}
	return swept, nil
}
