package worker

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
)

// Maintenance runs the reconciler and stuck-job sweeper on a cron schedule
// in the worker process.
type Maintenance struct {
	cron       *cron.Cron
	reconciler *Reconciler
	sweeper    *Sweeper
	schedule   string
	enabled    bool
	logger     arbor.ILogger
}

// NewMaintenance creates the cron-driven maintenance runner
func NewMaintenance(reconciler *Reconciler, sweeper *Sweeper, config *common.Config, logger arbor.ILogger) *Maintenance {
	return &Maintenance{
		cron:       cron.New(),
		reconciler: reconciler,
		sweeper:    sweeper,
		schedule:   config.Reconciler.Schedule,
		enabled:    config.Reconciler.Enabled,
		logger:     logger,
	}
}

// Start registers the maintenance job and starts the scheduler.
func (m *Maintenance) Start(ctx context.Context) error {
	if !m.enabled {
		m.logger.Info().Msg("Maintenance scheduler disabled")
		return nil
	}

	_, err := m.cron.AddFunc(m.schedule, func() {
		if swept, err := m.sweeper.Sweep(ctx); err != nil {
			m.logger.Error().Err(err).Msg("Stuck-job sweep failed")
		} else if swept > 0 {
			m.logger.Debug().Int("swept", swept).Msg("Sweep pass finished")
		}

		// Sweep first so re-queued jobs count as active before the
		// reconciler reads the counters.
		if _, err := m.reconciler.Reconcile(ctx); err != nil {
			m.logger.Error().Err(err).Msg("Slot reconciliation failed")
		}
	})
	if err != nil {
		return err
	}

	m.cron.Start()
	m.logger.Info().Str("schedule", m.schedule).Msg("Maintenance scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish.
func (m *Maintenance) Stop() {
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
}
