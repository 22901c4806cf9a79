package worker

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// Reconciler corrects slot-accounting drift: if the worker crashes between
// a terminal job transition and the slot release, blog_slots_reserved
// over-counts. The sweep overwrites each publisher's reserved counter with
// its actual QUEUED+PROCESSING job count.
type Reconciler struct {
	publishers interfaces.PublisherStorage
	jobs       interfaces.JobStorage
	logger     arbor.ILogger
}

// NewReconciler creates a new slot reconciler
func NewReconciler(publishers interfaces.PublisherStorage, jobs interfaces.JobStorage, logger arbor.ILogger) *Reconciler {
	return &Reconciler{
		publishers: publishers,
		jobs:       jobs,
		logger:     logger,
	}
}

// Reconcile runs one sweep over all publishers. Returns the number of
// publishers corrected.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	ids, err := r.publishers.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	corrected := 0
	for _, id := range ids {
		publisher, err := r.publishers.GetByID(ctx, id)
		if err != nil {
			r.logger.Warn().Err(err).Str("publisher_id", id).Msg("Reconciler skipping publisher")
			continue
		}

		active, err := r.jobs.CountActiveByPublisher(ctx, id)
		if err != nil {
			r.logger.Warn().Err(err).Str("publisher_id", id).Msg("Reconciler failed to count active jobs")
			continue
		}

		if publisher.BlogSlotsReserved == active {
			continue
		}

		r.logger.Warn().
			Str("publisher_id", id).
			Int("reserved", publisher.BlogSlotsReserved).
			Int("active_jobs", active).
			Msg("Slot counter drift detected, correcting")

		if err := r.publishers.SetSlotsReserved(ctx, id, active); err != nil {
			r.logger.Error().Err(err).Str("publisher_id", id).Msg("Reconciler failed to correct counter")
			continue
		}
		corrected++
	}

	if corrected > 0 {
		r.logger.Info().Int("corrected", corrected).Msg("Slot reconciliation complete")
	}
	return corrected, nil
}
