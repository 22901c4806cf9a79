package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// claimRetries bounds optimistic-conflict retries on the transactional
// claim/create paths. Conflicts are rare with a handful of workers.
const claimRetries = 5

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// Create enqueues a job for a normalized URL. Dedup runs inside one badger
// transaction so two concurrent submissions of the same URL cannot both
// insert: the loser observes the winner's row and returns it with
// createdNew=false.
func (s *JobStorage) Create(ctx context.Context, normalizedURL, publisherID string, snapshot *models.PublisherConfig) (*models.Job, bool, error) {
	var out *models.Job
	var createdNew bool

	err := s.withConflictRetry(func() error {
		out = nil
		createdNew = false
		return s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
			var existing []models.Job
			query := badgerhold.Where("BlogURL").Eq(normalizedURL).Index("BlogURL")
			if err := s.db.Store().TxFind(tx, &existing, query); err != nil {
				return fmt.Errorf("failed to check active jobs: %w", err)
			}
			for i := range existing {
				if existing[i].Status.IsActive() {
					out = &existing[i]
					return nil
				}
			}

			now := time.Now().UTC()
			job := &models.Job{
				ID:             common.NewJobID(),
				BlogURL:        normalizedURL,
				PublisherID:    publisherID,
				Status:         models.JobStatusQueued,
				MaxRetries:     models.DefaultMaxRetries,
				CreatedAt:      now,
				UpdatedAt:      now,
				ConfigSnapshot: snapshot,
			}
			if err := s.db.Store().TxInsert(tx, job.ID, job); err != nil {
				return fmt.Errorf("failed to insert job: %w", err)
			}
			out = job
			createdNew = true
			return nil
		})
	})
	if err != nil {
		return nil, false, err
	}

	if createdNew {
		s.logger.Info().
			Str("job_id", out.ID).
			Str("blog_url", normalizedURL).
			Str("publisher_id", publisherID).
			Msg("Job enqueued")
	}

	return out, createdNew, nil
}

// ClaimNext selects the oldest QUEUED job and flips it to PROCESSING in a
// single badger transaction. Two workers racing for the same job conflict
// at commit; the loser retries and claims the next one.
func (s *JobStorage) ClaimNext(ctx context.Context) (*models.Job, error) {
	var claimed *models.Job

	err := s.withConflictRetry(func() error {
		claimed = nil
		return s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
			var queued []models.Job
			query := badgerhold.Where("Status").Eq(models.JobStatusQueued).Index("Status")
			if err := s.db.Store().TxFind(tx, &queued, query); err != nil {
				return fmt.Errorf("failed to find queued jobs: %w", err)
			}
			if len(queued) == 0 {
				return nil
			}

			oldest := &queued[0]
			for i := 1; i < len(queued); i++ {
				j := &queued[i]
				if j.CreatedAt.Before(oldest.CreatedAt) ||
					(j.CreatedAt.Equal(oldest.CreatedAt) && j.ID < oldest.ID) {
					oldest = j
				}
			}

			now := time.Now().UTC()
			oldest.Status = models.JobStatusProcessing
			oldest.StartedAt = &now
			oldest.UpdatedAt = now
			if err := s.db.Store().TxUpdate(tx, oldest.ID, oldest); err != nil {
				return fmt.Errorf("failed to claim job: %w", err)
			}
			claimed = oldest
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if claimed != nil {
		s.logger.Debug().
			Str("job_id", claimed.ID).
			Str("blog_url", claimed.BlogURL).
			Msg("Job claimed")
	}

	return claimed, nil
}

// MarkCompleted transitions a PROCESSING job to COMPLETED.
func (s *JobStorage) MarkCompleted(ctx context.Context, jobID string, result *models.JobResult) error {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return common.NewError(common.KindNotFound, "", fmt.Sprintf("job not found: %s", jobID))
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	if job.Status != models.JobStatusProcessing {
		return common.NewError(common.KindConflict, "",
			fmt.Sprintf("cannot complete job in status %s", job.Status))
	}

	now := time.Now().UTC()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.Result = result
	job.ErrorMessage = ""

	if err := s.db.Store().Update(jobID, &job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	s.logger.Info().Str("job_id", jobID).Str("blog_url", job.BlogURL).Msg("Job completed")
	return nil
}

// MarkFailed records a failure against a PROCESSING job. Transient failures
// with retry budget left re-queue; everything else goes FAILED. The caller
// owns the slot-accounting consequences of the returned outcome.
func (s *JobStorage) MarkFailed(ctx context.Context, jobID string, errMsg string) (models.FailureOutcome, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return "", common.NewError(common.KindNotFound, "", fmt.Sprintf("job not found: %s", jobID))
		}
		return "", fmt.Errorf("failed to get job: %w", err)
	}

	if job.Status != models.JobStatusProcessing {
		return "", common.NewError(common.KindConflict, "",
			fmt.Sprintf("cannot fail job in status %s", job.Status))
	}

	now := time.Now().UTC()
	job.FailureCount++
	job.ErrorMessage = errMsg
	job.UpdatedAt = now

	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}

	var outcome models.FailureOutcome
	if job.FailureCount < maxRetries {
		job.Status = models.JobStatusQueued
		job.StartedAt = nil
		outcome = models.FailureOutcomeRequeued
	} else {
		job.Status = models.JobStatusFailed
		job.CompletedAt = &now
		outcome = models.FailureOutcomePermanentlyFailed
	}

	if err := s.db.Store().Update(jobID, &job); err != nil {
		return "", fmt.Errorf("failed to update job: %w", err)
	}

	s.logger.Warn().
		Str("job_id", jobID).
		Str("blog_url", job.BlogURL).
		Int("failure_count", job.FailureCount).
		Str("outcome", string(outcome)).
		Str("error", errMsg).
		Msg("Job failed")

	return outcome, nil
}

// MarkPermanentlyFailed forces a PROCESSING job straight to FAILED,
// bypassing the retry budget. Used for permanent upstream errors.
func (s *JobStorage) MarkPermanentlyFailed(ctx context.Context, jobID string, errMsg string) error {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return common.NewError(common.KindNotFound, "", fmt.Sprintf("job not found: %s", jobID))
		}
		return fmt.Errorf("failed to get job: %w", err)
	}

	if job.Status != models.JobStatusProcessing {
		return common.NewError(common.KindConflict, "",
			fmt.Sprintf("cannot fail job in status %s", job.Status))
	}

	now := time.Now().UTC()
	job.FailureCount++
	job.Status = models.JobStatusFailed
	job.ErrorMessage = errMsg
	job.CompletedAt = &now
	job.UpdatedAt = now

	if err := s.db.Store().Update(jobID, &job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	s.logger.Warn().
		Str("job_id", jobID).
		Str("blog_url", job.BlogURL).
		Str("error", errMsg).
		Msg("Job permanently failed")

	return nil
}

// Cancel transitions a QUEUED job to CANCELLED. Any other state rejects
// with CANNOT_CANCEL; a PROCESSING job runs to completion.
func (s *JobStorage) Cancel(ctx context.Context, jobID string) error {
	return s.withConflictRetry(func() error {
		return s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
			var job models.Job
			if err := s.db.Store().TxGet(tx, jobID, &job); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					return common.NewError(common.KindNotFound, "", fmt.Sprintf("job not found: %s", jobID))
				}
				return fmt.Errorf("failed to get job: %w", err)
			}

			if job.Status != models.JobStatusQueued {
				return common.NewError(common.KindConflict, common.CodeCannotCancel,
					fmt.Sprintf("cannot cancel job in status %s", job.Status))
			}

			now := time.Now().UTC()
			job.Status = models.JobStatusCancelled
			job.CompletedAt = &now
			job.UpdatedAt = now
			if err := s.db.Store().TxUpdate(tx, jobID, &job); err != nil {
				return fmt.Errorf("failed to cancel job: %w", err)
			}

			s.logger.Info().Str("job_id", jobID).Str("blog_url", job.BlogURL).Msg("Job cancelled")
			return nil
		})
	})
}

// Get returns a job by id
func (s *JobStorage) Get(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, common.NewError(common.KindNotFound, "", fmt.Sprintf("job not found: %s", jobID))
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// GetByURL returns the most recent job for a normalized URL.
func (s *JobStorage) GetByURL(ctx context.Context, normalizedURL string) (*models.Job, error) {
	var jobs []models.Job
	query := badgerhold.Where("BlogURL").Eq(normalizedURL).Index("BlogURL")
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to find jobs by url: %w", err)
	}
	if len(jobs) == 0 {
		return nil, common.NewError(common.KindNotFound, "", fmt.Sprintf("no job for url: %s", normalizedURL))
	}

	latest := &jobs[0]
	for i := 1; i < len(jobs); i++ {
		if jobs[i].CreatedAt.After(latest.CreatedAt) {
			latest = &jobs[i]
		}
	}
	return latest, nil
}

// Stats returns queue counts by status.
func (s *JobStorage) Stats(ctx context.Context) (*models.JobStats, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	stats := &models.JobStats{}
	for i := range jobs {
		switch jobs[i].Status {
		case models.JobStatusQueued:
			stats.Queued++
		case models.JobStatusProcessing:
			stats.Processing++
		case models.JobStatusCompleted:
			stats.Completed++
		case models.JobStatusFailed:
			stats.Failed++
		case models.JobStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// CountCompletedSince counts a publisher's COMPLETED jobs with
// completed_at at or after the cutoff.
func (s *JobStorage) CountCompletedSince(ctx context.Context, publisherID string, since time.Time) (int, error) {
	var jobs []models.Job
	query := badgerhold.Where("PublisherID").Eq(publisherID).Index("PublisherID").
		And("Status").Eq(models.JobStatusCompleted)
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return 0, fmt.Errorf("failed to count completed jobs: %w", err)
	}

	count := 0
	for i := range jobs {
		if jobs[i].CompletedAt != nil && !jobs[i].CompletedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// CountActiveByPublisher counts QUEUED and PROCESSING jobs for a publisher.
func (s *JobStorage) CountActiveByPublisher(ctx context.Context, publisherID string) (int, error) {
	var jobs []models.Job
	query := badgerhold.Where("PublisherID").Eq(publisherID).Index("PublisherID")
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return 0, fmt.Errorf("failed to count active jobs: %w", err)
	}

	count := 0
	for i := range jobs {
		if jobs[i].Status.IsActive() {
			count++
		}
	}
	return count, nil
}

// RequeueStuck returns PROCESSING jobs whose started_at is older than the
// threshold back to QUEUED. Failure counts are untouched; a crash is not
// the job's fault.
func (s *JobStorage) RequeueStuck(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	var jobs []models.Job
	query := badgerhold.Where("Status").Eq(models.JobStatusProcessing).Index("Status")
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return 0, fmt.Errorf("failed to find processing jobs: %w", err)
	}

	requeued := 0
	for i := range jobs {
		job := &jobs[i]
		if job.StartedAt == nil || job.StartedAt.After(cutoff) {
			continue
		}

		job.Status = models.JobStatusQueued
		job.StartedAt = nil
		job.UpdatedAt = time.Now().UTC()
		if err := s.db.Store().Update(job.ID, job); err != nil {
			return requeued, fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
		}

		s.logger.Warn().
			Str("job_id", job.ID).
			Str("blog_url", job.BlogURL).
			Msg("Stuck job requeued")
		requeued++
	}

	return requeued, nil
}

// withConflictRetry retries fn on badger's optimistic transaction conflict.
func (s *JobStorage) withConflictRetry(fn func() error) error {
	var err error
	for attempt := 0; attempt < claimRetries; attempt++ {
		err = fn()
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
		s.logger.Debug().Int("attempt", attempt+1).Msg("Transaction conflict, retrying")
	}
	return err
}
