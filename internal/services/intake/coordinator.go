package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/auth"
)

// EnqueueResult is the outcome of an enqueue call.
type EnqueueResult struct {
	JobID            string           `json:"job_id"`
	Status           models.JobStatus `json:"status"`
	AlreadyProcessed bool             `json:"already_processed"`
	CreatedNew       bool             `json:"created_new"`
}

// LoadStatus is the viewer-facing readiness state from CheckAndLoad.
type LoadStatus string

const (
	LoadStatusReady      LoadStatus = "ready"
	LoadStatusProcessing LoadStatus = "processing"
	LoadStatusFailed     LoadStatus = "failed"
	LoadStatusNotStarted LoadStatus = "not_started"
)

// LoadResult is the CheckAndLoad response payload.
type LoadResult struct {
	Status    LoadStatus         `json:"status"`
	JobID     string             `json:"job_id,omitempty"`
	Questions []*models.Question `json:"questions,omitempty"`
	Blog      *models.Blog       `json:"blog,omitempty"`
}

// Coordinator owns every write that creates jobs, plus the coordinated
// check-and-load read/write flow.
type Coordinator struct {
	publishers interfaces.PublisherStorage
	jobs       interfaces.JobStorage
	artifacts  interfaces.ArtifactStorage
	policy     *auth.Policy
	logger     arbor.ILogger
}

// NewCoordinator creates a new intake coordinator
func NewCoordinator(
	publishers interfaces.PublisherStorage,
	jobs interfaces.JobStorage,
	artifacts interfaces.ArtifactStorage,
	policy *auth.Policy,
	logger arbor.ILogger,
) *Coordinator {
	return &Coordinator{
		publishers: publishers,
		jobs:       jobs,
		artifacts:  artifacts,
		policy:     policy,
		logger:     logger,
	}
}

// Enqueue validates and enqueues a blog URL for processing. The slot
// reservation is a scope guard: any error after ReserveSlot releases it
// via the deferred Close, and only a fresh job commits it.
func (c *Coordinator) Enqueue(ctx context.Context, rawURL string, publisher *models.Publisher) (*EnqueueResult, error) {
	url, err := common.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	if err := c.policy.CheckActive(publisher); err != nil {
		return nil, err
	}
	if err := c.policy.CheckDomain(url, publisher); err != nil {
		return nil, err
	}

	if err := c.checkDailyLimit(ctx, publisher); err != nil {
		return nil, err
	}

	// Idempotent short-circuit: already crawled and completed
	if done, jobID := c.alreadyProcessed(ctx, url); done {
		return &EnqueueResult{
			JobID:            jobID,
			Status:           models.JobStatusCompleted,
			AlreadyProcessed: true,
		}, nil
	}

	if err := c.policy.CheckWhitelist(url, publisher); err != nil {
		return nil, err
	}

	return c.reserveAndCreate(ctx, url, publisher)
}

// CheckAndLoad is the fast path for viewer traffic: an existing blog
// returns in one read; a first-time URL transparently kicks off processing.
func (c *Coordinator) CheckAndLoad(ctx context.Context, rawURL string, publisher *models.Publisher) (*LoadResult, error) {
	url, err := common.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := c.policy.CheckDomain(url, publisher); err != nil {
		return nil, err
	}

	if result := c.loadReady(ctx, url); result != nil {
		return result, nil
	}

	job, err := c.jobs.GetByURL(ctx, url)
	if err != nil && common.KindOf(err) != common.KindNotFound {
		return nil, err
	}

	if job != nil {
		switch job.Status {
		case models.JobStatusCompleted:
			// Questions should exist by now; an empty read means the
			// artifacts were purged, so fall through to a fresh start.
			if result := c.loadReady(ctx, url); result != nil {
				return result, nil
			}
		case models.JobStatusQueued, models.JobStatusProcessing:
			return &LoadResult{Status: LoadStatusProcessing, JobID: job.ID}, nil
		case models.JobStatusFailed:
			return &LoadResult{Status: LoadStatusFailed, JobID: job.ID}, nil
		}
	}

	if err := c.policy.CheckWhitelist(url, publisher); err != nil {
		return nil, err
	}

	enqueued, err := c.reserveAndCreate(ctx, url, publisher)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Status: LoadStatusNotStarted, JobID: enqueued.JobID}, nil
}

// reserveAndCreate performs the reserve-then-create critical sequence
// shared by Enqueue and CheckAndLoad.
func (c *Coordinator) reserveAndCreate(ctx context.Context, url string, publisher *models.Publisher) (*EnqueueResult, error) {
	reservation, err := c.publishers.ReserveSlot(ctx, publisher.ID)
	if err != nil {
		return nil, err
	}
	defer reservation.Close(ctx)

	snapshot := publisher.Config.Snapshot()
	snapshot.ApplyDefaults()

	job, createdNew, err := c.jobs.Create(ctx, url, publisher.ID, snapshot)
	if err != nil {
		return nil, err
	}

	if createdNew {
		reservation.Commit()
	}
	// A pre-existing active job already holds a slot; the deferred Close
	// releases this one.

	c.logger.Info().
		Str("job_id", job.ID).
		Str("blog_url", url).
		Str("publisher_id", publisher.ID).
		Bool("created_new", createdNew).
		Msg("Enqueue accepted")

	return &EnqueueResult{
		JobID:      job.ID,
		Status:     job.Status,
		CreatedNew: createdNew,
	}, nil
}

// checkDailyLimit counts completed jobs since midnight UTC against
// config.daily_blog_limit.
func (c *Coordinator) checkDailyLimit(ctx context.Context, publisher *models.Publisher) error {
	limit := publisher.Config.DailyBlogLimit
	if limit == nil || *limit <= 0 {
		return nil
	}

	count, err := c.jobs.CountCompletedSince(ctx, publisher.ID, common.StartOfUTCDay(time.Now()))
	if err != nil {
		return err
	}
	if count >= *limit {
		return common.NewError(common.KindQuota, common.CodeDailyLimitExceeded,
			fmt.Sprintf("daily blog limit of %d reached", *limit))
	}
	return nil
}

// alreadyProcessed reports whether the URL has both a stored artifact and a
// completed job.
func (c *Coordinator) alreadyProcessed(ctx context.Context, url string) (bool, string) {
	if _, err := c.artifacts.GetBlogByURL(ctx, url); err != nil {
		return false, ""
	}
	job, err := c.jobs.GetByURL(ctx, url)
	if err != nil || job.Status != models.JobStatusCompleted {
		return false, ""
	}
	return true, job.ID
}

// loadReady returns a ready result when questions exist for the URL.
func (c *Coordinator) loadReady(ctx context.Context, url string) *LoadResult {
	questions, err := c.artifacts.GetQuestionsByURL(ctx, url)
	if err != nil || len(questions) == 0 {
		return nil
	}

	result := &LoadResult{Status: LoadStatusReady, Questions: questions}
	if blog, err := c.artifacts.GetBlogByURL(ctx, url); err == nil {
		result.Blog = blog
	}
	return result
}
