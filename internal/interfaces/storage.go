package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/scribo/internal/models"
)

// SlotReservation is the scope guard returned by ReserveSlot. The caller
// must either Commit (the slot stays reserved for the job's lifetime) or
// let Close release it. Close after Commit is a no-op, so it is safe to
// defer Close on every path.
type SlotReservation interface {
	Commit()
	Close(ctx context.Context) error
}

// PublisherStorage is the relational source of truth for publisher
// identity, config, status, and the two quota counters.
type PublisherStorage interface {
	// Create inserts a publisher for a not-yet-taken normalized domain and
	// returns it with a freshly generated API key (returned exactly once).
	Create(ctx context.Context, name, domain, email string, config models.PublisherConfig) (*models.Publisher, error)

	GetByID(ctx context.Context, id string) (*models.Publisher, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*models.Publisher, error)
	GetByDomain(ctx context.Context, domain string, allowSubdomain bool) (*models.Publisher, error)

	// Update merges the patch into the publisher config and rotates status.
	// The presented API key must match.
	Update(ctx context.Context, publisherID string, patch models.PublisherConfigPatch, status models.PublisherStatus, apiKey string) (*models.Publisher, error)

	// ReserveSlot atomically checks processed+reserved against the
	// configured cap and increments blog_slots_reserved. Fails with
	// USAGE_LIMIT_EXCEEDED when no room remains.
	ReserveSlot(ctx context.Context, publisherID string) (SlotReservation, error)

	// ReleaseSlot atomically decrements blog_slots_reserved (saturating at
	// zero) and, when processed is true, increments total_blogs_processed.
	ReleaseSlot(ctx context.Context, publisherID string, processed bool) error

	// ListIDs returns all publisher ids; used by the slot reconciler.
	ListIDs(ctx context.Context) ([]string, error)

	// SetSlotsReserved overwrites blog_slots_reserved; reconciler only.
	SetSlotsReserved(ctx context.Context, publisherID string, reserved int) error

	Close() error
}

// JobStorage is the durable queue and source of truth for job state.
type JobStorage interface {
	// Create enqueues a job unless an active (QUEUED/PROCESSING) job for
	// the same normalized URL exists, in which case that job is returned
	// with createdNew=false.
	Create(ctx context.Context, normalizedURL, publisherID string, snapshot *models.PublisherConfig) (job *models.Job, createdNew bool, err error)

	// ClaimNext atomically selects the oldest QUEUED job (created_at
	// ascending, job_id tie-break) and marks it PROCESSING. Returns nil
	// when the queue is empty. Exactly one claimer observes success for a
	// given job.
	ClaimNext(ctx context.Context) (*models.Job, error)

	MarkCompleted(ctx context.Context, jobID string, result *models.JobResult) error

	// MarkFailed increments failure_count and either re-queues the job or
	// transitions it to FAILED. The returned outcome drives slot
	// accounting in the pipeline executor.
	MarkFailed(ctx context.Context, jobID string, errMsg string) (models.FailureOutcome, error)

	// MarkPermanentlyFailed transitions the job to FAILED regardless of
	// remaining retry budget. Used for permanent upstream errors.
	MarkPermanentlyFailed(ctx context.Context, jobID string, errMsg string) error

	// Cancel transitions a QUEUED job to CANCELLED; any other status fails
	// with CANNOT_CANCEL.
	Cancel(ctx context.Context, jobID string) error

	Get(ctx context.Context, jobID string) (*models.Job, error)
	GetByURL(ctx context.Context, normalizedURL string) (*models.Job, error)
	Stats(ctx context.Context) (*models.JobStats, error)

	// CountCompletedSince counts COMPLETED jobs for a publisher with
	// completed_at at or after the cutoff. Used by the daily limit.
	CountCompletedSince(ctx context.Context, publisherID string, since time.Time) (int, error)

	// CountActiveByPublisher counts QUEUED+PROCESSING jobs per publisher;
	// reconciler input.
	CountActiveByPublisher(ctx context.Context, publisherID string) (int, error)

	// RequeueStuck re-queues PROCESSING jobs whose started_at is older
	// than the threshold, without touching failure_count. Returns the
	// number of jobs swept.
	RequeueStuck(ctx context.Context, olderThan time.Duration) (int, error)
}

// ArtifactStorage persists and serves blogs, summaries, and questions, and
// performs vector similarity search over question embeddings.
type ArtifactStorage interface {
	UpsertBlog(ctx context.Context, normalizedURL, title, content string, metadata map[string]string) (*models.Blog, error)
	GetBlogByURL(ctx context.Context, normalizedURL string) (*models.Blog, error)
	GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error)

	UpsertSummary(ctx context.Context, normalizedURL, text string, keyPoints []string, embedding []float32) (*models.Summary, error)
	GetSummaryByURL(ctx context.Context, normalizedURL string) (*models.Summary, error)

	// ReplaceQuestions atomically swaps the question set for a URL;
	// readers see either the old set or the new set, never a mix.
	ReplaceQuestions(ctx context.Context, normalizedURL string, questions []models.QuestionInput) ([]*models.Question, error)
	GetQuestionsByURL(ctx context.Context, normalizedURL string) ([]*models.Question, error)
	GetQuestionByID(ctx context.Context, questionID string) (*models.Question, error)

	// IncrementQuestionClick atomically bumps the click counter and
	// returns the new count.
	IncrementQuestionClick(ctx context.Context, questionID string) (int, error)

	// SearchSimilar runs cosine nearest-neighbor over question embeddings,
	// restricted to blogs whose host equals or is a subdomain of
	// publisherDomain. Highest similarity first, ties broken by URL.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, publisherDomain string) ([]*models.SearchResult, error)

	// DeleteBlog removes the blog and cascades to its questions and
	// summary. Not transactional across collections; partial deletion is
	// reported and the operation is retryable.
	DeleteBlog(ctx context.Context, blogID string) (*models.DeletionReport, error)
}

// StorageManager aggregates the badger-backed stores.
type StorageManager interface {
	JobStorage() JobStorage
	ArtifactStorage() ArtifactStorage
	Close() error
}
