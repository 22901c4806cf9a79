package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a processing job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// IsActive reports whether the job still occupies the per-URL uniqueness
// slot (at most one QUEUED/PROCESSING job per normalized URL).
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusProcessing
}

// DefaultMaxRetries is the transient-failure budget before a job goes FAILED.
const DefaultMaxRetries = 3

// Job is one unit of work in the durable queue, owned by the badger store.
//
// State machine:
//
//	QUEUED -> PROCESSING -> COMPLETED
//	PROCESSING -> QUEUED     (transient failure, failure_count < max_retries)
//	PROCESSING -> FAILED     (permanent, or retries exhausted)
//	QUEUED -> CANCELLED      (admin; PROCESSING is not cancellable)
type Job struct {
	ID             string           `json:"job_id"`
	BlogURL        string           `json:"blog_url" badgerhold:"index"` // normalized
	PublisherID    string           `json:"publisher_id" badgerhold:"index"`
	Status         JobStatus        `json:"status" badgerhold:"index"`
	FailureCount   int              `json:"failure_count"`
	MaxRetries     int              `json:"max_retries"`
	ErrorMessage   string           `json:"error_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
	Result         *JobResult       `json:"result,omitempty"`
	ConfigSnapshot *PublisherConfig `json:"config_snapshot,omitempty"`
}

// JobResult summarizes a completed pipeline run.
type JobResult struct {
	Title               string `json:"title"`
	QuestionsGenerated  int    `json:"questions_generated"`
	SummaryGenerated    bool   `json:"summary_generated"`
	EmbeddingsGenerated int    `json:"embeddings_generated"`
}

// FailureOutcome is returned by the job store's MarkFailed and is the
// signal the pipeline executor uses for slot accounting: a requeued job
// keeps its reserved slot, a permanently failed job releases it.
type FailureOutcome string

const (
	FailureOutcomeRequeued          FailureOutcome = "requeued"
	FailureOutcomePermanentlyFailed FailureOutcome = "permanently_failed"
)

// JobStats holds queue counts by status.
type JobStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
}

// Total returns the number of jobs across all states.
func (s JobStats) Total() int {
	return s.Queued + s.Processing + s.Completed + s.Failed + s.Cancelled
}
