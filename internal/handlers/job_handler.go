package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/intake"
)

// JobHandler serves job submission and admin job inspection endpoints
type JobHandler struct {
	intake *intake.Coordinator
	jobs   interfaces.JobStorage
	logger arbor.ILogger
}

// NewJobHandler creates a new job handler
func NewJobHandler(coordinator *intake.Coordinator, jobs interfaces.JobStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		intake: coordinator,
		jobs:   jobs,
		logger: logger,
	}
}

type processRequest struct {
	BlogURL string `json:"blog_url"`
}

// ProcessHandler enqueues a blog URL for processing (POST /jobs/process)
func (h *JobHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	publisher := PublisherFromContext(r.Context())
	if publisher == nil {
		WriteError(w, r, http.StatusUnauthorized, "publisher authentication required")
		return
	}

	var req processRequest
	if err := DecodeBody(r, &req); err != nil {
		WriteErr(w, r, err)
		return
	}

	result, err := h.intake.Enqueue(r.Context(), req.BlogURL, publisher)
	if err != nil {
		WriteErr(w, r, err)
		return
	}

	if result.AlreadyProcessed {
		WriteResult(w, r, http.StatusOK, "already processed", result)
		return
	}
	WriteResult(w, r, http.StatusAccepted, "job accepted", result)
}

// StatusHandler returns a job by id (GET /jobs/status/{job_id}, admin)
func (h *JobHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/jobs/status/")
	if jobID == "" {
		WriteError(w, r, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "", job)
}

// StatsHandler returns queue counts by status (GET /jobs/stats, admin)
func (h *JobHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.jobs.Stats(r.Context())
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "", stats)
}

// CancelHandler cancels a QUEUED job (POST /jobs/cancel/{job_id}, admin)
func (h *JobHandler) CancelHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/jobs/cancel/")
	if jobID == "" {
		WriteError(w, r, http.StatusBadRequest, "job id is required")
		return
	}

	if err := h.jobs.Cancel(r.Context(), jobID); err != nil {
		WriteErr(w, r, err)
		return
	}

	h.logger.Info().Str("job_id", jobID).Msg("Job cancelled by admin")
	WriteResult(w, r, http.StatusOK, "job cancelled", map[string]string{"job_id": jobID})
}
