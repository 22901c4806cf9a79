package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/deletion"
	"github.com/ternarybob/scribo/internal/services/intake"
)

// QuestionHandler serves question reads, the check-and-load fast path,
// click tracking, and admin blog purges.
type QuestionHandler struct {
	intake    *intake.Coordinator
	deletion  *deletion.Coordinator
	artifacts interfaces.ArtifactStorage
	logger    arbor.ILogger
}

// NewQuestionHandler creates a new question handler
func NewQuestionHandler(
	coordinator *intake.Coordinator,
	deleter *deletion.Coordinator,
	artifacts interfaces.ArtifactStorage,
	logger arbor.ILogger,
) *QuestionHandler {
	return &QuestionHandler{
		intake:    coordinator,
		deletion:  deleter,
		artifacts: artifacts,
		logger:    logger,
	}
}

// CheckAndLoadHandler is the viewer fast path (GET /questions/check-and-load?blog_url=...)
func (h *QuestionHandler) CheckAndLoadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	publisher := PublisherFromContext(r.Context())
	if publisher == nil {
		WriteError(w, r, http.StatusUnauthorized, "publisher authentication required")
		return
	}

	blogURL := r.URL.Query().Get("blog_url")
	if blogURL == "" {
		WriteError(w, r, http.StatusBadRequest, "blog_url query parameter is required")
		return
	}

	result, err := h.intake.CheckAndLoad(r.Context(), blogURL, publisher)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "", result)
}

// ByURLHandler returns the questions for a blog URL (GET /questions/by-url?blog_url=...)
func (h *QuestionHandler) ByURLHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	publisher := PublisherFromContext(r.Context())
	if publisher == nil {
		WriteError(w, r, http.StatusUnauthorized, "publisher authentication required")
		return
	}

	blogURL := r.URL.Query().Get("blog_url")
	if blogURL == "" {
		WriteError(w, r, http.StatusBadRequest, "blog_url query parameter is required")
		return
	}

	url, err := common.NormalizeURL(blogURL)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	if !common.IsSameOrSubdomain(common.HostOf(url), publisher.Domain) {
		WriteError(w, r, http.StatusForbidden, "URL does not belong to publisher domain")
		return
	}

	questions, err := h.artifacts.GetQuestionsByURL(r.Context(), url)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "", questions)
}

// GetHandler returns one question by id (GET /questions/{question_id}, admin)
func (h *QuestionHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	questionID := strings.TrimPrefix(r.URL.Path, "/questions/")
	if questionID == "" || strings.Contains(questionID, "/") {
		WriteError(w, r, http.StatusBadRequest, "question id is required")
		return
	}

	question, err := h.artifacts.GetQuestionByID(r.Context(), questionID)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "", question)
}

// DeleteBlogHandler purges a blog and its artifacts (DELETE /questions/{blog_id}, admin)
func (h *QuestionHandler) DeleteBlogHandler(w http.ResponseWriter, r *http.Request) {
	blogID := strings.TrimPrefix(r.URL.Path, "/questions/")
	if blogID == "" || strings.Contains(blogID, "/") {
		WriteError(w, r, http.StatusBadRequest, "blog id is required")
		return
	}

	report, err := h.deletion.DeleteBlog(r.Context(), blogID)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "blog deleted", report)
}

// ClickHandler bumps a question's click counter (POST /questions/click/{question_id})
func (h *QuestionHandler) ClickHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	questionID := strings.TrimPrefix(r.URL.Path, "/questions/click/")
	if questionID == "" {
		WriteError(w, r, http.StatusBadRequest, "question id is required")
		return
	}

	count, err := h.artifacts.IncrementQuestionClick(r.Context(), questionID)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "", map[string]interface{}{
		"question_id": questionID,
		"click_count": count,
	})
}
