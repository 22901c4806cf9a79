package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// maxSearchLimit caps the result size of a similarity search.
const maxSearchLimit = 50

// SearchHandler serves vector similarity search over question embeddings
type SearchHandler struct {
	artifacts interfaces.ArtifactStorage
	logger    arbor.ILogger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(artifacts interfaces.ArtifactStorage, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		artifacts: artifacts,
		logger:    logger,
	}
}

type similarRequest struct {
	QuestionID string `json:"question_id"`
	Limit      int    `json:"limit,omitempty"`
}

// SimilarHandler finds questions similar to a stored question
// (POST /search/similar, publisher auth). The seed question must belong to
// the publisher's domain.
func (h *SearchHandler) SimilarHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	publisher := PublisherFromContext(r.Context())
	if publisher == nil {
		WriteError(w, r, http.StatusUnauthorized, "publisher authentication required")
		return
	}

	var req similarRequest
	if err := DecodeBody(r, &req); err != nil {
		WriteErr(w, r, err)
		return
	}
	if req.QuestionID == "" {
		WriteError(w, r, http.StatusBadRequest, "question_id is required")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	question, err := h.artifacts.GetQuestionByID(r.Context(), req.QuestionID)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	if !common.IsSameOrSubdomain(common.HostOf(question.BlogURL), publisher.Domain) {
		WriteError(w, r, http.StatusForbidden, "question does not belong to publisher domain")
		return
	}
	if len(question.Embedding) == 0 {
		WriteError(w, r, http.StatusBadRequest, "question has no embedding")
		return
	}

	results, err := h.artifacts.SearchSimilar(r.Context(), question.Embedding, limit, publisher.Domain)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "", results)
}
