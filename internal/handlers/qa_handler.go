package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/services/qa"
)

// QAHandler serves on-demand question answering
type QAHandler struct {
	qa     *qa.Service
	logger arbor.ILogger
}

// NewQAHandler creates a new QA handler
func NewQAHandler(service *qa.Service, logger arbor.ILogger) *QAHandler {
	return &QAHandler{
		qa:     service,
		logger: logger,
	}
}

type askRequest struct {
	Question string `json:"question"`
}

// AskHandler answers an ad-hoc reader question from the publisher's stored
// content (POST /qa/ask). Nothing is persisted.
func (h *QAHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	publisher := PublisherFromContext(r.Context())
	if publisher == nil {
		WriteError(w, r, http.StatusUnauthorized, "publisher authentication required")
		return
	}

	var req askRequest
	if err := DecodeBody(r, &req); err != nil {
		WriteErr(w, r, err)
		return
	}

	answer, err := h.qa.Ask(r.Context(), req.Question, publisher)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "", answer)
}
