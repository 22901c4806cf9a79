package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// PublisherHandler serves publisher onboarding, config updates, and the
// public widget metadata endpoint.
type PublisherHandler struct {
	publishers interfaces.PublisherStorage
	artifacts  interfaces.ArtifactStorage
	logger     arbor.ILogger
}

// NewPublisherHandler creates a new publisher handler
func NewPublisherHandler(publishers interfaces.PublisherStorage, artifacts interfaces.ArtifactStorage, logger arbor.ILogger) *PublisherHandler {
	return &PublisherHandler{
		publishers: publishers,
		artifacts:  artifacts,
		logger:     logger,
	}
}

type onboardRequest struct {
	Name   string                  `json:"name"`
	Domain string                  `json:"domain"`
	Email  string                  `json:"email"`
	Config *models.PublisherConfig `json:"config,omitempty"`
}

// onboardResponse is the only payload that ever carries the API key.
type onboardResponse struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Domain string                 `json:"domain"`
	APIKey string                 `json:"api_key"`
	Status models.PublisherStatus `json:"status"`
	Config models.PublisherConfig `json:"config"`
}

// OnboardHandler creates a publisher and returns its API key exactly once
// (POST /publishers/onboard, admin)
func (h *PublisherHandler) OnboardHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req onboardRequest
	if err := DecodeBody(r, &req); err != nil {
		WriteErr(w, r, err)
		return
	}
	if req.Domain == "" {
		WriteError(w, r, http.StatusBadRequest, "domain is required")
		return
	}

	config := models.DefaultPublisherConfig()
	if req.Config != nil {
		config = *req.Config
	}

	publisher, err := h.publishers.Create(r.Context(), req.Name, req.Domain, req.Email, config)
	if err != nil {
		WriteErr(w, r, err)
		return
	}

	WriteResult(w, r, http.StatusOK, "publisher created", onboardResponse{
		ID:     publisher.ID,
		Name:   publisher.Name,
		Domain: publisher.Domain,
		APIKey: publisher.APIKey,
		Status: publisher.Status,
		Config: publisher.Config,
	})
}

type updateRequest struct {
	Config *models.PublisherConfigPatch `json:"config,omitempty"`
	Status models.PublisherStatus       `json:"status,omitempty"`
}

// UpdateHandler merges a config patch into the authenticated publisher
// (PUT /publishers/update)
func (h *PublisherHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPut) {
		return
	}

	publisher := PublisherFromContext(r.Context())
	if publisher == nil {
		WriteError(w, r, http.StatusUnauthorized, "publisher authentication required")
		return
	}

	var req updateRequest
	if err := DecodeBody(r, &req); err != nil {
		WriteErr(w, r, err)
		return
	}

	patch := models.PublisherConfigPatch{}
	if req.Config != nil {
		patch = *req.Config
	}

	updated, err := h.publishers.Update(r.Context(), publisher.ID, patch, req.Status, publisher.APIKey)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteResult(w, r, http.StatusOK, "publisher updated", updated)
}

// metadataResponse exposes only what the embedded widget needs to render.
type metadataResponse struct {
	PublisherID   string                     `json:"publisher_id"`
	Name          string                     `json:"name"`
	Domain        string                     `json:"domain"`
	Active        bool                       `json:"active"`
	QuestionCount int                        `json:"question_count"`
	Widget        map[string]json.RawMessage `json:"widget,omitempty"`
}

// MetadataHandler is the public widget bootstrap endpoint
// (GET /publishers/metadata?blog_url=...)
func (h *PublisherHandler) MetadataHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
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

	publisher, err := h.publishers.GetByDomain(r.Context(), common.HostOf(url), true)
	if err != nil {
		WriteErr(w, r, err)
		return
	}

	// Question count tells the widget whether there is anything to render
	// before it makes further calls.
	questions, err := h.artifacts.GetQuestionsByURL(r.Context(), url)
	if err != nil && common.KindOf(err) != common.KindNotFound {
		WriteErr(w, r, err)
		return
	}

	WriteResult(w, r, http.StatusOK, "", metadataResponse{
		PublisherID:   publisher.ID,
		Name:          publisher.Name,
		Domain:        publisher.Domain,
		Active:        publisher.Status != models.PublisherStatusInactive,
		QuestionCount: len(questions),
		Widget:        publisher.Config.Extra,
	})
}
