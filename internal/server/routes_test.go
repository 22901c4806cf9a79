package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/app"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/handlers"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

type stubArtifacts struct {
	interfaces.ArtifactStorage
	clicks map[string]int
}

func (s *stubArtifacts) IncrementQuestionClick(ctx context.Context, questionID string) (int, error) {
	if s.clicks == nil {
		s.clicks = make(map[string]int)
	}
	s.clicks[questionID]++
	return s.clicks[questionID], nil
}

type stubPublishers struct {
	interfaces.PublisherStorage
}

func (s *stubPublishers) GetByAPIKey(ctx context.Context, apiKey string) (*models.Publisher, error) {
	return nil, common.NewError(common.KindNotFound, "", "publisher not found")
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := arbor.NewLogger()
	artifacts := &stubArtifacts{}
	application := &app.App{
		Config:           common.NewDefaultConfig(),
		Logger:           logger,
		PublisherStorage: &stubPublishers{},
		QuestionHandler:  handlers.NewQuestionHandler(nil, nil, artifacts, logger),
	}
	return &Server{app: application}
}

func TestClickRouteIsPublic(t *testing.T) {
	srv := newTestServer(t)
	mux := srv.setupRoutes()

	// The widget runs in the reader's browser and carries no API key
	req := httptest.NewRequest(http.MethodPost, "/questions/click/q_1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPublisherRoutesRequireAPIKey(t *testing.T) {
	srv := newTestServer(t)
	mux := srv.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/questions/by-url?blog_url=https://example.com/post", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing X-API-Key is rejected")

	req = httptest.NewRequest(http.MethodGet, "/questions/by-url?blog_url=https://example.com/post", nil)
	req.Header.Set("X-API-Key", "sk_bogus")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unknown X-API-Key is rejected")
}
