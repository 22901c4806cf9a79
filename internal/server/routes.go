package server

import (
	"net/http"

	"github.com/ternarybob/scribo/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Jobs
	mux.HandleFunc("/jobs/process", s.requirePublisher(s.app.JobHandler.ProcessHandler))
	mux.HandleFunc("/jobs/status/", s.requireAdmin(s.app.JobHandler.StatusHandler))
	mux.HandleFunc("/jobs/stats", s.requireAdmin(s.app.JobHandler.StatsHandler))
	mux.HandleFunc("/jobs/cancel/", s.requireAdmin(s.app.JobHandler.CancelHandler))

	// Questions
	mux.HandleFunc("/questions/check-and-load", s.requirePublisher(s.app.QuestionHandler.CheckAndLoadHandler))
	mux.HandleFunc("/questions/by-url", s.requirePublisher(s.app.QuestionHandler.ByURLHandler))
	mux.HandleFunc("/questions/click/", s.app.QuestionHandler.ClickHandler) // public, widget traffic
	mux.HandleFunc("/questions/", s.requireAdmin(s.handleQuestionRoutes)) // GET/DELETE /{id}

	// Search and QA
	mux.HandleFunc("/search/similar", s.requirePublisher(s.app.SearchHandler.SimilarHandler))
	mux.HandleFunc("/qa/ask", s.requirePublisher(s.app.QAHandler.AskHandler))

	// Publishers
	mux.HandleFunc("/publishers/onboard", s.requireAdmin(s.app.PublisherHandler.OnboardHandler))
	mux.HandleFunc("/publishers/update", s.requirePublisher(s.app.PublisherHandler.UpdateHandler))
	mux.HandleFunc("/publishers/metadata", s.app.PublisherHandler.MetadataHandler) // public

	// System
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/version", s.app.APIHandler.VersionHandler)

	return mux
}

// handleQuestionRoutes dispatches /questions/{id} by method:
// GET reads one question, DELETE purges a blog and its artifacts.
func (s *Server) handleQuestionRoutes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.QuestionHandler.GetHandler(w, r)
	case http.MethodDelete:
		s.app.QuestionHandler.DeleteBlogHandler(w, r)
	default:
		handlers.WriteError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
