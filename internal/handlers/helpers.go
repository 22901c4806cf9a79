package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/models"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Status     string      `json:"status"` // "success" or "error"
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message,omitempty"`
	Result     interface{} `json:"result,omitempty"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
}

type contextKey string

const (
	publisherContextKey contextKey = "publisher"
	requestIDContextKey contextKey = "request_id"
)

// ContextWithPublisher stashes the authenticated publisher on the request context.
func ContextWithPublisher(ctx context.Context, publisher *models.Publisher) context.Context {
	return context.WithValue(ctx, publisherContextKey, publisher)
}

// PublisherFromContext returns the authenticated publisher, nil when absent.
func PublisherFromContext(ctx context.Context) *models.Publisher {
	publisher, _ := ctx.Value(publisherContextKey).(*models.Publisher)
	return publisher
}

// ContextWithRequestID stashes the request id on the request context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext returns the request id, generating one when absent.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDContextKey).(string); ok && id != "" {
		return id
	}
	return common.NewRequestID()
}

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteResult writes a success envelope with the given payload.
func WriteResult(w http.ResponseWriter, r *http.Request, statusCode int, message string, result interface{}) error {
	return WriteJSON(w, statusCode, Response{
		Status:     "success",
		StatusCode: statusCode,
		Message:    message,
		Result:     result,
		RequestID:  RequestIDFromContext(r.Context()),
		Timestamp:  time.Now().UTC(),
	})
}

// WriteError writes an error envelope with the given status and message.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, message string) error {
	return WriteJSON(w, statusCode, Response{
		Status:     "error",
		StatusCode: statusCode,
		Message:    message,
		RequestID:  RequestIDFromContext(r.Context()),
		Timestamp:  time.Now().UTC(),
	})
}

// WriteErr maps an application error onto the envelope. Internal
// transient/permanent classifications are not exposed beyond the status
// code mapping.
func WriteErr(w http.ResponseWriter, r *http.Request, err error) error {
	status := common.HTTPStatus(err)
	message := err.Error()
	if status >= 500 {
		message = "internal error"
	}
	return WriteError(w, r, status, message)
}

// DecodeBody decodes a JSON request body into dst.
func DecodeBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return common.WrapError(common.KindValidation, "", "invalid request body", err)
	}
	return nil
}
