package common

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewPublisherID generates a unique publisher ID with the "pub_" prefix
func NewPublisherID() string {
	return "pub_" + uuid.New().String()
}

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewBlogID generates a unique blog ID with the "blog_" prefix
func NewBlogID() string {
	return "blog_" + uuid.New().String()
}

// NewQuestionID generates a unique question ID with the "q_" prefix
func NewQuestionID() string {
	return "q_" + uuid.New().String()
}

// NewSummaryID generates a unique summary ID with the "sum_" prefix
func NewSummaryID() string {
	return "sum_" + uuid.New().String()
}

// NewRequestID generates a per-request ID with the "req_" prefix
func NewRequestID() string {
	return "req_" + uuid.New().String()
}

// NewAPIKey generates a high-entropy publisher API key.
// Returned exactly once at onboarding; only the key itself is stored.
func NewAPIKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to uuid
		return "sk_" + uuid.New().String()
	}
	return "sk_" + hex.EncodeToString(buf)
}
