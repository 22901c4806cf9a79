package models

import (
	"time"
)

// Blog is the crawled source document, keyed by normalized URL.
type Blog struct {
	ID        string            `json:"id"`
	URL       string            `json:"url" badgerhold:"index"` // normalized, unique
	Title     string            `json:"title"`
	Content   string            `json:"content"` // cleaned text (markdown)
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Summary is the LLM-generated digest of a blog. At most one per URL.
type Summary struct {
	ID        string    `json:"id"`
	BlogURL   string    `json:"blog_url" badgerhold:"index"`
	Text      string    `json:"text"`
	KeyPoints []string  `json:"key_points,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Question is one generated question-answer pair for a blog.
// ClickCount is monotonically non-decreasing.
type Question struct {
	ID         string    `json:"id"`
	BlogURL    string    `json:"blog_url" badgerhold:"index"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Embedding  []float32 `json:"embedding,omitempty"`
	ClickCount int       `json:"click_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// QuestionInput is the write-side shape for ReplaceQuestions.
type QuestionInput struct {
	Question  string
	Answer    string
	Embedding []float32
}

// SearchResult is one vector-similarity hit over question embeddings.
type SearchResult struct {
	URL      string  `json:"url"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

// DeletionReport carries per-collection deletion counts from an admin
// purge. Partial deletion is reported, not rolled back.
type DeletionReport struct {
	BlogDeleted      bool `json:"blog_deleted"`
	QuestionsDeleted int  `json:"questions_deleted"`
	SummaryDeleted   bool `json:"summary_deleted"`
}
