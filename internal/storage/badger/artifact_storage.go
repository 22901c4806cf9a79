package badger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ArtifactStorage implements the ArtifactStorage interface for Badger
type ArtifactStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewArtifactStorage creates a new ArtifactStorage instance
func NewArtifactStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ArtifactStorage {
	return &ArtifactStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertBlog writes the crawled document for a URL, keeping the original
// blog id and created_at on re-processing.
func (s *ArtifactStorage) UpsertBlog(ctx context.Context, normalizedURL, title, content string, metadata map[string]string) (*models.Blog, error) {
	now := time.Now().UTC()

	existing, err := s.GetBlogByURL(ctx, normalizedURL)
	if err != nil && common.KindOf(err) != common.KindNotFound {
		return nil, err
	}

	blog := &models.Blog{
		ID:        common.NewBlogID(),
		URL:       normalizedURL,
		Title:     title,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		blog.ID = existing.ID
		blog.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(blog.ID, blog); err != nil {
		return nil, fmt.Errorf("failed to upsert blog: %w", err)
	}

	s.logger.Debug().Str("blog_id", blog.ID).Str("url", normalizedURL).Msg("Blog stored")
	return blog, nil
}

func (s *ArtifactStorage) GetBlogByURL(ctx context.Context, normalizedURL string) (*models.Blog, error) {
	var blogs []models.Blog
	query := badgerhold.Where("URL").Eq(normalizedURL).Index("URL").Limit(1)
	if err := s.db.Store().Find(&blogs, query); err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	if len(blogs) == 0 {
		return nil, common.NewError(common.KindNotFound, "", fmt.Sprintf("blog not found: %s", normalizedURL))
	}
	return &blogs[0], nil
}

func (s *ArtifactStorage) GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error) {
	var blog models.Blog
	if err := s.db.Store().Get(blogID, &blog); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, common.NewError(common.KindNotFound, "", fmt.Sprintf("blog not found: %s", blogID))
		}
		return nil, fmt.Errorf("failed to get blog: %w", err)
	}
	return &blog, nil
}

// UpsertSummary replaces the at-most-one summary for a URL.
func (s *ArtifactStorage) UpsertSummary(ctx context.Context, normalizedURL, text string, keyPoints []string, embedding []float32) (*models.Summary, error) {
	now := time.Now().UTC()

	existing, err := s.GetSummaryByURL(ctx, normalizedURL)
	if err != nil && common.KindOf(err) != common.KindNotFound {
		return nil, err
	}

	summary := &models.Summary{
		ID:        common.NewSummaryID(),
		BlogURL:   normalizedURL,
		Text:      text,
		KeyPoints: keyPoints,
		Embedding: embedding,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		summary.ID = existing.ID
		summary.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(summary.ID, summary); err != nil {
		return nil, fmt.Errorf("failed to upsert summary: %w", err)
	}
	return summary, nil
}

func (s *ArtifactStorage) GetSummaryByURL(ctx context.Context, normalizedURL string) (*models.Summary, error) {
	var summaries []models.Summary
	query := badgerhold.Where("BlogURL").Eq(normalizedURL).Index("BlogURL").Limit(1)
	if err := s.db.Store().Find(&summaries, query); err != nil {
		return nil, fmt.Errorf("failed to find summary: %w", err)
	}
	if len(summaries) == 0 {
		return nil, common.NewError(common.KindNotFound, "", fmt.Sprintf("summary not found: %s", normalizedURL))
	}
	return &summaries[0], nil
}

// ReplaceQuestions swaps the question set for a URL in one badger
// transaction: delete-all then insert-all, so readers never observe a mix
// of old and new questions.
func (s *ArtifactStorage) ReplaceQuestions(ctx context.Context, normalizedURL string, questions []models.QuestionInput) ([]*models.Question, error) {
	now := time.Now().UTC()
	stored := make([]*models.Question, 0, len(questions))

	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		stored = stored[:0]

		var old []models.Question
		query := badgerhold.Where("BlogURL").Eq(normalizedURL).Index("BlogURL")
		if err := s.db.Store().TxFind(tx, &old, query); err != nil {
			return fmt.Errorf("failed to find existing questions: %w", err)
		}
		for i := range old {
			if err := s.db.Store().TxDelete(tx, old[i].ID, models.Question{}); err != nil {
				return fmt.Errorf("failed to delete question: %w", err)
			}
		}

		for _, input := range questions {
			q := &models.Question{
				ID:        common.NewQuestionID(),
				BlogURL:   normalizedURL,
				Question:  input.Question,
				Answer:    input.Answer,
				Embedding: input.Embedding,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.db.Store().TxInsert(tx, q.ID, q); err != nil {
				return fmt.Errorf("failed to insert question: %w", err)
			}
			stored = append(stored, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("url", normalizedURL).
		Int("count", len(stored)).
		Msg("Questions replaced")

	return stored, nil
}

// GetQuestionsByURL returns the question set for a URL, oldest first with
// id tie-break for a stable order.
func (s *ArtifactStorage) GetQuestionsByURL(ctx context.Context, normalizedURL string) ([]*models.Question, error) {
	var questions []models.Question
	query := badgerhold.Where("BlogURL").Eq(normalizedURL).Index("BlogURL")
	if err := s.db.Store().Find(&questions, query); err != nil {
		return nil, fmt.Errorf("failed to find questions: %w", err)
	}

	sort.Slice(questions, func(i, j int) bool {
		if questions[i].CreatedAt.Equal(questions[j].CreatedAt) {
			return questions[i].ID < questions[j].ID
		}
		return questions[i].CreatedAt.Before(questions[j].CreatedAt)
	})

	result := make([]*models.Question, len(questions))
	for i := range questions {
		result[i] = &questions[i]
	}
	return result, nil
}

func (s *ArtifactStorage) GetQuestionByID(ctx context.Context, questionID string) (*models.Question, error) {
	var question models.Question
	if err := s.db.Store().Get(questionID, &question); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, common.NewError(common.KindNotFound, "", fmt.Sprintf("question not found: %s", questionID))
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

// IncrementQuestionClick bumps the click counter inside a transaction so
// concurrent clicks are never lost.
func (s *ArtifactStorage) IncrementQuestionClick(ctx context.Context, questionID string) (int, error) {
	var count int
	var err error
	for attempt := 0; attempt < claimRetries; attempt++ {
		err = s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
			var question models.Question
			if err := s.db.Store().TxGet(tx, questionID, &question); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					return common.NewError(common.KindNotFound, "", fmt.Sprintf("question not found: %s", questionID))
				}
				return fmt.Errorf("failed to get question: %w", err)
			}

			question.ClickCount++
			question.UpdatedAt = time.Now().UTC()
			if err := s.db.Store().TxUpdate(tx, questionID, &question); err != nil {
				return fmt.Errorf("failed to update question: %w", err)
			}
			count = question.ClickCount
			return nil
		})
		if !errors.Is(err, badgerdb.ErrConflict) {
			break
		}
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SearchSimilar scans question embeddings and ranks by cosine similarity,
// restricted to the publisher's domain (subdomains included). Questions
// without an embedding or with a mismatched dimension are skipped.
func (s *ArtifactStorage) SearchSimilar(ctx context.Context, embedding []float32, limit int, publisherDomain string) ([]*models.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	var questions []models.Question
	if err := s.db.Store().Find(&questions, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to scan questions: %w", err)
	}

	results := make([]*models.SearchResult, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		if len(q.Embedding) != len(embedding) || len(q.Embedding) == 0 {
			continue
		}
		if !common.IsSameOrSubdomain(common.HostOf(q.BlogURL), publisherDomain) {
			continue
		}

		results = append(results, &models.SearchResult{
			URL:      q.BlogURL,
			Question: q.Question,
			Answer:   q.Answer,
			Score:    cosineSimilarity(embedding, q.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].URL < results[j].URL
		}
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteBlog removes the blog and cascades to questions and summary. The
// three collections are deleted in sequence; a failure midway leaves a
// partial report and the operation can be retried.
func (s *ArtifactStorage) DeleteBlog(ctx context.Context, blogID string) (*models.DeletionReport, error) {
	blog, err := s.GetBlogByID(ctx, blogID)
	if err != nil {
		return nil, err
	}

	report := &models.DeletionReport{}

	questions, err := s.GetQuestionsByURL(ctx, blog.URL)
	if err != nil {
		return report, err
	}
	for _, q := range questions {
		if err := s.db.Store().Delete(q.ID, models.Question{}); err != nil {
			return report, fmt.Errorf("failed to delete question %s: %w", q.ID, err)
		}
		report.QuestionsDeleted++
	}

	summary, err := s.GetSummaryByURL(ctx, blog.URL)
	if err == nil {
		if err := s.db.Store().Delete(summary.ID, models.Summary{}); err != nil {
			return report, fmt.Errorf("failed to delete summary: %w", err)
		}
		report.SummaryDeleted = true
	} else if common.KindOf(err) != common.KindNotFound {
		return report, err
	}

	if err := s.db.Store().Delete(blog.ID, models.Blog{}); err != nil {
		return report, fmt.Errorf("failed to delete blog: %w", err)
	}
	report.BlogDeleted = true

	s.logger.Info().
		Str("blog_id", blogID).
		Str("url", blog.URL).
		Int("questions_deleted", report.QuestionsDeleted).
		Msg("Blog deleted")

	return report, nil
}

// cosineSimilarity computes the cosine of the angle between two equal-length
// vectors. Zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
