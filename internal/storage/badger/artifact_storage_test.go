package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/models"
)

func newTestArtifactStorage(t *testing.T) *ArtifactStorage {
	t.Helper()
	return NewArtifactStorage(openTestDB(t), arbor.NewLogger()).(*ArtifactStorage)
}

func TestUpsertBlog_PreservesIdentityOnReprocess(t *testing.T) {
	storage := newTestArtifactStorage(t)
	ctx := context.Background()

	first, err := storage.UpsertBlog(ctx, "https://example.com/post", "Original", "content v1", nil)
	require.NoError(t, err)

	second, err := storage.UpsertBlog(ctx, "https://example.com/post", "Updated", "content v2", map[string]string{"lang": "en"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "Updated", second.Title)

	stored, err := storage.GetBlogByURL(ctx, "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, "content v2", stored.Content)
}

func TestUpsertSummary_SinglePerURL(t *testing.T) {
	storage := newTestArtifactStorage(t)
	ctx := context.Background()

	first, err := storage.UpsertSummary(ctx, "https://example.com/post", "summary v1", []string{"a"}, nil)
	require.NoError(t, err)

	second, err := storage.UpsertSummary(ctx, "https://example.com/post", "summary v2", []string{"a", "b"}, []float32{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stored, err := storage.GetSummaryByURL(ctx, "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, "summary v2", stored.Text)
	assert.Len(t, stored.KeyPoints, 2)
}

func TestReplaceQuestions_SwapsFullSet(t *testing.T) {
	storage := newTestArtifactStorage(t)
	ctx := context.Background()

	initial := []models.QuestionInput{
		{Question: "Q1?", Answer: "A1"},
		{Question: "Q2?", Answer: "A2"},
		{Question: "Q3?", Answer: "A3"},
	}
	_, err := storage.ReplaceQuestions(ctx, "https://example.com/post", initial)
	require.NoError(t, err)

	replacement := []models.QuestionInput{
		{Question: "New Q1?", Answer: "New A1"},
		{Question: "New Q2?", Answer: "New A2"},
	}
	stored, err := storage.ReplaceQuestions(ctx, "https://example.com/post", replacement)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// Only the replacement set remains
	questions, err := storage.GetQuestionsByURL(ctx, "https://example.com/post")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "New Q1?", questions[0].Question)
	assert.Equal(t, "New Q2?", questions[1].Question)
}

func TestReplaceQuestions_ScopedToURL(t *testing.T) {
	storage := newTestArtifactStorage(t)
	ctx := context.Background()

	_, err := storage.ReplaceQuestions(ctx, "https://example.com/a", []models.QuestionInput{{Question: "A?", Answer: "A"}})
	require.NoError(t, err)
	_, err = storage.ReplaceQuestions(ctx, "https://example.com/b", []models.QuestionInput{{Question: "B?", Answer: "B"}})
	require.NoError(t, err)

	questions, err := storage.GetQuestionsByURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "A?", questions[0].Question)
}

func TestIncrementQuestionClick(t *testing.T) {
	storage := newTestArtifactStorage(t)
	ctx := context.Background()

	stored, err := storage.ReplaceQuestions(ctx, "https://example.com/post", []models.QuestionInput{{Question: "Q?", Answer: "A"}})
	require.NoError(t, err)
	questionID := stored[0].ID

	count, err := storage.IncrementQuestionClick(ctx, questionID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = storage.IncrementQuestionClick(ctx, questionID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = storage.IncrementQuestionClick(ctx, "q_missing")
	require.Error(t, err)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestSearchSimilar(t *testing.T) {
	storage := newTestArtifactStorage(t)
	ctx := context.Background()

	_, err := storage.ReplaceQuestions(ctx, "https://example.com/close", []models.QuestionInput{
		{Question: "Close match?", Answer: "Yes", Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	_, err = storage.ReplaceQuestions(ctx, "https://example.com/far", []models.QuestionInput{
		{Question: "Far match?", Answer: "No", Embedding: []float32{0, 1, 0}},
		{Question: "No embedding?", Answer: "Skipped"},
		{Question: "Wrong dimension?", Answer: "Skipped", Embedding: []float32{1, 0}},
	})
	require.NoError(t, err)
	_, err = storage.ReplaceQuestions(ctx, "https://other.com/post", []models.QuestionInput{
		{Question: "Other tenant?", Answer: "Filtered", Embedding: []float32{1, 0, 0}},
	})
	require.NoError(t, err)

	results, err := storage.SearchSimilar(ctx, []float32{1, 0, 0}, 10, "example.com")
	require.NoError(t, err)
	require.Len(t, results, 2, "no-embedding, wrong-dimension and cross-domain questions are excluded")
	assert.Equal(t, "https://example.com/close", results[0].URL)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.0, results[1].Score, 1e-9)

	// Limit trims the ranked list
	results, err = storage.SearchSimilar(ctx, []float32{1, 0, 0}, 1, "example.com")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/close", results[0].URL)
}

func TestDeleteBlog_Cascades(t *testing.T) {
	storage := newTestArtifactStorage(t)
	ctx := context.Background()

	blog, err := storage.UpsertBlog(ctx, "https://example.com/post", "Post", "content", nil)
	require.NoError(t, err)
	_, err = storage.UpsertSummary(ctx, "https://example.com/post", "summary", nil, nil)
	require.NoError(t, err)
	_, err = storage.ReplaceQuestions(ctx, "https://example.com/post", []models.QuestionInput{
		{Question: "Q1?", Answer: "A1"},
		{Question: "Q2?", Answer: "A2"},
	})
	require.NoError(t, err)

	report, err := storage.DeleteBlog(ctx, blog.ID)
	require.NoError(t, err)
	assert.True(t, report.BlogDeleted)
	assert.True(t, report.SummaryDeleted)
	assert.Equal(t, 2, report.QuestionsDeleted)

	_, err = storage.GetBlogByURL(ctx, "https://example.com/post")
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
	questions, err := storage.GetQuestionsByURL(ctx, "https://example.com/post")
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestDeleteBlog_MissingBlog(t *testing.T) {
	storage := newTestArtifactStorage(t)

	_, err := storage.DeleteBlog(context.Background(), "blog_missing")
	require.Error(t, err)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
