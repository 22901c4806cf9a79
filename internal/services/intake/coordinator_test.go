package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
	"github.com/ternarybob/scribo/internal/services/auth"
)

type fakeReservation struct {
	committed bool
	closed    bool
}

func (r *fakeReservation) Commit() { r.committed = true }

func (r *fakeReservation) Close(ctx context.Context) error {
	if !r.committed {
		r.closed = true
	}
	return nil
}

type fakePublishers struct {
	interfaces.PublisherStorage
	reserveErr  error
	reservation *fakeReservation
}

func (f *fakePublishers) ReserveSlot(ctx context.Context, publisherID string) (interfaces.SlotReservation, error) {
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	f.reservation = &fakeReservation{}
	return f.reservation, nil
}

type fakeJobs struct {
	interfaces.JobStorage
	existing       *models.Job // returned by Create with createdNew=false
	created        *models.Job
	createSnapshot *models.PublisherConfig
	byURL          *models.Job
	completedToday int
}

func (f *fakeJobs) Create(ctx context.Context, url, publisherID string, snapshot *models.PublisherConfig) (*models.Job, bool, error) {
	f.createSnapshot = snapshot
	if f.existing != nil {
		return f.existing, false, nil
	}
	f.created = &models.Job{
		ID:             "job_new",
		BlogURL:        url,
		PublisherID:    publisherID,
		Status:         models.JobStatusQueued,
		ConfigSnapshot: snapshot,
	}
	return f.created, true, nil
}

func (f *fakeJobs) GetByURL(ctx context.Context, url string) (*models.Job, error) {
	if f.byURL == nil {
		return nil, common.NewError(common.KindNotFound, "", "no job for url")
	}
	return f.byURL, nil
}

func (f *fakeJobs) CountCompletedSince(ctx context.Context, publisherID string, since time.Time) (int, error) {
	return f.completedToday, nil
}

type fakeArtifacts struct {
	interfaces.ArtifactStorage
	blog      *models.Blog
	questions []*models.Question
}

func (f *fakeArtifacts) GetBlogByURL(ctx context.Context, url string) (*models.Blog, error) {
	if f.blog == nil {
		return nil, common.NewError(common.KindNotFound, "", "blog not found")
	}
	return f.blog, nil
}

func (f *fakeArtifacts) GetQuestionsByURL(ctx context.Context, url string) ([]*models.Question, error) {
	return f.questions, nil
}

func activePublisher() *models.Publisher {
	return &models.Publisher{
		ID:     "pub_1",
		Domain: "example.com",
		Status: models.PublisherStatusActive,
		Config: models.DefaultPublisherConfig(),
	}
}

func newCoordinator(publishers *fakePublishers, jobs *fakeJobs, artifacts *fakeArtifacts) *Coordinator {
	logger := arbor.NewLogger()
	return NewCoordinator(publishers, jobs, artifacts, auth.NewPolicy(logger), logger)
}

func TestEnqueue_CreatesJobAndCommitsSlot(t *testing.T) {
	publishers := &fakePublishers{}
	jobs := &fakeJobs{}
	coordinator := newCoordinator(publishers, jobs, &fakeArtifacts{})

	result, err := coordinator.Enqueue(context.Background(), "https://www.Example.com/post/", activePublisher())
	require.NoError(t, err)
	assert.True(t, result.CreatedNew)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, models.JobStatusQueued, result.Status)

	// URL is normalized before hitting the queue
	assert.Equal(t, "https://example.com/post", jobs.created.BlogURL)
	require.NotNil(t, publishers.reservation)
	assert.True(t, publishers.reservation.committed)
	// Job carries an independent config snapshot with defaults applied
	require.NotNil(t, jobs.createSnapshot)
	assert.Equal(t, 5, jobs.createSnapshot.QuestionsPerBlog)
}

func TestEnqueue_ExistingActiveJobReleasesReservation(t *testing.T) {
	publishers := &fakePublishers{}
	jobs := &fakeJobs{existing: &models.Job{ID: "job_old", Status: models.JobStatusQueued}}
	coordinator := newCoordinator(publishers, jobs, &fakeArtifacts{})

	result, err := coordinator.Enqueue(context.Background(), "https://example.com/post", activePublisher())
	require.NoError(t, err)
	assert.False(t, result.CreatedNew)
	assert.Equal(t, "job_old", result.JobID)

	require.NotNil(t, publishers.reservation)
	assert.False(t, publishers.reservation.committed)
	assert.True(t, publishers.reservation.closed, "the duplicate's reservation is released")
}

func TestEnqueue_DomainMismatch(t *testing.T) {
	coordinator := newCoordinator(&fakePublishers{}, &fakeJobs{}, &fakeArtifacts{})

	_, err := coordinator.Enqueue(context.Background(), "https://other.com/post", activePublisher())
	require.Error(t, err)
	assert.Equal(t, common.CodeDomainMismatch, common.CodeOf(err))
}

func TestEnqueue_InactivePublisher(t *testing.T) {
	coordinator := newCoordinator(&fakePublishers{}, &fakeJobs{}, &fakeArtifacts{})

	publisher := activePublisher()
	publisher.Status = models.PublisherStatusInactive
	_, err := coordinator.Enqueue(context.Background(), "https://example.com/post", publisher)
	require.Error(t, err)
	assert.Equal(t, common.KindAuth, common.KindOf(err))
}

func TestEnqueue_DailyLimit(t *testing.T) {
	limit := 3
	publisher := activePublisher()
	publisher.Config.DailyBlogLimit = &limit

	coordinator := newCoordinator(&fakePublishers{}, &fakeJobs{completedToday: 3}, &fakeArtifacts{})
	_, err := coordinator.Enqueue(context.Background(), "https://example.com/post", publisher)
	require.Error(t, err)
	assert.Equal(t, common.CodeDailyLimitExceeded, common.CodeOf(err))

	// Below the limit the submission goes through
	coordinator = newCoordinator(&fakePublishers{}, &fakeJobs{completedToday: 2}, &fakeArtifacts{})
	_, err = coordinator.Enqueue(context.Background(), "https://example.com/post", publisher)
	require.NoError(t, err)
}

func TestEnqueue_AlreadyProcessedShortCircuits(t *testing.T) {
	publishers := &fakePublishers{}
	jobs := &fakeJobs{byURL: &models.Job{ID: "job_done", Status: models.JobStatusCompleted}}
	artifacts := &fakeArtifacts{blog: &models.Blog{ID: "blog_1", URL: "https://example.com/post"}}
	coordinator := newCoordinator(publishers, jobs, artifacts)

	// Whitelist would reject this URL, but the short-circuit runs first
	publisher := activePublisher()
	publisher.Config.WhitelistedBlogURLs = []string{"https://example.com/other/*"}

	result, err := coordinator.Enqueue(context.Background(), "https://example.com/post", publisher)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, "job_done", result.JobID)
	assert.Nil(t, publishers.reservation, "no slot consumed for already-processed content")
}

func TestEnqueue_WhitelistRejection(t *testing.T) {
	publisher := activePublisher()
	publisher.Config.WhitelistedBlogURLs = []string{"https://example.com/blog/*"}

	coordinator := newCoordinator(&fakePublishers{}, &fakeJobs{}, &fakeArtifacts{})
	_, err := coordinator.Enqueue(context.Background(), "https://example.com/news/post", publisher)
	require.Error(t, err)
	assert.Equal(t, common.CodeNotWhitelisted, common.CodeOf(err))
}

func TestEnqueue_QuotaExhausted(t *testing.T) {
	publishers := &fakePublishers{
		reserveErr: common.NewError(common.KindQuota, common.CodeUsageLimitExceeded, "limit reached"),
	}
	coordinator := newCoordinator(publishers, &fakeJobs{}, &fakeArtifacts{})

	_, err := coordinator.Enqueue(context.Background(), "https://example.com/post", activePublisher())
	require.Error(t, err)
	assert.Equal(t, common.CodeUsageLimitExceeded, common.CodeOf(err))
}

func TestCheckAndLoad_Ready(t *testing.T) {
	artifacts := &fakeArtifacts{
		blog:      &models.Blog{ID: "blog_1", URL: "https://example.com/post"},
		questions: []*models.Question{{ID: "q_1", Question: "Q?", Answer: "A"}},
	}
	coordinator := newCoordinator(&fakePublishers{}, &fakeJobs{}, artifacts)

	result, err := coordinator.CheckAndLoad(context.Background(), "https://example.com/post", activePublisher())
	require.NoError(t, err)
	assert.Equal(t, LoadStatusReady, result.Status)
	require.Len(t, result.Questions, 1)
	require.NotNil(t, result.Blog)
}

func TestCheckAndLoad_Processing(t *testing.T) {
	jobs := &fakeJobs{byURL: &models.Job{ID: "job_1", Status: models.JobStatusProcessing}}
	coordinator := newCoordinator(&fakePublishers{}, jobs, &fakeArtifacts{})

	result, err := coordinator.CheckAndLoad(context.Background(), "https://example.com/post", activePublisher())
	require.NoError(t, err)
	assert.Equal(t, LoadStatusProcessing, result.Status)
	assert.Equal(t, "job_1", result.JobID)
}

func TestCheckAndLoad_Failed(t *testing.T) {
	jobs := &fakeJobs{byURL: &models.Job{ID: "job_1", Status: models.JobStatusFailed}}
	coordinator := newCoordinator(&fakePublishers{}, jobs, &fakeArtifacts{})

	result, err := coordinator.CheckAndLoad(context.Background(), "https://example.com/post", activePublisher())
	require.NoError(t, err)
	assert.Equal(t, LoadStatusFailed, result.Status)
}

func TestCheckAndLoad_NotStartedEnqueues(t *testing.T) {
	publishers := &fakePublishers{}
	jobs := &fakeJobs{}
	coordinator := newCoordinator(publishers, jobs, &fakeArtifacts{})

	result, err := coordinator.CheckAndLoad(context.Background(), "https://example.com/post", activePublisher())
	require.NoError(t, err)
	assert.Equal(t, LoadStatusNotStarted, result.Status)
	assert.Equal(t, "job_new", result.JobID)
	require.NotNil(t, publishers.reservation)
	assert.True(t, publishers.reservation.committed)
}

func TestCheckAndLoad_DomainMismatch(t *testing.T) {
	coordinator := newCoordinator(&fakePublishers{}, &fakeJobs{}, &fakeArtifacts{})

	_, err := coordinator.CheckAndLoad(context.Background(), "https://other.com/post", activePublisher())
	require.Error(t, err)
	assert.Equal(t, common.CodeDomainMismatch, common.CodeOf(err))
}
