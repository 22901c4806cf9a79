package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/models"
)

func newTestStorage(t *testing.T) *PublisherStorage {
	t.Helper()

	config := &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		CacheSizeMB:   16,
		BusyTimeoutMS: 5000,
		WALMode:       false,
	}
	db, err := NewSQLiteDB(arbor.NewLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPublisherStorage(db, arbor.NewLogger()).(*PublisherStorage)
}

func createPublisher(t *testing.T, storage *PublisherStorage, domain string, config models.PublisherConfig) *models.Publisher {
	t.Helper()
	publisher, err := storage.Create(context.Background(), "Test Publisher", domain, "test@"+domain, config)
	require.NoError(t, err)
	return publisher
}

func TestPublisherCreate(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	publisher, err := storage.Create(ctx, "Acme Blog", "WWW.Acme.COM", "ops@acme.com", models.DefaultPublisherConfig())
	require.NoError(t, err)
	assert.Equal(t, "acme.com", publisher.Domain, "domain is normalized on write")
	assert.Equal(t, models.PublisherStatusTrial, publisher.Status)
	assert.NotEmpty(t, publisher.APIKey)

	stored, err := storage.GetByID(ctx, publisher.ID)
	require.NoError(t, err)
	assert.Equal(t, publisher.APIKey, stored.APIKey)
	assert.Equal(t, 5, stored.Config.QuestionsPerBlog)
}

func TestPublisherCreate_DomainTaken(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	createPublisher(t, storage, "acme.com", models.DefaultPublisherConfig())

	// Normalization makes www.Acme.com collide with acme.com
	_, err := storage.Create(ctx, "Copycat", "www.Acme.com", "x@acme.com", models.DefaultPublisherConfig())
	require.Error(t, err)
	assert.Equal(t, common.CodeDomainTaken, common.CodeOf(err))
	assert.Equal(t, common.KindConflict, common.KindOf(err))
}

func TestGetByAPIKey(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	publisher := createPublisher(t, storage, "acme.com", models.DefaultPublisherConfig())

	found, err := storage.GetByAPIKey(ctx, publisher.APIKey)
	require.NoError(t, err)
	assert.Equal(t, publisher.ID, found.ID)

	_, err = storage.GetByAPIKey(ctx, "sk_bogus")
	require.Error(t, err)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestGetByDomain_SubdomainResolution(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	parent := createPublisher(t, storage, "example.com", models.DefaultPublisherConfig())
	child := createPublisher(t, storage, "blog.example.com", models.DefaultPublisherConfig())

	// Exact match wins regardless of allowSubdomain
	found, err := storage.GetByDomain(ctx, "blog.example.com", true)
	require.NoError(t, err)
	assert.Equal(t, child.ID, found.ID)

	// A deeper subdomain resolves to the longest registered suffix
	found, err = storage.GetByDomain(ctx, "news.blog.example.com", true)
	require.NoError(t, err)
	assert.Equal(t, child.ID, found.ID)

	found, err = storage.GetByDomain(ctx, "shop.example.com", true)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, found.ID)

	// Without subdomain resolution only exact matches resolve
	_, err = storage.GetByDomain(ctx, "shop.example.com", false)
	require.Error(t, err)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestUpdate_MergesPatchAndChecksKey(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	publisher := createPublisher(t, storage, "acme.com", models.DefaultPublisherConfig())

	limit := 100
	questions := 8
	patch := models.PublisherConfigPatch{
		QuestionsPerBlog: &questions,
		MaxTotalBlogs:    &limit,
	}
	updated, err := storage.Update(ctx, publisher.ID, patch, models.PublisherStatusActive, publisher.APIKey)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Config.QuestionsPerBlog)
	require.NotNil(t, updated.Config.MaxTotalBlogs)
	assert.Equal(t, 100, *updated.Config.MaxTotalBlogs)
	assert.Equal(t, models.PublisherStatusActive, updated.Status)
	// Untouched fields survive the patch
	assert.True(t, updated.Config.GenerateSummary)

	_, err = storage.Update(ctx, publisher.ID, patch, "", "sk_wrong")
	require.Error(t, err)
	assert.Equal(t, common.CodeInvalidAPIKey, common.CodeOf(err))
}

func TestUpdate_ExplicitFalseAndZeroStick(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	publisher := createPublisher(t, storage, "acme.com", models.DefaultPublisherConfig())
	require.True(t, publisher.Config.GenerateSummary)
	require.True(t, publisher.Config.GenerateEmbeddings)

	off := false
	zero := float32(0)
	patch := models.PublisherConfigPatch{
		GenerateSummary:    &off,
		GenerateEmbeddings: &off,
		Temperature:        &zero,
	}
	updated, err := storage.Update(ctx, publisher.ID, patch, "", publisher.APIKey)
	require.NoError(t, err)
	assert.False(t, updated.Config.GenerateSummary)
	assert.False(t, updated.Config.GenerateEmbeddings)
	assert.Equal(t, float32(0), updated.Config.Temperature)

	// The explicit false and zero survive the round trip through storage
	stored, err := storage.GetByID(ctx, publisher.ID)
	require.NoError(t, err)
	assert.False(t, stored.Config.GenerateSummary)
	assert.False(t, stored.Config.GenerateEmbeddings)
	assert.Equal(t, float32(0), stored.Config.Temperature)

	// An empty patch leaves everything untouched
	stored, err = storage.Update(ctx, publisher.ID, models.PublisherConfigPatch{}, "", publisher.APIKey)
	require.NoError(t, err)
	assert.False(t, stored.Config.GenerateSummary)
	assert.Equal(t, float32(0), stored.Config.Temperature)
	assert.Equal(t, 5, stored.Config.QuestionsPerBlog)
}

func TestReserveSlot_EnforcesTotalLimit(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	limit := 2
	config := models.DefaultPublisherConfig()
	config.MaxTotalBlogs = &limit
	publisher := createPublisher(t, storage, "acme.com", config)

	first, err := storage.ReserveSlot(ctx, publisher.ID)
	require.NoError(t, err)
	second, err := storage.ReserveSlot(ctx, publisher.ID)
	require.NoError(t, err)

	// processed + reserved == max_total_blogs: no room left
	_, err = storage.ReserveSlot(ctx, publisher.ID)
	require.Error(t, err)
	assert.Equal(t, common.CodeUsageLimitExceeded, common.CodeOf(err))
	assert.Equal(t, common.KindQuota, common.KindOf(err))

	first.Commit()
	require.NoError(t, second.Close(ctx))

	stored, err := storage.GetByID(ctx, publisher.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.BlogSlotsReserved, "committed reservation stays, closed one released")
}

func TestReserveSlot_ConcurrentCallersOneSlot(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	limit := 1
	config := models.DefaultPublisherConfig()
	config.MaxTotalBlogs = &limit
	publisher := createPublisher(t, storage, "acme.com", config)

	const callers = 8
	var wg sync.WaitGroup
	var successes, quotaErrors int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reservation, err := storage.ReserveSlot(ctx, publisher.ID)
			if err != nil {
				if common.CodeOf(err) == common.CodeUsageLimitExceeded {
					atomic.AddInt32(&quotaErrors, 1)
				}
				return
			}
			atomic.AddInt32(&successes, 1)
			reservation.Commit()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes, "exactly one caller wins the last slot")
	assert.Equal(t, int32(callers-1), quotaErrors)

	stored, err := storage.GetByID(ctx, publisher.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.BlogSlotsReserved)
}

func TestReserveSlot_UnlimitedWithoutMax(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	publisher := createPublisher(t, storage, "acme.com", models.DefaultPublisherConfig())

	for i := 0; i < 5; i++ {
		reservation, err := storage.ReserveSlot(ctx, publisher.ID)
		require.NoError(t, err)
		reservation.Commit()
	}

	stored, err := storage.GetByID(ctx, publisher.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.BlogSlotsReserved)
}

func TestReserveSlot_MissingPublisher(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.ReserveSlot(context.Background(), "pub_missing")
	require.Error(t, err)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestReleaseSlot(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	publisher := createPublisher(t, storage, "acme.com", models.DefaultPublisherConfig())

	reservation, err := storage.ReserveSlot(ctx, publisher.ID)
	require.NoError(t, err)
	reservation.Commit()

	// Processed release decrements reserved and increments processed
	require.NoError(t, storage.ReleaseSlot(ctx, publisher.ID, true))
	stored, err := storage.GetByID(ctx, publisher.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.BlogSlotsReserved)
	assert.Equal(t, 1, stored.TotalBlogsProcessed)

	// Release at zero saturates instead of going negative
	require.NoError(t, storage.ReleaseSlot(ctx, publisher.ID, false))
	stored, err = storage.GetByID(ctx, publisher.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.BlogSlotsReserved)
	assert.Equal(t, 1, stored.TotalBlogsProcessed)
}

func TestSlotReservation_CloseIsIdempotent(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	publisher := createPublisher(t, storage, "acme.com", models.DefaultPublisherConfig())

	reservation, err := storage.ReserveSlot(ctx, publisher.ID)
	require.NoError(t, err)

	require.NoError(t, reservation.Close(ctx))
	require.NoError(t, reservation.Close(ctx))

	stored, err := storage.GetByID(ctx, publisher.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.BlogSlotsReserved, "double Close releases exactly once")
}

func TestSetSlotsReservedAndListIDs(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	a := createPublisher(t, storage, "a.com", models.DefaultPublisherConfig())
	b := createPublisher(t, storage, "b.com", models.DefaultPublisherConfig())

	ids, err := storage.ListIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	require.NoError(t, storage.SetSlotsReserved(ctx, a.ID, 3))
	stored, err := storage.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.BlogSlotsReserved)

	// Negative values clamp to zero
	require.NoError(t, storage.SetSlotsReserved(ctx, a.ID, -1))
	stored, err = storage.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.BlogSlotsReserved)
}

func TestConfigExtraKeysSurviveRoundTrip(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	config := models.DefaultPublisherConfig()
	config.Extra = map[string]json.RawMessage{
		"widget_theme": json.RawMessage(`"dark"`),
	}
	publisher := createPublisher(t, storage, "acme.com", config)

	stored, err := storage.GetByID(ctx, publisher.ID)
	require.NoError(t, err)
	require.Contains(t, stored.Config.Extra, "widget_theme")
	assert.JSONEq(t, `"dark"`, string(stored.Config.Extra["widget_theme"]))

	// A config patch must not drop the widget keys
	seven := 7
	updated, err := storage.Update(ctx, publisher.ID, models.PublisherConfigPatch{QuestionsPerBlog: &seven}, "", publisher.APIKey)
	require.NoError(t, err)
	require.Contains(t, updated.Config.Extra, "widget_theme")
}
