package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// PublisherStorage implements the PublisherStorage interface for SQLite.
// All counter mutations go through single guarded UPDATE statements, which
// SQLite executes atomically under its writer lock. That gives the same
// exclusion a row-level write lock would.
type PublisherStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewPublisherStorage creates a new PublisherStorage instance
func NewPublisherStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.PublisherStorage {
	return &PublisherStorage{
		db:     db,
		logger: logger,
	}
}

const publisherColumns = `id, name, domain, email, api_key, status, config,
	total_blogs_processed, blog_slots_reserved, created_at, updated_at`

// Create inserts a publisher row, generating its API key. The unique
// domain index backs the one-row-per-domain invariant.
func (s *PublisherStorage) Create(ctx context.Context, name, domain, email string, config models.PublisherConfig) (*models.Publisher, error) {
	domain = common.NormalizeDomain(domain)
	if domain == "" {
		return nil, common.NewError(common.KindValidation, "", "publisher domain is required")
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, common.WrapError(common.KindValidation, "", "invalid publisher config", err)
	}

	configJSON, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	now := time.Now().UTC()
	publisher := &models.Publisher{
		ID:        common.NewPublisherID(),
		Name:      name,
		Domain:    domain,
		Email:     email,
		APIKey:    common.NewAPIKey(),
		Status:    models.PublisherStatusTrial,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `INSERT INTO publishers (id, name, domain, email, api_key, status, config,
		total_blogs_processed, blog_slots_reserved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`

	_, err = s.db.DB().ExecContext(ctx, query,
		publisher.ID, publisher.Name, publisher.Domain, publisher.Email,
		publisher.APIKey, string(publisher.Status), configJSON,
		now.Unix(), now.Unix())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, common.WrapError(common.KindConflict, common.CodeDomainTaken,
				fmt.Sprintf("domain already registered: %s", domain), err)
		}
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	s.logger.Info().
		Str("publisher_id", publisher.ID).
		Str("domain", domain).
		Msg("Publisher created")

	return publisher, nil
}

func (s *PublisherStorage) GetByID(ctx context.Context, id string) (*models.Publisher, error) {
	query := fmt.Sprintf(`SELECT %s FROM publishers WHERE id = ?`, publisherColumns)
	return s.scanOne(s.db.DB().QueryRowContext(ctx, query, id))
}

func (s *PublisherStorage) GetByAPIKey(ctx context.Context, apiKey string) (*models.Publisher, error) {
	query := fmt.Sprintf(`SELECT %s FROM publishers WHERE api_key = ?`, publisherColumns)
	return s.scanOne(s.db.DB().QueryRowContext(ctx, query, apiKey))
}

// GetByDomain looks up a publisher by exact normalized domain. With
// allowSubdomain set, a host like blog.example.com also resolves the
// publisher registered for example.com (longest matching domain wins).
func (s *PublisherStorage) GetByDomain(ctx context.Context, domain string, allowSubdomain bool) (*models.Publisher, error) {
	domain = common.NormalizeDomain(domain)

	query := fmt.Sprintf(`SELECT %s FROM publishers WHERE domain = ?`, publisherColumns)
	publisher, err := s.scanOne(s.db.DB().QueryRowContext(ctx, query, domain))
	if err == nil || !allowSubdomain {
		return publisher, err
	}
	if common.KindOf(err) != common.KindNotFound {
		return nil, err
	}

	query = fmt.Sprintf(`SELECT %s FROM publishers
		WHERE ? = domain OR ? LIKE '%%.' || domain
		ORDER BY LENGTH(domain) DESC LIMIT 1`, publisherColumns)
	return s.scanOne(s.db.DB().QueryRowContext(ctx, query, domain, domain))
}

// Update merges a config patch and status change. The presented API key
// must match the stored one. The stored config is already complete, so the
// merge does not re-apply defaults; an explicit zero from the patch sticks.
func (s *PublisherStorage) Update(ctx context.Context, publisherID string, patch models.PublisherConfigPatch, status models.PublisherStatus, apiKey string) (*models.Publisher, error) {
	publisher, err := s.GetByID(ctx, publisherID)
	if err != nil {
		return nil, err
	}
	if publisher.APIKey != apiKey {
		return nil, common.NewError(common.KindAuth, common.CodeInvalidAPIKey, "api key does not match publisher")
	}

	merged := patch.Apply(publisher.Config)
	if err := merged.Validate(); err != nil {
		return nil, common.WrapError(common.KindValidation, "", "invalid publisher config", err)
	}

	if status != "" {
		publisher.Status = status
	}
	publisher.Config = merged
	publisher.UpdatedAt = time.Now().UTC()

	configJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	query := `UPDATE publishers SET config = ?, status = ?, updated_at = ? WHERE id = ?`
	if _, err := s.db.DB().ExecContext(ctx, query, configJSON, string(publisher.Status), publisher.UpdatedAt.Unix(), publisherID); err != nil {
		return nil, fmt.Errorf("failed to update publisher: %w", err)
	}

	s.logger.Info().Str("publisher_id", publisherID).Msg("Publisher updated")
	return publisher, nil
}

// slotReservation releases the slot on Close unless committed, so intake
// cannot forget the release on a new error path.
type slotReservation struct {
	store       *PublisherStorage
	publisherID string
	mu          sync.Mutex
	committed   bool
	closed      bool
}

func (r *slotReservation) Commit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = true
}

func (r *slotReservation) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.committed || r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	return r.store.ReleaseSlot(ctx, r.publisherID, false)
}

// ReserveSlot increments blog_slots_reserved iff room remains under
// config.max_total_blogs. The guarded UPDATE is a single atomic statement,
// so of two concurrent reservations against one remaining slot exactly one
// succeeds.
func (s *PublisherStorage) ReserveSlot(ctx context.Context, publisherID string) (interfaces.SlotReservation, error) {
	query := `UPDATE publishers
		SET blog_slots_reserved = blog_slots_reserved + 1, updated_at = ?
		WHERE id = ?
		AND (
			json_extract(config, '$.max_total_blogs') IS NULL
			OR total_blogs_processed + blog_slots_reserved < json_extract(config, '$.max_total_blogs')
		)`

	result, err := s.db.DB().ExecContext(ctx, query, time.Now().UTC().Unix(), publisherID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve slot: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing publisher from an exhausted quota.
		if _, err := s.GetByID(ctx, publisherID); err != nil {
			return nil, err
		}
		return nil, common.NewError(common.KindQuota, common.CodeUsageLimitExceeded,
			"publisher has reached its total blog limit")
	}

	s.logger.Debug().Str("publisher_id", publisherID).Msg("Blog slot reserved")

	return &slotReservation{store: s, publisherID: publisherID}, nil
}

// ReleaseSlot decrements blog_slots_reserved (saturating at zero) and,
// for a processed job, increments total_blogs_processed in the same
// statement.
func (s *PublisherStorage) ReleaseSlot(ctx context.Context, publisherID string, processed bool) error {
	processedDelta := 0
	if processed {
		processedDelta = 1
	}

	query := `UPDATE publishers
		SET blog_slots_reserved = MAX(blog_slots_reserved - 1, 0),
			total_blogs_processed = total_blogs_processed + ?,
			updated_at = ?
		WHERE id = ?`

	result, err := s.db.DB().ExecContext(ctx, query, processedDelta, time.Now().UTC().Unix(), publisherID)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	if rows == 0 {
		return common.NewError(common.KindNotFound, "", fmt.Sprintf("publisher not found: %s", publisherID))
	}

	s.logger.Debug().
		Str("publisher_id", publisherID).
		Bool("processed", processed).
		Msg("Blog slot released")

	return nil
}

// ListIDs returns all publisher ids for the reconciler sweep.
func (s *PublisherStorage) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx, `SELECT id FROM publishers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list publishers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan publisher id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetSlotsReserved overwrites the reserved counter. Reconciler only.
func (s *PublisherStorage) SetSlotsReserved(ctx context.Context, publisherID string, reserved int) error {
	if reserved < 0 {
		reserved = 0
	}
	query := `UPDATE publishers SET blog_slots_reserved = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.DB().ExecContext(ctx, query, reserved, time.Now().UTC().Unix(), publisherID)
	if err != nil {
		return fmt.Errorf("failed to set reserved slots: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *PublisherStorage) Close() error {
	return s.db.Close()
}

func (s *PublisherStorage) scanOne(row *sql.Row) (*models.Publisher, error) {
	var p models.Publisher
	var status, configJSON string
	var createdAt, updatedAt int64

	err := row.Scan(&p.ID, &p.Name, &p.Domain, &p.Email, &p.APIKey, &status, &configJSON,
		&p.TotalBlogsProcessed, &p.BlogSlotsReserved, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, common.NewError(common.KindNotFound, "", "publisher not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan publisher: %w", err)
	}

	p.Status = models.PublisherStatus(status)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if err := json.Unmarshal([]byte(configJSON), &p.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal publisher config: %w", err)
	}

	return &p, nil
}
