package sqlite

import (
	"fmt"
)

// migrations are applied in order; each entry is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS publishers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		domain TEXT NOT NULL,
		email TEXT NOT NULL,
		api_key TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'trial',
		config TEXT NOT NULL DEFAULT '{}',
		total_blogs_processed INTEGER NOT NULL DEFAULT 0,
		blog_slots_reserved INTEGER NOT NULL DEFAULT 0 CHECK (blog_slots_reserved >= 0),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_publishers_domain ON publishers(domain)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_publishers_api_key ON publishers(api_key)`,
	`CREATE INDEX IF NOT EXISTS idx_publishers_status ON publishers(status)`,
}

// migrate applies the schema migrations
func (s *SQLiteDB) migrate() error {
	for i, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
