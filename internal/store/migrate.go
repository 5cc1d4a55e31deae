package store

import (
	"blogsmith/internal/logger"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// migration is one versioned schema or data step applied inside a transaction.
type migration struct {
	Version     int
	Description string
	Apply       func(tx *sql.Tx) error
}

var migrations = []migration{
	{
		Version:     1,
		Description: "create kv table",
		Apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS kv (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at DATETIME NOT NULL
			);`)
			return err
		},
	},
	{
		Version:     2,
		Description: "fold mirrored legacy keys into canonical keys",
		Apply:       foldLegacyKeys,
	},
}

// migrate creates schema_migrations and applies every pending migration in order.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at DATETIME NOT NULL
	);`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := make([]migration, 0, len(migrations))
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) appliedVersions() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.Apply(tx); err != nil {
		return err
	}

	if _, err := tx.Exec(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Description, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	logger.Debug("Applied store migration", "version", m.Version, "description", m.Description)
	return nil
}

// foldLegacyKeys copies the first non-empty legacy alias into the canonical
// key when the canonical key is absent, then deletes every alias.
func foldLegacyKeys(tx *sql.Tx) error {
	canonical := make([]string, 0, len(legacyAliases))
	for k := range legacyAliases {
		canonical = append(canonical, k)
	}
	sort.Strings(canonical)

	now := time.Now().UTC()
	for _, key := range canonical {
		var existing string
		err := tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&existing)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		hasCanonical := err == nil && existing != ""

		for _, alias := range legacyAliases[key] {
			var value string
			err := tx.QueryRow(`SELECT value FROM kv WHERE key = ?`, alias).Scan(&value)
			if err == sql.ErrNoRows {
				continue
			}
			if err != nil {
				return err
			}
			if !hasCanonical && value != "" {
				if _, err := tx.Exec(`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
					key, value, now); err != nil {
					return err
				}
				hasCanonical = true
			}
			if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, alias); err != nil {
				return err
			}
		}
	}

	return nil
}
