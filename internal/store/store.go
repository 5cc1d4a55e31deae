package store

import (
	"blogsmith/internal/core"
	"blogsmith/internal/logger"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed key/value store for credentials, settings,
// ledgers and session state.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "blogsmith.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value for key. Read failures are logged and reported as a miss.
func (s *Store) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		logger.Error("Store read failed", err, "key", key)
		return "", false
	}
	return value, true
}

// Set stores value under key. Write failures are logged and dropped.
func (s *Store) Set(key, value string) {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		logger.Error("Store write failed", err, "key", key)
	}
}

// Remove deletes key. Failures are logged and dropped.
func (s *Store) Remove(key string) {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		logger.Error("Store delete failed", err, "key", key)
	}
}

// Keys returns the sorted keys starting with prefix.
func (s *Store) Keys(prefix string) []string {
	rows, err := s.db.Query(`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, prefixLen(prefix), prefix)
	if err != nil {
		logger.Error("Store key scan failed", err, "prefix", prefix)
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			logger.Error("Store key scan failed", err, "prefix", prefix)
			return keys
		}
		keys = append(keys, k)
	}
	return keys
}

// prefixLen is the length of prefix as SQLite's substr counts text, in
// characters rather than bytes.
func prefixLen(prefix string) int {
	return utf8.RuneCountInString(prefix)
}

// Reset removes every key except credentials and returns how many were removed.
func (s *Store) Reset() int {
	res, err := s.db.Exec(`DELETE FROM kv WHERE substr(key, 1, ?) <> ?`, prefixLen(CredentialPrefix), CredentialPrefix)
	if err != nil {
		logger.Error("Store reset failed", err)
		return 0
	}
	n, _ := res.RowsAffected()
	logger.Info("Store reset", "removed", n)
	return int(n)
}

// Stats returns statistics about the store
func (s *Store) Stats() (*core.StoreStats, error) {
	stats := &core.StoreStats{}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&stats.KeyCount); err != nil {
		return nil, fmt.Errorf("failed to count keys: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM kv WHERE substr(key, 1, ?) = ?`,
		prefixLen(CredentialPrefix), CredentialPrefix).Scan(&stats.Credentials); err != nil {
		return nil, fmt.Errorf("failed to count credentials: %w", err)
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = fileInfo.Size()
		stats.LastUpdated = fileInfo.ModTime()
	}

	return stats, nil
}

// Open returns the SQLite store, or an in-memory store when the database
// cannot be opened so callers keep working without persistence.
func Open(dataDir string) (KVStore, func() error) {
	s, err := NewStore(dataDir)
	if err != nil {
		logger.Error("Falling back to in-memory store", err, "data_dir", dataDir)
		return NewMemoryStore(), func() error { return nil }
	}
	return s, s.Close
}

// KVStore is the full store surface used by the application context.
type KVStore interface {
	KV
	Keys(prefix string) []string
	Reset() int
}
