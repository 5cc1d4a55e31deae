package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"blogsmith/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationLock is the pg advisory lock key held while migrating, so two
// processes starting together apply each file once.
const migrationLock int64 = 0x626c6f67 // "blog"

// Migration is one numbered SQL file
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version     int
	Description string
	Applied     bool
}

// MigrationManager applies the embedded migrations to the backend database
type MigrationManager struct {
	db    *sql.DB
	files fs.FS
}

// NewMigrationManager creates a manager for db
func NewMigrationManager(db *PostgresDB) *MigrationManager {
	return &MigrationManager{db: db.db, files: migrationFiles}
}

// execQuerier is satisfied by *sql.DB and *sql.Conn.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Migrate applies every pending migration in version order and returns how
// many were applied. Each migration runs in its own transaction.
func (m *MigrationManager) Migrate(ctx context.Context) (int, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLock); err != nil {
		return 0, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, migrationLock); err != nil {
			logger.Warn("Failed to release migration lock", "error", err.Error())
		}
	}()

	available, applied, err := m.plan(ctx, conn)
	if err != nil {
		return 0, err
	}

	pending := PendingMigrations(available, applied)
	if len(pending) == 0 {
		logger.Info("Database schema is up to date", "version", lastVersion(available))
		return 0, nil
	}

	for i, mig := range pending {
		if err := applyMigration(ctx, conn, mig); err != nil {
			return i, fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}

	logger.Info("Migrations applied", "count", len(pending), "version", lastVersion(available))
	return len(pending), nil
}

// Status lists every embedded migration with its applied state
func (m *MigrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	available, applied, err := m.plan(ctx, m.db)
	if err != nil {
		return nil, err
	}

	status := make([]MigrationStatus, 0, len(available))
	for _, mig := range available {
		status = append(status, MigrationStatus{
			Version:     mig.Version,
			Description: mig.Description,
			Applied:     slices.Contains(applied, mig.Version),
		})
	}
	return status, nil
}

// plan loads the embedded migrations and the applied versions.
func (m *MigrationManager) plan(ctx context.Context, q execQuerier) ([]Migration, []int, error) {
	if _, err := q.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, nil, err
		}
		applied = append(applied, v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	available, err := LoadMigrations(m.files)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return available, applied, nil
}

func applyMigration(ctx context.Context, conn *sql.Conn, mig Migration) error {
	logger.Info("Applying migration", "version", mig.Version, "description", mig.Description)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING`,
		mig.Version, mig.Description); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

// LoadMigrations reads migrations/NNN_description.sql from fsys, sorted by
// version. Files that do not follow the naming scheme are skipped.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	var migrations []Migration
	for _, name := range names {
		base := strings.TrimSuffix(path.Base(name), ".sql")
		num, desc, ok := strings.Cut(base, "_")
		version, convErr := strconv.Atoi(num)
		if !ok || convErr != nil {
			logger.Warn("Skipping migration with invalid name", "file", name)
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		migrations = append(migrations, Migration{
			Version:     version,
			Description: strings.ReplaceAll(desc, "_", " "),
			SQL:         string(content),
		})
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	return migrations, nil
}

// PendingMigrations returns the available migrations not in applied
func PendingMigrations(available []Migration, applied []int) []Migration {
	var pending []Migration
	for _, mig := range available {
		if !slices.Contains(applied, mig.Version) {
			pending = append(pending, mig)
		}
	}
	return pending
}

func lastVersion(migrations []Migration) int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
