package persistence

import (
	"blogsmith/internal/core"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db       *sql.DB
	profiles ProfileRepository
	usage    KeywordUsageRepository
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{
		db:       db,
		profiles: &postgresProfileRepo{db: db},
		usage:    &postgresKeywordUsageRepo{db: db},
	}, nil
}

func (p *PostgresDB) Profiles() ProfileRepository         { return p.profiles }
func (p *PostgresDB) KeywordUsage() KeywordUsageRepository { return p.usage }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// postgresProfileRepo implements ProfileRepository for PostgreSQL
type postgresProfileRepo struct {
	db *sql.DB
}

func (r *postgresProfileRepo) Get(ctx context.Context, id string) (*core.Profile, error) {
	query := `
		SELECT id, email, display_name, preferred_category, prevent_duplicates, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var p core.Profile
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.PreferredCategory, &p.PreventDuplicates, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (r *postgresProfileRepo) Upsert(ctx context.Context, profile *core.Profile) error {
	if strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("profile ID is required")
	}

	query := `
		INSERT INTO users (id, email, display_name, preferred_category, prevent_duplicates, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			preferred_category = EXCLUDED.preferred_category,
			prevent_duplicates = EXCLUDED.prevent_duplicates,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		profile.ID, profile.Email, profile.DisplayName, profile.PreferredCategory, profile.PreventDuplicates,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (r *postgresProfileRepo) SetPreventDuplicates(ctx context.Context, id string, prevent bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET prevent_duplicates = $2, updated_at = NOW() WHERE id = $1`, id, prevent)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return nil
}

// postgresKeywordUsageRepo implements KeywordUsageRepository for PostgreSQL
type postgresKeywordUsageRepo struct {
	db *sql.DB
}

func (r *postgresKeywordUsageRepo) Record(ctx context.Context, usage *core.KeywordUsage) error {
	if strings.TrimSpace(usage.Keyword) == "" {
		return fmt.Errorf("keyword is required")
	}
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO keyword_usage (user_id, keyword, category, used_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, usage.UserID, usage.Keyword, usage.Category, usage.UsedAt).Scan(&usage.ID); err != nil {
		return fmt.Errorf("failed to record keyword usage: %w", err)
	}
	return nil
}

func (r *postgresKeywordUsageRepo) RecentKeywords(ctx context.Context, userID string, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT keyword
		FROM keyword_usage
		WHERE user_id = $1 AND used_at >= $2
		GROUP BY keyword
		ORDER BY MAX(used_at) DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent keywords: %w", err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

func (r *postgresKeywordUsageRepo) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM keyword_usage WHERE user_id = $1 AND used_at >= $2`, userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count keyword usage: %w", err)
	}
	return count, nil
}
