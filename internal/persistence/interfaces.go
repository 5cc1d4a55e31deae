// Package persistence provides the backend database used for user profiles
// and keyword usage history.
package persistence

import (
	"blogsmith/internal/core"
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ProfileRepository handles user profile persistence operations
type ProfileRepository interface {
	// Get retrieves a profile by user ID
	Get(ctx context.Context, id string) (*core.Profile, error)

	// Upsert inserts or updates a profile
	Upsert(ctx context.Context, profile *core.Profile) error

	// SetPreventDuplicates updates only the duplicate-prevention preference
	SetPreventDuplicates(ctx context.Context, id string, prevent bool) error
}

// KeywordUsageRepository handles keyword usage history
type KeywordUsageRepository interface {
	// Record stores a keyword accepted for generation
	Record(ctx context.Context, usage *core.KeywordUsage) error

	// RecentKeywords returns distinct keywords used since a given time, newest first
	RecentKeywords(ctx context.Context, userID string, since time.Time, limit int) ([]string, error)

	// CountSince counts usages since a given time
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// Database is the backend database
type Database interface {
	Profiles() ProfileRepository
	KeywordUsage() KeywordUsageRepository
	Ping(ctx context.Context) error
	Close() error
}
