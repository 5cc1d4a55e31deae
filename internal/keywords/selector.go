// Package keywords chooses the keyword a generation run starts from.
package keywords

import (
	"blogsmith/internal/core"
	"blogsmith/internal/logger"
	"blogsmith/internal/similarity"
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// DefaultKeyword is used when every other source fails.
const DefaultKeyword = "블로그 글쓰기"

// Source names where a keyword came from.
type Source string

const (
	SourceManual   Source = "manual"
	SourceTrending Source = "trending"
	SourceCategory Source = "category"
	SourceDefault  Source = "default"
)

// Selection is a keyword chosen for a run.
type Selection struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category,omitempty"`
	Source   Source `json:"source"`
	Attempts int    `json:"attempts"` // trending calls made
}

// TrendSource suggests currently popular keywords.
type TrendSource interface {
	TrendingKeywords(ctx context.Context, category string) ([]string, error)
}

// UsageStore is the backend keyword usage history.
type UsageStore interface {
	Record(ctx context.Context, usage *core.KeywordUsage) error
	RecentKeywords(ctx context.Context, userID string, since time.Time, limit int) ([]string, error)
}

// Ledger is the keyword duplicate ledger.
type Ledger interface {
	IsDuplicate(candidate string) bool
	Record(candidate string)
}

// Options tunes the selector.
type Options struct {
	Attempts       int           // trending calls before falling back
	DefaultKeyword string        // last-resort keyword
	UserID         string        // backend user for usage history
	RecentWindow   time.Duration // usage history considered "recent"
}

// Selector picks a keyword from trending suggestions, the category table or
// the default keyword, in that order.
type Selector struct {
	trends  TrendSource
	ledger  Ledger
	usage   UsageStore
	opts    Options
	shuffle func([]string)
}

// NewSelector creates a selector. trends and usage may be nil.
func NewSelector(trends TrendSource, ledger Ledger, usage UsageStore, opts Options) *Selector {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if strings.TrimSpace(opts.DefaultKeyword) == "" {
		opts.DefaultKeyword = DefaultKeyword
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 30 * 24 * time.Hour
	}
	return &Selector{
		trends: trends,
		ledger: ledger,
		usage:  usage,
		opts:   opts,
		shuffle: func(s []string) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		},
	}
}

// Select chooses a keyword for category. It only fails when ctx ends.
func (s *Selector) Select(ctx context.Context, category string) (Selection, error) {
	sel := Selection{Category: category}

	if s.trends != nil {
		for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return sel, fmt.Errorf("keyword selection aborted: %w", err)
			}
			sel.Attempts = attempt

			suggestions, err := s.trends.TrendingKeywords(ctx, categoryLabel(category))
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return sel, fmt.Errorf("keyword selection aborted: %w", ctxErr)
				}
				logger.Warn("Trending keyword request failed", "attempt", attempt, "error", err.Error())
				continue
			}

			for _, k := range suggestions {
				if strings.TrimSpace(k) == "" {
					continue
				}
				if s.ledger != nil && s.ledger.IsDuplicate(k) {
					logger.Debug("Skipping used keyword", "keyword", k)
					continue
				}
				sel.Keyword = k
				sel.Source = SourceTrending
				return sel, nil
			}
			logger.Info("All trending keywords already used", "attempt", attempt)
		}
	}

	if err := ctx.Err(); err != nil {
		return sel, fmt.Errorf("keyword selection aborted: %w", err)
	}

	if k, ok := s.fromCategory(ctx, category); ok {
		sel.Keyword = k
		sel.Source = SourceCategory
		return sel, nil
	}

	logger.Warn("Falling back to default keyword", "keyword", s.opts.DefaultKeyword)
	sel.Keyword = s.opts.DefaultKeyword
	sel.Source = SourceDefault
	return sel, nil
}

// fromCategory picks a table keyword that was neither used recently on the
// backend nor flagged by the ledger.
func (s *Selector) fromCategory(ctx context.Context, category string) (string, bool) {
	var pool []string
	if c, ok := FindCategory(category); ok {
		pool = append(pool, c.Keywords...)
	} else {
		pool = AllKeywords()
	}
	s.shuffle(pool)

	recent := s.recentKeywords(ctx)
	for _, k := range pool {
		if recent[similarity.Normalize(k)] {
			continue
		}
		if s.ledger != nil && s.ledger.IsDuplicate(k) {
			continue
		}
		return k, true
	}
	return "", false
}

func (s *Selector) recentKeywords(ctx context.Context) map[string]bool {
	recent := make(map[string]bool)
	if s.usage == nil || s.opts.UserID == "" {
		return recent
	}

	used, err := s.usage.RecentKeywords(ctx, s.opts.UserID, time.Now().Add(-s.opts.RecentWindow), 200)
	if err != nil {
		logger.Warn("Failed to load keyword usage history", "error", err.Error())
		return recent
	}
	for _, k := range used {
		recent[similarity.Normalize(k)] = true
	}
	return recent
}

// Commit records an accepted keyword in the ledger and the backend history.
// Backend failures are logged and ignored.
func (s *Selector) Commit(ctx context.Context, sel Selection) {
	if strings.TrimSpace(sel.Keyword) == "" {
		return
	}
	if s.ledger != nil {
		s.ledger.Record(sel.Keyword)
	}
	if s.usage == nil || s.opts.UserID == "" {
		return
	}

	err := s.usage.Record(ctx, &core.KeywordUsage{
		UserID:   s.opts.UserID,
		Keyword:  sel.Keyword,
		Category: sel.Category,
		UsedAt:   time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("Failed to record keyword usage", "keyword", sel.Keyword, "error", err.Error())
	}
}

func categoryLabel(category string) string {
	if c, ok := FindCategory(category); ok {
		return c.Name
	}
	return category
}
