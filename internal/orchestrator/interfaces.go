package orchestrator

import (
	"blogsmith/internal/core"
	"blogsmith/internal/keywords"
	"context"
)

// KeywordSelector picks a keyword and records it once the run accepts it
type KeywordSelector interface {
	// Select chooses a keyword for a category
	Select(ctx context.Context, category string) (keywords.Selection, error)

	// Commit records an accepted keyword
	Commit(ctx context.Context, sel keywords.Selection)
}

// TopicGenerator produces blog title candidates
type TopicGenerator interface {
	GenerateTopics(ctx context.Context, keyword string) ([]string, error)
}

// ArticleGenerator writes the article body for a topic
type ArticleGenerator interface {
	GenerateArticle(ctx context.Context, topic, keyword string) (*core.Article, error)
}

// ImageProvider finds or generates the header image
type ImageProvider interface {
	FetchImage(ctx context.Context, topic, keyword string) (*core.Image, error)
}

// TopicLedger flags used topics and records accepted ones
type TopicLedger interface {
	IsDuplicate(candidate string) bool
	Filter(candidates []string) (fresh, duplicates []string)
	Record(candidate string)
}

// Tracker receives one report per one-click run
type Tracker interface {
	TrackRun(ctx context.Context, report core.RunReport)
}
