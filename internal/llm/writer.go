package llm

import (
	"blogsmith/internal/core"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoTitles is returned when a list response contains no usable lines.
var ErrNoTitles = errors.New("model returned no usable titles")

// WriterOptions tunes the domain prompts.
type WriterOptions struct {
	Model        string
	TopicCount   int
	KeywordCount int
}

// Writer provides the blog-specific generation calls over any TextGenerator.
type Writer struct {
	gen  TextGenerator
	opts WriterOptions
}

// NewWriter creates a Writer. Zero counts fall back to 5.
func NewWriter(gen TextGenerator, opts WriterOptions) *Writer {
	if opts.TopicCount <= 0 {
		opts.TopicCount = 5
	}
	if opts.KeywordCount <= 0 {
		opts.KeywordCount = 5
	}
	return &Writer{gen: gen, opts: opts}
}

// TrendingKeywords asks the model for currently popular keywords in a category.
func (w *Writer) TrendingKeywords(ctx context.Context, category string) ([]string, error) {
	text, err := w.gen.GenerateText(ctx, trendingKeywordsPrompt(category, w.opts.KeywordCount), TextGenerationOptions{
		Temperature: 0.9,
		MaxTokens:   512,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate trending keywords: %w", err)
	}

	keywords := ParseTitleList(text)
	if len(keywords) == 0 {
		return nil, ErrNoTitles
	}
	return keywords, nil
}

// GenerateTopics returns blog title candidates for keyword.
func (w *Writer) GenerateTopics(ctx context.Context, keyword string) ([]string, error) {
	text, err := w.gen.GenerateText(ctx, topicsPrompt(keyword, w.opts.TopicCount), TextGenerationOptions{
		Temperature: 0.8,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate topics: %w", err)
	}

	titles := ParseTitleList(text)
	if len(titles) == 0 {
		return nil, ErrNoTitles
	}
	return titles, nil
}

// GenerateArticle writes the markdown body for topic.
func (w *Writer) GenerateArticle(ctx context.Context, topic, keyword string) (*core.Article, error) {
	text, err := w.gen.GenerateText(ctx, articlePrompt(topic, keyword), TextGenerationOptions{
		Temperature: 0.7,
		MaxTokens:   8192,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate article: %w", err)
	}

	body := stripCodeFence(text)
	if body == "" {
		return nil, ErrEmptyText
	}

	model := w.opts.Model
	if model == "" {
		model = DefaultModel
	}

	return &core.Article{
		Topic:       topic,
		Keyword:     keyword,
		Markdown:    body,
		ModelUsed:   model,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// GenerateImagePrompt produces an English image prompt for topic.
func (w *Writer) GenerateImagePrompt(ctx context.Context, topic string) (string, error) {
	text, err := w.gen.GenerateText(ctx, imagePromptPrompt(topic), TextGenerationOptions{
		Temperature: 0.6,
		MaxTokens:   256,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate image prompt: %w", err)
	}

	prompt := CleanTitle(strings.SplitN(strings.TrimSpace(text), "\n", 2)[0])
	if prompt == "" {
		return "", ErrEmptyText
	}
	return prompt, nil
}

// stripCodeFence removes a ```markdown fence wrapping the whole response.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
