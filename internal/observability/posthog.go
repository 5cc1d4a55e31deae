// Package observability sends product analytics for generation runs.
package observability

import (
	"blogsmith/internal/config"
	"blogsmith/internal/core"
	"blogsmith/internal/logger"
	"context"
	"fmt"

	"github.com/posthog/posthog-go"
)

// Event names.
const (
	EventGenerationCompleted = "generation_completed"
	EventGenerationFailed    = "generation_failed"
	EventGenerationCancelled = "generation_cancelled"
	EventLLMCall             = "llm_call"
)

// enqueuer is the part of posthog.Client used here.
type enqueuer interface {
	Enqueue(posthog.Message) error
	Close() error
}

// PostHogClient wraps the PostHog SDK for product analytics
type PostHogClient struct {
	client     enqueuer
	enabled    bool
	distinctID string
}

// EventProperties contains properties for an event
type EventProperties map[string]interface{}

// NewPostHogClient creates a new PostHog analytics client. distinctID
// identifies this installation or backend user.
func NewPostHogClient(cfg config.PostHogConfig, distinctID string) (*PostHogClient, error) {
	if distinctID == "" {
		distinctID = "local"
	}
	if !cfg.Enabled {
		return &PostHogClient{enabled: false, distinctID: distinctID}, nil
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("PostHog enabled but missing API key")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint: cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}

	return &PostHogClient{client: client, enabled: true, distinctID: distinctID}, nil
}

// IsEnabled returns whether PostHog tracking is enabled
func (p *PostHogClient) IsEnabled() bool {
	return p != nil && p.enabled
}

// Capture sends an event to PostHog
func (p *PostHogClient) Capture(ctx context.Context, event string, properties EventProperties) error {
	if !p.IsEnabled() {
		return nil
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}

	return p.client.Enqueue(posthog.Capture{
		DistinctId: p.distinctID,
		Event:      event,
		Properties: props,
	})
}

// TrackRun records the outcome of a generation run.
func (p *PostHogClient) TrackRun(ctx context.Context, report core.RunReport) {
	event := EventGenerationCompleted
	switch report.Outcome {
	case core.OutcomeFailed:
		event = EventGenerationFailed
	case core.OutcomeCancelled:
		event = EventGenerationCancelled
	}

	props := EventProperties{
		"session_id":         report.SessionID,
		"keyword":            report.Keyword,
		"topic":              report.Topic,
		"last_completed":     string(report.LastCompleted),
		"retries":            report.Retries,
		"duplicate_override": report.DuplicateOverride,
		"has_image":          report.HasImage,
		"duration_ms":        report.Duration.Milliseconds(),
	}
	if report.FailedStage != "" {
		props["failed_stage"] = string(report.FailedStage)
	}
	if report.Error != "" {
		props["error"] = report.Error
	}

	if err := p.Capture(ctx, event, props); err != nil {
		logger.Warn("Failed to track run", "event", event, "error", err.Error())
	}
}

// TrackLLMCall tracks LLM API calls for cost and performance monitoring
func (p *PostHogClient) TrackLLMCall(ctx context.Context, model string, operation string, tokens int, latencyMs int64, cost float64) error {
	return p.Capture(ctx, EventLLMCall, EventProperties{
		"model":      model,
		"operation":  operation,
		"tokens":     tokens,
		"latency_ms": latencyMs,
		"cost":       cost,
	})
}

// Shutdown flushes pending events and closes the client
func (p *PostHogClient) Shutdown() error {
	if !p.IsEnabled() {
		return nil
	}
	return p.client.Close()
}
