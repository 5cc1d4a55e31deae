package llm

import (
	"blogsmith/internal/cost"
	"blogsmith/internal/logger"
	"context"
	"time"
)

// CallTracker records LLM calls for cost and latency monitoring.
type CallTracker interface {
	TrackLLMCall(ctx context.Context, model string, operation string, tokens int, latencyMs int64, cost float64) error
}

// TracedClient wraps a TextGenerator with timing logs and call analytics.
type TracedClient struct {
	next      TextGenerator
	model     string
	operation string
	tracker   CallTracker
}

// NewTracedClient wraps next. tracker may be nil.
func NewTracedClient(next TextGenerator, model, operation string, tracker CallTracker) *TracedClient {
	if operation == "" {
		operation = "text_generation"
	}
	return &TracedClient{next: next, model: model, operation: operation, tracker: tracker}
}

// GenerateText generates text with tracing
func (tc *TracedClient) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	startTime := time.Now()
	result, err := tc.next.GenerateText(ctx, prompt, options)
	latencyMs := time.Since(startTime).Milliseconds()

	model := options.Model
	if model == "" {
		model = tc.model
	}

	if err != nil {
		logger.Warn("LLM call failed", "model", model, "latency_ms", latencyMs, "error", err.Error())
	} else {
		logger.Debug("LLM call completed", "model", model, "latency_ms", latencyMs, "chars", len([]rune(result)))
	}

	if tc.tracker != nil {
		est := cost.EstimateCall(model, prompt, result)
		_ = tc.tracker.TrackLLMCall(ctx, model, tc.operation, est.Tokens(), latencyMs, est.TotalCost)
	}

	return result, err
}
