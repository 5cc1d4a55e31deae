package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model used for blog text.
	DefaultModel = "gemini-2.5-flash"
	// ProviderName identifies Gemini in errors and logs.
	ProviderName = "gemini"
)

// TextGenerator produces text for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error)
}

// TextGenerationOptions contains options for text generation
type TextGenerationOptions struct {
	MaxTokens   int32   // Maximum number of tokens to generate
	Temperature float32 // Temperature for randomness (0.0 to 2.0)
	Model       string  // Model to use (optional, defaults to client's model)
}

// ClientOptions configures a Gemini client.
type ClientOptions struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
	BaseURL     string       // overrides the API endpoint, used by tests
	HTTPClient  *http.Client // optional transport
}

// Client represents a client for interacting with Gemini.
type Client struct {
	modelName string
	defaults  TextGenerationOptions
	gClient   *genai.Client
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or run `blogsmith keys set gemini <key>`")
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	gClient, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName: modelName,
		defaults: TextGenerationOptions{
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		},
		gClient: gClient,
	}, nil
}

// GetModelName returns the default model of the client.
func (c *Client) GetModelName() string {
	return c.modelName
}

// GenerateText generates text using the LLM with specified options
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	modelName := c.modelName
	if options.Model != "" {
		modelName = options.Model
	}
	if options.MaxTokens == 0 {
		options.MaxTokens = c.defaults.MaxTokens
	}
	if options.Temperature == 0 {
		options.Temperature = c.defaults.Temperature
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	var config *genai.GenerateContentConfig
	if options.MaxTokens > 0 || options.Temperature > 0 {
		config = &genai.GenerateContentConfig{}
		if options.MaxTokens > 0 {
			config.MaxOutputTokens = options.MaxTokens
		}
		if options.Temperature > 0 {
			config.Temperature = genai.Ptr(options.Temperature)
		}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return "", classifyError(ctx, err)
	}

	return ExtractText(resp)
}

var (
	// ErrNoCandidates is returned when the response has no candidates.
	ErrNoCandidates = errors.New("response has no candidates")
	// ErrEmptyText is returned when the first candidate carries no text.
	ErrEmptyText = errors.New("response has no text")
	// ErrBlocked is returned when the prompt or candidate was blocked.
	ErrBlocked = errors.New("response was blocked")
)

// ExtractText validates a generateContent response and returns the text of
// the first candidate. Thought parts are skipped.
func ExtractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrNoCandidates
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", ErrNoCandidates
	}

	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		if cand.FinishReason == genai.FinishReasonSafety {
			return "", fmt.Errorf("%w: %s", ErrBlocked, cand.FinishReason)
		}
		return "", ErrEmptyText
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// classifyError converts SDK errors into ProviderError, keeping context
// cancellation errors recognizable.
func classifyError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("gemini request aborted: %w", ctxErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("gemini request aborted: %w", err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: ProviderName, StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &ProviderError{Provider: ProviderName, StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message, Err: err}
	}

	return &ProviderError{Provider: ProviderName, Message: err.Error(), Err: err}
}
