package visual

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultGeneratorTimeout bounds a single image-generation call.
const DefaultGeneratorTimeout = 45 * time.Second

// GeneratorProvider identifies the backend image function in errors.
const GeneratorProvider = "image-generator"

// GeneratorClient calls the backend function that proxies a diffusion model.
type GeneratorClient struct {
	functionURL string
	apiKey      string
	anonKey     string
	timeout     time.Duration
	httpClient  *http.Client
}

// GeneratorOptions configures a GeneratorClient.
type GeneratorOptions struct {
	FunctionURL string
	APIKey      string // forwarded to the diffusion provider
	AnonKey     string // backend function authorization
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// NewGeneratorClient creates a new image generator client
func NewGeneratorClient(opts GeneratorOptions) *GeneratorClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultGeneratorTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GeneratorClient{
		functionURL: opts.FunctionURL,
		apiKey:      opts.APIKey,
		anonKey:     opts.AnonKey,
		timeout:     timeout,
		httpClient:  httpClient,
	}
}

// Configured reports whether the client has an endpoint and a provider key.
func (c *GeneratorClient) Configured() bool {
	return c != nil && c.functionURL != "" && c.apiKey != ""
}

// GenerateRequest is the body posted to the backend function.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	APIKey string `json:"apiKey"`
}

// GenerateResponse is the backend function reply. Image is a data URL.
type GenerateResponse struct {
	Image string `json:"image"`
	Error string `json:"error,omitempty"`
}

// GeneratedImage is a decoded generation result.
type GeneratedImage struct {
	Prompt    string
	MediaType string
	Data      []byte
	DataURL   string
}

// Generate asks the backend function for an image. The call is bounded by the
// client timeout in addition to ctx.
func (c *GeneratorClient) Generate(ctx context.Context, prompt string) (*GeneratedImage, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("image generator is not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("image prompt cannot be empty")
	}

	reqBody, err := json.Marshal(GenerateRequest{Prompt: prompt, APIKey: c.apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.functionURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.anonKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
		req.Header.Set("apikey", c.anonKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("image generation aborted: %w", ctxErr)
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &ProviderError{
				Provider: GeneratorProvider,
				Message:  fmt.Sprintf("timed out after %s", c.timeout),
				Err:      context.DeadlineExceeded,
			}
		}
		return nil, &ProviderError{Provider: GeneratorProvider, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var genResp GenerateResponse
	decodeErr := json.Unmarshal(body, &genResp)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && genResp.Error != "" {
			msg = genResp.Error
		}
		return nil, &ProviderError{Provider: GeneratorProvider, StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", decodeErr)
	}
	if genResp.Image == "" {
		msg := "response has no image"
		if genResp.Error != "" {
			msg = genResp.Error
		}
		return nil, &ProviderError{Provider: GeneratorProvider, StatusCode: resp.StatusCode, Message: msg}
	}

	mediaType, data, err := DecodeDataURL(genResp.Image)
	if err != nil {
		return nil, err
	}

	return &GeneratedImage{
		Prompt:    prompt,
		MediaType: mediaType,
		Data:      data,
		DataURL:   genResp.Image,
	}, nil
}
