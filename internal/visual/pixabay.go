package visual

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPixabayURL is the Pixabay image search endpoint.
	DefaultPixabayURL = "https://pixabay.com/api/"
	// PixabayProvider identifies Pixabay in errors.
	PixabayProvider = "pixabay"
)

// ErrNoResults is returned when a search yields no hits.
var ErrNoResults = errors.New("no images found")

// PixabayClient handles Pixabay API interactions
type PixabayClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	defaults   SearchOptions
}

// SearchOptions narrows a Pixabay search.
type SearchOptions struct {
	PerPage     int
	Orientation string // "all", "horizontal", "vertical"
	Language    string
}

// PixabayOptions configures a PixabayClient.
type PixabayOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Defaults   SearchOptions
}

// NewPixabayClient creates a new Pixabay API client
func NewPixabayClient(opts PixabayOptions) *PixabayClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultPixabayURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &PixabayClient{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		defaults:   opts.Defaults,
	}
}

// Configured reports whether an API key is set.
func (c *PixabayClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Hit is a single Pixabay search result.
type Hit struct {
	ID            int    `json:"id"`
	PageURL       string `json:"pageURL"`
	Tags          string `json:"tags"`
	PreviewURL    string `json:"previewURL"`
	WebformatURL  string `json:"webformatURL"`
	LargeImageURL string `json:"largeImageURL"`
	Views         int    `json:"views"`
	Downloads     int    `json:"downloads"`
	Likes         int    `json:"likes"`
	User          string `json:"user"`
}

// Popularity is the ranking score used by BestHit.
func (h Hit) Popularity() int {
	return h.Views + h.Downloads
}

// ImageURL returns the largest available rendition.
func (h Hit) ImageURL() string {
	if h.LargeImageURL != "" {
		return h.LargeImageURL
	}
	return h.WebformatURL
}

// SearchResponse is the Pixabay search reply.
type SearchResponse struct {
	Total     int   `json:"total"`
	TotalHits int   `json:"totalHits"`
	Hits      []Hit `json:"hits"`
}

// Search queries Pixabay for photos matching query.
func (c *PixabayClient) Search(ctx context.Context, query string, opts SearchOptions) ([]Hit, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("pixabay API key is not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	if opts.PerPage <= 0 {
		opts.PerPage = c.defaults.PerPage
	}
	if opts.PerPage < 3 {
		opts.PerPage = 20
	}
	if opts.Orientation == "" {
		opts.Orientation = c.defaults.Orientation
	}
	if opts.Language == "" {
		opts.Language = c.defaults.Language
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", query)
	params.Set("image_type", "photo")
	params.Set("safesearch", "true")
	params.Set("per_page", strconv.Itoa(opts.PerPage))
	if opts.Orientation != "" {
		params.Set("orientation", opts.Orientation)
	}
	if opts.Language != "" {
		params.Set("lang", opts.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("pixabay search aborted: %w", ctxErr)
		}
		return nil, &ProviderError{Provider: PixabayProvider, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider:   PixabayProvider,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(searchResp.Hits) == 0 {
		return nil, ErrNoResults
	}
	return searchResp.Hits, nil
}

// BestHit returns the hit with the highest views+downloads. Ties keep the
// earliest hit.
func BestHit(hits []Hit) (Hit, error) {
	if len(hits) == 0 {
		return Hit{}, ErrNoResults
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h.Popularity() > best.Popularity() {
			best = h
		}
	}
	return best, nil
}
