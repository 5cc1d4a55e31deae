package visual

import (
	"blogsmith/internal/core"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

func pixabayServer(t *testing.T, status int, resp SearchResponse) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "pk" {
			t.Errorf("missing api key, got %q", q.Get("key"))
		}
		if q.Get("q") == "" {
			t.Error("missing query")
		}
		if q.Get("image_type") != "photo" {
			t.Errorf("image_type = %q", q.Get("image_type"))
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(resp)
		} else {
			_, _ = w.Write([]byte("[ERROR 400] Invalid API key"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBestHit(t *testing.T) {
	hits := []Hit{
		{ID: 1, Views: 100, Downloads: 10},
		{ID: 2, Views: 50, Downloads: 100},
		{ID: 3, Views: 140, Downloads: 10},
		{ID: 4, Views: 0, Downloads: 0},
	}

	best, err := BestHit(hits)
	if err != nil {
		t.Fatal(err)
	}
	// 2 and 3 both score 150; the first one wins
	if best.ID != 2 {
		t.Errorf("expected hit 2, got %d", best.ID)
	}

	if _, err := BestHit(nil); !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
}

func TestPixabaySearch(t *testing.T) {
	srv := pixabayServer(t, http.StatusOK, SearchResponse{Total: 2, TotalHits: 2, Hits: []Hit{
		{ID: 7, LargeImageURL: "https://cdn.example/7.jpg", Tags: "tea, winter"},
		{ID: 8, WebformatURL: "https://cdn.example/8.jpg"},
	}})
	c := NewPixabayClient(PixabayOptions{APIKey: "pk", BaseURL: srv.URL})

	hits, err := c.Search(context.Background(), "겨울 차", SearchOptions{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ImageURL() != "https://cdn.example/7.jpg" || hits[1].ImageURL() != "https://cdn.example/8.jpg" {
		t.Errorf("unexpected image URLs: %q %q", hits[0].ImageURL(), hits[1].ImageURL())
	}
}

func TestPixabaySearch_NoResults(t *testing.T) {
	srv := pixabayServer(t, http.StatusOK, SearchResponse{})
	c := NewPixabayClient(PixabayOptions{APIKey: "pk", BaseURL: srv.URL})

	if _, err := c.Search(context.Background(), "nothing", SearchOptions{}); !errors.Is(err, ErrNoResults) {
		t.Errorf("expected ErrNoResults, got %v", err)
	}
}

func TestPixabaySearch_HTTPError(t *testing.T) {
	srv := pixabayServer(t, http.StatusBadRequest, SearchResponse{})
	c := NewPixabayClient(PixabayOptions{APIKey: "pk", BaseURL: srv.URL})

	_, err := c.Search(context.Background(), "q", SearchOptions{})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.StatusCode != http.StatusBadRequest || pe.Transient() {
		t.Errorf("unexpected provider error: %+v", pe)
	}
}

func TestPixabaySearch_NotConfigured(t *testing.T) {
	if _, err := NewPixabayClient(PixabayOptions{}).Search(context.Background(), "q", SearchOptions{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestDecodeDataURL(t *testing.T) {
	mediaType, data, err := DecodeDataURL(pngDataURL())
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if mediaType != "image/png" || string(data) != string(pngBytes) {
		t.Errorf("unexpected decode result %q %v", mediaType, data)
	}

	for _, bad := range []string{"", "http://x", "data:image/png,raw", "data:image/png;base64,!!!", "data:image/png;base64,"} {
		if _, _, err := DecodeDataURL(bad); !errors.Is(err, ErrInvalidDataURL) {
			t.Errorf("DecodeDataURL(%q) expected ErrInvalidDataURL, got %v", bad, err)
		}
	}
}

func TestSaveImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := SaveImage(dir, "a.png", pngBytes)
	if err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != string(pngBytes) {
		t.Errorf("saved file mismatch: %v", err)
	}
}

func TestGenerator_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer anon" {
			t.Errorf("missing authorization header")
		}
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Prompt != "a cup of tea" || req.APIKey != "hf" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(GenerateResponse{Image: pngDataURL()})
	}))
	defer srv.Close()

	c := NewGeneratorClient(GeneratorOptions{FunctionURL: srv.URL, APIKey: "hf", AnonKey: "anon"})
	img, err := c.Generate(context.Background(), "a cup of tea")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if img.MediaType != "image/png" || len(img.Data) != len(pngBytes) {
		t.Errorf("unexpected image %+v", img)
	}
}

func TestGenerator_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(GenerateResponse{Error: "model is loading"})
	}))
	defer srv.Close()

	c := NewGeneratorClient(GeneratorOptions{FunctionURL: srv.URL, APIKey: "hf"})
	_, err := c.Generate(context.Background(), "p")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Message != "model is loading" || !pe.Transient() {
		t.Errorf("unexpected provider error %+v", pe)
	}
}

func TestGenerator_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewGeneratorClient(GeneratorOptions{FunctionURL: srv.URL, APIKey: "hf", Timeout: 50 * time.Millisecond})
	_, err := c.Generate(context.Background(), "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || !pe.Transient() {
		t.Errorf("timeout should be a transient provider error, got %v", err)
	}
}

func TestGenerator_CallerCancellation(t *testing.T) {
	c := NewGeneratorClient(GeneratorOptions{FunctionURL: "http://127.0.0.1:1", APIKey: "hf"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, "p")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		t.Error("caller cancellation must not be a provider error")
	}
}

type fixedPrompter string

func (f fixedPrompter) GenerateImagePrompt(ctx context.Context, topic string) (string, error) {
	return string(f), nil
}

func TestProvider_GenerateSavesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(GenerateResponse{Image: pngDataURL()})
	}))
	defer srv.Close()

	out := t.TempDir()
	p := NewProvider(ProviderOptions{
		Mode:      ModeGenerate,
		Generator: NewGeneratorClient(GeneratorOptions{FunctionURL: srv.URL, APIKey: "hf"}),
		Prompter:  fixedPrompter("winter tea"),
		OutputDir: out,
	})

	img, err := p.FetchImage(context.Background(), "겨울철 건강차", "건강차")
	if err != nil {
		t.Fatalf("FetchImage failed: %v", err)
	}
	if img.Source != core.ImageSourceGenerated || img.Prompt != "winter tea" {
		t.Errorf("unexpected image %+v", img)
	}
	if filepath.Dir(img.Path) != out || filepath.Ext(img.Path) != ".png" {
		t.Errorf("unexpected path %s", img.Path)
	}
}

func TestProvider_GenerateFallsBackToSearch(t *testing.T) {
	gen := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gen.Close()
	pix := pixabayServer(t, http.StatusOK, SearchResponse{Hits: []Hit{{ID: 1, LargeImageURL: "https://cdn.example/1.jpg", Views: 5}}})

	p := NewProvider(ProviderOptions{
		Mode:      ModeGenerate,
		Generator: NewGeneratorClient(GeneratorOptions{FunctionURL: gen.URL, APIKey: "hf"}),
		Pixabay:   NewPixabayClient(PixabayOptions{APIKey: "pk", BaseURL: pix.URL}),
	})

	img, err := p.FetchImage(context.Background(), "topic", "keyword")
	if err != nil {
		t.Fatalf("FetchImage failed: %v", err)
	}
	if img.Source != core.ImageSourceSearch || img.URL != "https://cdn.example/1.jpg" || img.Prompt != "keyword" {
		t.Errorf("unexpected fallback image %+v", img)
	}
}

func TestProvider_NothingConfigured(t *testing.T) {
	p := NewProvider(ProviderOptions{Mode: "unknown"})
	if p.Mode() != ModeSearch {
		t.Errorf("unknown mode should default to search, got %s", p.Mode())
	}
	if p.Available() {
		t.Error("provider without clients should not be available")
	}
	if _, err := p.FetchImage(context.Background(), "t", "k"); err == nil {
		t.Error("expected error without providers")
	}
}
