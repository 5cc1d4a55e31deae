package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"
)

// fakeGemini serves generateContent with a fixed status and body.
func fakeGemini(t *testing.T, status int, body string, gotPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if gotPrompt != nil {
			raw, _ := io.ReadAll(r.Body)
			var req struct {
				Contents []struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"contents"`
			}
			_ = json.Unmarshal(raw, &req)
			if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
				*gotPrompt = req.Contents[0].Parts[0].Text
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), ClientOptions{APIKey: "test-key", BaseURL: baseURL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClient_NoAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), ClientOptions{})
	if err == nil {
		t.Fatal("Expected error when no API key is available")
	}
	if !strings.Contains(err.Error(), "gemini API key is required") {
		t.Errorf("Expected API key error, got: %v", err)
	}
}

func TestNewClient_DefaultModel(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if c.GetModelName() != DefaultModel {
		t.Errorf("expected default model %s, got %s", DefaultModel, c.GetModelName())
	}
}

func TestGenerateText_Success(t *testing.T) {
	var prompt string
	srv := fakeGemini(t, http.StatusOK, `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "겨울철 건강관리"}, {"text": " 꿀팁"}]},
			"finishReason": "STOP"
		}]
	}`, &prompt)

	got, err := newTestClient(t, srv.URL).GenerateText(context.Background(), "키워드 추천", TextGenerationOptions{})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if got != "겨울철 건강관리 꿀팁" {
		t.Errorf("unexpected text %q", got)
	}
	if prompt != "키워드 추천" {
		t.Errorf("server received prompt %q", prompt)
	}
}

func TestGenerateText_EmptyPrompt(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if _, err := c.GenerateText(context.Background(), "  ", TextGenerationOptions{}); err == nil {
		t.Error("expected error for empty prompt")
	}
}

func TestGenerateText_NoCandidates(t *testing.T) {
	srv := fakeGemini(t, http.StatusOK, `{"candidates": []}`, nil)

	_, err := newTestClient(t, srv.URL).GenerateText(context.Background(), "p", TextGenerationOptions{})
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates, got %v", err)
	}
}

func TestGenerateText_ProviderError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad request", http.StatusBadRequest, false},
		{"forbidden", http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"error": {"code": %d, "message": "upstream says no", "status": "X"}}`, tt.status)
			srv := fakeGemini(t, tt.status, body, nil)

			_, err := newTestClient(t, srv.URL).GenerateText(context.Background(), "p", TextGenerationOptions{})
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %T: %v", err, err)
			}
			if pe.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", pe.StatusCode, tt.status)
			}
			if pe.Transient() != tt.transient {
				t.Errorf("Transient() = %v, want %v", pe.Transient(), tt.transient)
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient = %v, want %v", IsTransient(err), tt.transient)
			}
		})
	}
}

func TestGenerateText_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv.URL).GenerateText(ctx, "p", TextGenerationOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if IsTransient(err) {
		t.Error("cancellation must not be reported as transient")
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr error
	}{
		{"nil response", nil, "", ErrNoCandidates},
		{"no candidates", &genai.GenerateContentResponse{}, "", ErrNoCandidates},
		{
			"blocked prompt",
			&genai.GenerateContentResponse{PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety}},
			"", ErrBlocked,
		},
		{
			"empty parts",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}},
			"", ErrEmptyText,
		},
		{
			"whitespace only",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "  \n"}}}}}},
			"", ErrEmptyText,
		},
		{
			"thought parts skipped",
			&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "답변"},
			}}}}},
			"답변", nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText(tt.resp)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTitleList(t *testing.T) {
	input := `
1. 겨울철 건강관리 꿀팁 5가지
2) **면역력 높이는 건강관리 식단**
- "건강관리 앱 추천 베스트"
* 제목: 직장인 건강관리 루틴

3. 겨울철 건강관리 꿀팁 5가지
`
	want := []string{
		"겨울철 건강관리 꿀팁 5가지",
		"면역력 높이는 건강관리 식단",
		"건강관리 앱 추천 베스트",
		"직장인 건강관리 루틴",
	}
	if diff := cmp.Diff(want, ParseTitleList(input)); diff != "" {
		t.Errorf("ParseTitleList mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTitleList_Empty(t *testing.T) {
	if got := ParseTitleList("\n  \n- \n"); len(got) != 0 {
		t.Errorf("expected no titles, got %v", got)
	}
}

func TestGenerateText_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	c, err := NewClient(context.Background(), ClientOptions{APIKey: apiKey})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	text, err := c.GenerateText(context.Background(), "한 단어로 인사해 주세요.", TextGenerationOptions{MaxTokens: 32})
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if text == "" {
		t.Error("expected non-empty response")
	}
}
