package handlers

import (
	"blogsmith/internal/app"
	"blogsmith/internal/auth"
	"blogsmith/internal/config"
	"blogsmith/internal/llm"
	"blogsmith/internal/orchestrator"
	"blogsmith/internal/store"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type scriptedText struct{}

func (scriptedText) GenerateText(ctx context.Context, prompt string, opts llm.TextGenerationOptions) (string, error) {
	if strings.Contains(prompt, "제목") && strings.Contains(prompt, "만들어 주세요") {
		return "1. 겨울철 건강관리 꿀팁 5가지\n2. 겨울철 면역력 높이는 음식 정리", nil
	}
	return "## 들어가며\n\n따뜻한 차를 자주 마십니다.\n\n## 마무리\n\n꾸준함이 중요합니다.", nil
}

type cliEnv struct {
	dir     string
	cfgPath string
	kv      *store.MemoryStore
}

// setupCLI points the commands at a temporary config and a shared
// in-memory store so state carries across invocations.
func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()

	for _, key := range []string{
		"GEMINI_API_KEY", "PIXABAY_API_KEY", "SUPABASE_DB_URL", "DATABASE_URL",
		"SUPABASE_JWT_SECRET", "BLOGSMITH_USER_ID", "POSTHOG_API_KEY",
	} {
		t.Setenv(key, "")
	}

	cfgPath := filepath.Join(dir, "blogsmith.yaml")
	yaml := fmt.Sprintf("app:\n  output_dir: %s\nstorage:\n  directory: %s\n",
		filepath.Join(dir, "articles"), filepath.Join(dir, "data"))
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	env := &cliEnv{dir: dir, cfgPath: cfgPath, kv: store.NewMemoryStore()}

	config.Reset()
	prev := appFactory
	appFactory = func(cfg *config.Config) (*app.App, error) {
		return app.New(cfg, app.WithStore(env.kv), app.WithTextGenerator(scriptedText{}))
	}
	t.Cleanup(func() {
		appFactory = prev
		config.Reset()
	})
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerate_WritesArticle(t *testing.T) {
	env := setupCLI(t)

	out, err := env.run(t, "generate", "--keyword", "겨울철 건강관리")
	if err != nil {
		t.Fatalf("generate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "겨울철 건강관리 꿀팁 5가지") {
		t.Errorf("output should name the topic:\n%s", out)
	}

	files, _ := filepath.Glob(filepath.Join(env.dir, "articles", "*.md"))
	if len(files) != 1 {
		t.Fatalf("expected one markdown file, got %v", files)
	}
	html, _ := filepath.Glob(filepath.Join(env.dir, "articles", "*.html"))
	if len(html) != 1 {
		t.Fatalf("expected one html file, got %v", html)
	}

	out, err = env.run(t, "ledger", "list", "topics")
	if err != nil {
		t.Fatalf("ledger list failed: %v", err)
	}
	if !strings.Contains(out, "겨울철 건강관리 꿀팁 5가지") || !strings.Contains(out, "Total: 1") {
		t.Errorf("topic should be recorded:\n%s", out)
	}
}

func TestGenerate_SecondRunSkipsUsedTopic(t *testing.T) {
	env := setupCLI(t)

	if _, err := env.run(t, "generate", "--keyword", "겨울철 건강관리"); err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	out, err := env.run(t, "generate", "--keyword", "겨울철 건강관리")
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if !strings.Contains(out, "겨울철 면역력 높이는 음식 정리") {
		t.Errorf("second run should use the unused title:\n%s", out)
	}
}

func TestGenerate_RequiresKeyword(t *testing.T) {
	env := setupCLI(t)

	_, err := env.run(t, "generate")
	if !errors.Is(err, orchestrator.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTopics_ListsAndSelects(t *testing.T) {
	env := setupCLI(t)

	out, err := env.run(t, "topics", "겨울철 건강관리")
	if err != nil {
		t.Fatalf("topics failed: %v", err)
	}
	if !strings.Contains(out, "1. 겨울철 건강관리 꿀팁 5가지") || !strings.Contains(out, "2. 겨울철 면역력") {
		t.Errorf("unexpected listing:\n%s", out)
	}

	out, err = env.run(t, "topics", "겨울철 건강관리", "--select", "2")
	if err != nil {
		t.Fatalf("topics --select failed: %v", err)
	}
	if !strings.Contains(out, "markdown:") {
		t.Errorf("article should be written:\n%s", out)
	}

	out, _ = env.run(t, "topics", "겨울철 건강관리")
	if !strings.Contains(out, "(used:") {
		t.Errorf("used title should be marked:\n%s", out)
	}
}

func TestTopics_SelectOutOfRange(t *testing.T) {
	env := setupCLI(t)

	_, err := env.run(t, "topics", "겨울철 건강관리", "--select", "9")
	if !errors.Is(err, orchestrator.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestLedger_CheckAndClear(t *testing.T) {
	env := setupCLI(t)

	if _, err := env.run(t, "generate", "--keyword", "겨울철 건강관리"); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	out, err := env.run(t, "ledger", "check", "topics", "겨울철 건강관리 꿀팁 5 가지")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.HasPrefix(out, "duplicate of") {
		t.Errorf("near-identical title should be a duplicate: %q", out)
	}

	out, _ = env.run(t, "ledger", "check", "topics", "봄철 알레르기 대처법")
	if !strings.HasPrefix(out, "unique") {
		t.Errorf("unrelated title should be unique: %q", out)
	}

	out, err = env.run(t, "ledger", "clear", "topics")
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if !strings.Contains(out, "Cleared 1 topics") {
		t.Errorf("unexpected clear output: %q", out)
	}
}

func TestLedger_UnknownKind(t *testing.T) {
	env := setupCLI(t)

	if _, err := env.run(t, "ledger", "list", "images"); err == nil {
		t.Error("expected error for unknown ledger")
	}
}

func TestDuplicates_OffClearsLedgers(t *testing.T) {
	env := setupCLI(t)

	if _, err := env.run(t, "generate", "--keyword", "겨울철 건강관리"); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	out, err := env.run(t, "duplicates", "off")
	if err != nil {
		t.Fatalf("duplicates off failed: %v", err)
	}
	if !strings.Contains(out, "Duplicate prevention: off") || !strings.Contains(out, "Ledgers cleared") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, _ = env.run(t, "duplicates", "status")
	if !strings.Contains(out, "Duplicate prevention: off") || !strings.Contains(out, "Used topics:          0") {
		t.Errorf("unexpected status:\n%s", out)
	}

	out, _ = env.run(t, "ledger", "check", "topics", "겨울철 건강관리 꿀팁 5가지")
	if !strings.Contains(out, "duplicate prevention is off") {
		t.Errorf("check should report prevention off: %q", out)
	}

	out, _ = env.run(t, "duplicates", "on")
	if !strings.Contains(out, "Duplicate prevention: on") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestKeys_SetAndShow(t *testing.T) {
	env := setupCLI(t)

	out, err := env.run(t, "keys", "set", "pixabay", "abcdefgh1234")
	if err != nil {
		t.Fatalf("keys set failed: %v", err)
	}
	if !strings.Contains(out, "Saved pixabay key "+app.Mask("abcdefgh1234")) {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = env.run(t, "keys", "show")
	if err != nil {
		t.Fatalf("keys show failed: %v", err)
	}
	if !strings.Contains(out, "pixabay    store") {
		t.Errorf("saved key should come from the store:\n%s", out)
	}
	if strings.Contains(out, "abcdefgh1234") {
		t.Error("key must be masked")
	}

	if _, err := env.run(t, "keys", "set", "dalle", "x"); !errors.Is(err, app.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}

	if _, err := env.run(t, "keys", "set", "pixabay", ""); err != nil {
		t.Fatalf("removing key failed: %v", err)
	}
	if _, ok := env.kv.Get(store.KeyPixabayAPIKey); ok {
		t.Error("key should be removed")
	}
}

func TestSimilarity(t *testing.T) {
	env := setupCLI(t)

	tests := []struct {
		a, b string
		want string
	}{
		{"abc", "abd", "0.667 unique (threshold 0.70)"},
		{"Hello World", "helloworld", "1.000 duplicate (threshold 0.70)"},
	}

	for _, tt := range tests {
		out, err := env.run(t, "similarity", tt.a, tt.b)
		if err != nil {
			t.Fatalf("similarity failed: %v", err)
		}
		if got := strings.TrimSpace(out); got != tt.want {
			t.Errorf("similarity(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestReset(t *testing.T) {
	env := setupCLI(t)

	if _, err := env.run(t, "reset"); err == nil {
		t.Error("reset without --force should fail")
	}

	env.kv.Set(store.KeyGeminiAPIKey, "saved-gemini-key")
	if _, err := env.run(t, "generate", "--keyword", "겨울철 건강관리"); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := env.run(t, "reset", "--force"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, ok := env.kv.Get(store.KeyUsedTopics); ok {
		t.Error("ledger should be cleared")
	}
	if _, ok := env.kv.Get(store.KeySession); ok {
		t.Error("session should be cleared")
	}
	if _, ok := env.kv.Get(store.KeyGeminiAPIKey); !ok {
		t.Error("credentials should survive reset")
	}
}

func TestToken(t *testing.T) {
	env := setupCLI(t)

	if _, err := env.run(t, "token"); err == nil {
		t.Fatal("expected error without user id")
	}

	config.Reset()
	t.Setenv("BLOGSMITH_USER_ID", "user-123")
	t.Setenv("SUPABASE_JWT_SECRET", "test-secret")

	out, err := env.run(t, "token", "--email", "a@example.com")
	if err != nil {
		t.Fatalf("token failed: %v", err)
	}
	token := strings.SplitN(out, "\n", 2)[0]

	claims, err := auth.NewTokenVerifier("test-secret").Parse(token)
	if err != nil {
		t.Fatalf("token should verify: %v", err)
	}
	if claims.UserID() != "user-123" || claims.Email != "a@example.com" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestDB_RequiresDatabaseURL(t *testing.T) {
	env := setupCLI(t)

	for _, sub := range []string{"migrate", "status", "watch"} {
		if _, err := env.run(t, "db", sub); !errors.Is(err, errNoDatabase) {
			t.Errorf("db %s: expected errNoDatabase, got %v", sub, err)
		}
	}
}
