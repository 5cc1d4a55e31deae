package render

import (
	"blogsmith/internal/core"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sampleMarkdown = `겨울철 건강관리의 핵심을 정리했습니다.

## 면역력 관리

따뜻한 차를 자주 마십니다.

### 추천 차 종류

- 생강차
- 유자차

## 마무리

[참고 자료](https://example.com)
`

func TestToHTML(t *testing.T) {
	out := ToHTML(sampleMarkdown)

	if !strings.Contains(out, `<h2 id=`) {
		t.Errorf("expected heading with auto id, got %s", out)
	}
	if !strings.Contains(out, `target="_blank"`) {
		t.Error("external links should open in a new tab")
	}
	if ToHTML("   ") != "" {
		t.Error("blank markdown should render empty")
	}
}

func TestOutline(t *testing.T) {
	headings, count, err := Outline(ToHTML(sampleMarkdown))
	if err != nil {
		t.Fatalf("Outline failed: %v", err)
	}

	want := []string{"면역력 관리", "추천 차 종류", "마무리"}
	if diff := cmp.Diff(want, headings); diff != "" {
		t.Errorf("headings mismatch (-want +got):\n%s", diff)
	}
	if count == 0 {
		t.Error("expected a positive character count")
	}
}

func TestOutline_CountsRunesWithoutWhitespace(t *testing.T) {
	_, count, err := Outline("<p>가 나\n다</p>")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 characters, got %d", count)
	}
}

func TestFinalize(t *testing.T) {
	a := &core.Article{Topic: "겨울철 건강관리", Markdown: sampleMarkdown}
	if err := Finalize(a); err != nil {
		t.Fatal(err)
	}
	if a.HTML == "" || len(a.Headings) != 3 || a.CharCount == 0 {
		t.Errorf("article not finalized: %+v", a)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"겨울철 건강관리 꿀팁 5가지!", "겨울철-건강관리-꿀팁-5가지"},
		{"  Hello, World  ", "hello-world"},
		{"???", "article"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := strings.Repeat("가", 100)
	if n := len([]rune(Slugify(long))); n != 60 {
		t.Errorf("expected slug truncated to 60 runes, got %d", n)
	}
}

func TestWriteArticle(t *testing.T) {
	dir := t.TempDir()
	a := &core.Article{Topic: "겨울철 건강관리", Keyword: "건강관리", Markdown: sampleMarkdown}
	img := &core.Image{Source: core.ImageSourceSearch, URL: "https://cdn.example/tea.jpg"}

	mdPath, htmlPath, err := WriteArticle(dir, a, img)
	if err != nil {
		t.Fatalf("WriteArticle failed: %v", err)
	}
	if filepath.Base(mdPath) != "겨울철-건강관리.md" {
		t.Errorf("unexpected markdown path %s", mdPath)
	}

	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(md), "# 겨울철 건강관리\n") || !strings.Contains(string(md), "https://cdn.example/tea.jpg") {
		t.Errorf("unexpected markdown file:\n%s", md)
	}

	page, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`<html lang="ko">`, "<h1>겨울철 건강관리</h1>", `<img src="https://cdn.example/tea.jpg"`, "면역력 관리"} {
		if !strings.Contains(string(page), want) {
			t.Errorf("HTML page missing %q", want)
		}
	}
}
