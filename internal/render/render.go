// Package render converts generated markdown into HTML and writes article
// files.
package render

import (
	"blogsmith/internal/core"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// ToHTML converts markdown text to an HTML fragment.
func ToHTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	// Configure markdown parser with common extensions
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	mdParser := parser.NewWithExtensions(extensions)

	// Configure HTML renderer with external link handling
	htmlFlags := mdhtml.CommonFlags | mdhtml.HrefTargetBlank
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: htmlFlags,
	})

	return string(markdown.ToHTML([]byte(text), mdParser, renderer))
}

// Outline returns the h2/h3 headings of an HTML fragment and the number of
// non-whitespace characters in its visible text.
func Outline(fragment string) ([]string, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse article HTML: %w", err)
	}

	headings := []string{}
	doc.Find("h2, h3").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			headings = append(headings, text)
		}
	})

	count := 0
	for _, r := range doc.Text() {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return headings, count, nil
}

// Finalize fills the HTML, heading outline and character count of article
// from its markdown.
func Finalize(article *core.Article) error {
	article.HTML = ToHTML(article.Markdown)
	headings, count, err := Outline(article.HTML)
	if err != nil {
		return err
	}
	article.Headings = headings
	article.CharCount = count
	return nil
}

var slugStrip = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Slugify builds a file name from a title, keeping Hangul.
func Slugify(title string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if r := []rune(s); len(r) > 60 {
		s = strings.TrimRight(string(r[:60]), "-")
	}
	if s == "" {
		s = "article"
	}
	return s
}

// Markdown returns the article document with its title and optional image.
func Markdown(article *core.Article, image *core.Image) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", article.Topic)
	if src := imageSource(image); src != "" {
		fmt.Fprintf(&b, "![%s](%s)\n\n", article.Topic, src)
	}
	b.WriteString(strings.TrimSpace(article.Markdown))
	b.WriteString("\n")
	return b.String()
}

// HTMLDocument wraps the rendered article in a standalone page.
func HTMLDocument(article *core.Article, image *core.Image) string {
	body := article.HTML
	if body == "" {
		body = ToHTML(article.Markdown)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"ko\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(article.Topic))
	if article.Keyword != "" {
		fmt.Fprintf(&b, "<meta name=\"keywords\" content=\"%s\">\n", html.EscapeString(article.Keyword))
	}
	b.WriteString("</head>\n<body>\n<article>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(article.Topic))
	if src := imageSource(image); src != "" {
		fmt.Fprintf(&b, "<img src=\"%s\" alt=\"%s\">\n", html.EscapeString(src), html.EscapeString(article.Topic))
	}
	b.WriteString(body)
	b.WriteString("</article>\n</body>\n</html>\n")
	return b.String()
}

// WriteArticle writes <slug>.md and <slug>.html into outputDir and returns
// both paths.
func WriteArticle(outputDir string, article *core.Article, image *core.Image) (string, string, error) {
	if outputDir == "" {
		outputDir = "articles"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	slug := Slugify(article.Topic)
	mdPath := filepath.Join(outputDir, slug+".md")
	htmlPath := filepath.Join(outputDir, slug+".html")

	if err := os.WriteFile(mdPath, []byte(Markdown(article, image)), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write article file %s: %w", mdPath, err)
	}
	if err := os.WriteFile(htmlPath, []byte(HTMLDocument(article, image)), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write article file %s: %w", htmlPath, err)
	}

	return mdPath, htmlPath, nil
}

func imageSource(image *core.Image) string {
	if image == nil {
		return ""
	}
	if image.Path != "" {
		return image.Path
	}
	return image.URL
}
