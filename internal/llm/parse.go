package llm

import (
	"regexp"
	"strings"
)

var (
	listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•·]+|\d+\s*[.)\]:]|\(\d+\)|[#]+)\s*`)
	emphasisRe   = regexp.MustCompile(`\*\*|__|\x60`)
	labelRe      = regexp.MustCompile(`^(?:제목|키워드|Title|Keyword)\s*\d*\s*[:：]\s*`)
)

// ParseTitleList turns a newline-delimited model response into clean titles.
// Numbering, bullets, markdown emphasis, labels and surrounding quotes are
// removed; empty lines and repeats are dropped.
func ParseTitleList(text string) []string {
	seen := make(map[string]bool)
	var titles []string

	for _, line := range strings.Split(text, "\n") {
		title := CleanTitle(line)
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		titles = append(titles, title)
	}

	return titles
}

// CleanTitle strips list decoration from a single line.
func CleanTitle(line string) string {
	s := strings.TrimSpace(line)
	s = listMarkerRe.ReplaceAllString(s, "")
	s = emphasisRe.ReplaceAllString(s, "")
	s = labelRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'“”‘’「」『』`)
	return strings.TrimSpace(s)
}
