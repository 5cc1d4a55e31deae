package orchestrator

import (
	"blogsmith/internal/similarity"
	"strings"
	"unicode/utf8"
)

// CoreKeyword returns the first token of keyword.
func CoreKeyword(keyword string) string {
	fields := strings.Fields(keyword)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// FilterTitles keeps titles of at least minLength runes and, when
// requireKeyword is set, titles containing the core keyword.
func FilterTitles(titles []string, keyword string, minLength int, requireKeyword bool) []string {
	core := CoreKeyword(keyword)
	kept := []string{}
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if utf8.RuneCountInString(t) < minLength {
			continue
		}
		if requireKeyword && core != "" && !similarity.Contains(t, core) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// flaggedTopics returns the candidates ledger flags as duplicates, in order.
func flaggedTopics(candidates []string, ledger TopicLedger) []string {
	if ledger == nil {
		return []string{}
	}
	_, duplicates := ledger.Filter(candidates)
	if duplicates == nil {
		return []string{}
	}
	return duplicates
}

// pickTopic returns the index of the first candidate not flagged by the
// ledger. When every candidate is flagged it returns 0 and override=true.
func pickTopic(candidates []string, ledger TopicLedger) (index int, override bool) {
	if ledger == nil {
		return 0, false
	}
	for i, c := range candidates {
		if !ledger.IsDuplicate(c) {
			return i, false
		}
	}
	return 0, true
}
