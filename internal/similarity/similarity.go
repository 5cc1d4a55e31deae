// Package similarity scores how close two short texts are, for duplicate
// topic and keyword detection.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the ratio at or above which two texts count as duplicates.
const DefaultThreshold = 0.70

// Normalize lowercases s and removes every whitespace rune.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Ratio returns (maxLen - editDistance) / maxLen over the normalized inputs,
// measured in runes. Two texts that are both empty after normalization are
// fully similar.
func Ratio(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)

	maxLen := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	if maxLen == 0 {
		return 1
	}
	if na == nb {
		return 1
	}

	dist := levenshtein.ComputeDistance(na, nb)
	return float64(maxLen-dist) / float64(maxLen)
}

// IsDuplicate reports whether a and b are at least threshold similar.
func IsDuplicate(a, b string, threshold float64) bool {
	return Ratio(a, b) >= threshold
}

// Equal reports whether a and b are identical after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Contains reports whether the normalized text contains the normalized needle.
func Contains(text, needle string) bool {
	return strings.Contains(Normalize(text), Normalize(needle))
}

// Best returns the stored entry most similar to candidate and its ratio.
// An empty entries slice yields ("", 0).
func Best(candidate string, entries []string) (string, float64) {
	var (
		best  string
		score float64
	)
	for _, e := range entries {
		if r := Ratio(candidate, e); r > score {
			best, score = e, r
		}
	}
	return best, score
}
