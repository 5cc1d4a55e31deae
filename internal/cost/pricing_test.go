package cost

import (
	"math"
	"testing"
)

func TestEstimateTokenCount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{
			name:     "empty string",
			input:    "",
			expected: 0,
		},
		{
			name:     "simple text",
			input:    "Hello world",
			expected: 4, // 11 chars / 3.5 ≈ 3.14, ceil = 4
		},
		{
			name:     "text with newlines",
			input:    "Line 1\nLine 2\nLine 3",
			expected: 6, // 20 chars / 3.5 ≈ 5.71, ceil = 6
		},
		{
			name:     "text with extra whitespace",
			input:    "  Text with   extra    spaces  ",
			expected: 7, // "Text with extra spaces" = 22 chars / 3.5 ≈ 6.29, ceil = 7
		},
		{
			name:     "hangul",
			input:    "겨울철 건강관리",
			expected: 3, // 8 runes / 3.5 ≈ 2.29, ceil = 3
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EstimateTokenCount(tt.input)
			if result != tt.expected {
				t.Errorf("EstimateTokenCount(%q) = %d, expected %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPricing_FallsBackToDefault(t *testing.T) {
	if got := Pricing("gemini-9-ultra"); got.Model != DefaultModel {
		t.Errorf("unknown model should use %s, got %s", DefaultModel, got.Model)
	}
	if got := Pricing("gemini-2.5-pro"); got.Model != "gemini-2.5-pro" {
		t.Errorf("expected gemini-2.5-pro pricing, got %s", got.Model)
	}
}

func TestEstimateCall(t *testing.T) {
	prompt := "1234567" // 2 tokens
	completion := "12345678901234" // 4 tokens

	est := EstimateCall("gemini-2.5-flash", prompt, completion)
	if est.InputTokens != 2 || est.OutputTokens != 4 || est.Tokens() != 6 {
		t.Fatalf("unexpected tokens %+v", est)
	}

	want := 2*0.30/1_000_000 + 4*2.50/1_000_000
	if math.Abs(est.TotalCost-want) > 1e-12 {
		t.Errorf("TotalCost = %g, want %g", est.TotalCost, want)
	}
}
