// Package cost estimates Gemini token usage and spend per call.
package cost

import (
	"math"
	"strings"
	"unicode/utf8"
)

// GeminiPricing represents the pricing for one Gemini model
type GeminiPricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // Cost per 1M input tokens in USD
	OutputCostPer1MTokens float64 // Cost per 1M output tokens in USD
}

// DefaultModel is used for models missing from PricingTable.
const DefaultModel = "gemini-2.5-flash"

// PricingTable contains Gemini text model list prices
var PricingTable = map[string]GeminiPricing{
	"gemini-2.5-flash": {
		Model:                 "gemini-2.5-flash",
		InputCostPer1MTokens:  0.30,
		OutputCostPer1MTokens: 2.50,
	},
	"gemini-2.5-flash-lite": {
		Model:                 "gemini-2.5-flash-lite",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
	},
	"gemini-2.5-pro": {
		Model:                 "gemini-2.5-pro",
		InputCostPer1MTokens:  1.25,
		OutputCostPer1MTokens: 10.00,
	},
	"gemini-2.0-flash": {
		Model:                 "gemini-2.0-flash",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
	},
}

// Pricing returns the pricing for model, falling back to DefaultModel.
func Pricing(model string) GeminiPricing {
	if p, ok := PricingTable[model]; ok {
		return p
	}
	return PricingTable[DefaultModel]
}

// EstimateTokenCount provides a rough estimation of token count for text.
// Hangul packs fewer characters per token than English, so text is counted
// at about 3.5 runes per token with whitespace collapsed.
func EstimateTokenCount(text string) int {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 3.5))
}

// CallEstimate is the estimated usage of one generation call.
type CallEstimate struct {
	InputTokens  int
	OutputTokens int
	TotalCost    float64
}

// Tokens returns input plus output tokens.
func (e CallEstimate) Tokens() int {
	return e.InputTokens + e.OutputTokens
}

// EstimateCall estimates the usage of sending prompt to model and receiving
// completion.
func EstimateCall(model, prompt, completion string) CallEstimate {
	p := Pricing(model)
	in := EstimateTokenCount(prompt)
	out := EstimateTokenCount(completion)
	return CallEstimate{
		InputTokens:  in,
		OutputTokens: out,
		TotalCost:    float64(in)*p.InputCostPer1MTokens/1_000_000 + float64(out)*p.OutputCostPer1MTokens/1_000_000,
	}
}
