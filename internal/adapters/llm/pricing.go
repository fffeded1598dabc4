package llm

import "strings"

// rate is (prompt, completion) USD per 1M tokens.
type rate struct {
	prompt, completion float64
}

// pricingTable is the built-in cost table for known models. Unknown models
// degrade to zero cost rather than failing the call — cost accounting is a
// convenience, not a correctness requirement.
var pricingTable = map[string]map[string]rate{
	"openai": {
		"gpt-5":        {1.25, 10.00},
		"gpt-5-mini":   {0.25, 2.00},
		"gpt-5-nano":   {0.05, 0.40},
		"gpt-4o":       {2.50, 10.00},
		"gpt-4o-mini":  {0.15, 0.60},
		"gpt-4.1":      {2.00, 8.00},
		"gpt-4.1-mini": {0.40, 1.60},
		"gpt-4.1-nano": {0.10, 0.40},
		"o3":           {2.00, 8.00},
		"o3-mini":      {1.10, 4.40},
		"o4-mini":      {1.10, 4.40},
	},
	"anthropic": {
		"claude-opus-4-6":   {5.00, 25.00},
		"claude-opus-4-5":   {5.00, 25.00},
		"claude-opus-4-1":   {15.00, 75.00},
		"claude-opus-4":     {15.00, 75.00},
		"claude-sonnet-4-6": {3.00, 15.00},
		"claude-sonnet-4-5": {3.00, 15.00},
		"claude-sonnet-4":   {3.00, 15.00},
		"claude-haiku-4-5":  {1.00, 5.00},
		"claude-haiku-3-5":  {0.80, 4.00},
		"claude-haiku-3":    {0.25, 1.25},
	},
	"gemini": {
		"gemini-3-pro":          {2.00, 12.00},
		"gemini-3-flash":        {0.50, 3.00},
		"gemini-2.5-pro":        {1.25, 10.00},
		"gemini-2.5-flash":      {0.30, 2.50},
		"gemini-2.5-flash-lite": {0.10, 0.40},
		"gemini-2.0-flash":      {0.10, 0.40},
		"gemini-2.0-flash-lite": {0.075, 0.30},
	},
}

// cacheMultiplier holds each provider's cache-read and cache-write pricing
// factors relative to the base prompt rate.
type cacheMultiplier struct {
	read, write float64
}

var cacheMultipliers = map[string]cacheMultiplier{
	"anthropic": {read: 0.10, write: 1.25},
	"openai":    {read: 0.50, write: 1.0},
	"gemini":    {read: 0.25, write: 1.0},
}

// normalizeModelName strips a trailing date suffix, either an 8-digit token
// (e.g. "-20250929") or a dashed YYYY-MM-DD date (e.g. "-2024-05-13"), so
// dated model snapshots still hit the table.
func normalizeModelName(model string) string {
	parts := strings.Split(model, "-")
	for len(parts) > 0 {
		n := len(parts)
		last := parts[n-1]
		if len(last) == 8 && isAllDigits(last) {
			parts = parts[:n-1]
			continue
		}
		if n >= 4 && len(parts[n-3]) == 4 && len(parts[n-2]) == 2 && len(last) == 2 &&
			isAllDigits(parts[n-3]) && isAllDigits(parts[n-2]) && isAllDigits(last) {
			parts = parts[:n-3]
			continue
		}
		break
	}
	return strings.Join(parts, "-")
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func lookupRate(provider, model string) (rate, bool) {
	providerRates, ok := pricingTable[provider]
	if !ok {
		return rate{}, false
	}
	if r, ok := providerRates[model]; ok {
		return r, true
	}
	if r, ok := providerRates[normalizeModelName(model)]; ok {
		return r, true
	}
	return rate{}, false
}

// estimateCost returns the estimated USD cost of one recorded usage,
// applying the provider's cache-read/cache-write multipliers on top of the
// base per-token rate. Unknown models return 0.
func estimateCost(provider, model string, promptTokens, completionTokens, cacheReadTokens, cacheWriteTokens int) float64 {
	r, ok := lookupRate(provider, model)
	if !ok {
		return 0
	}
	mult := cacheMultipliers[provider]
	if mult == (cacheMultiplier{}) {
		mult = cacheMultiplier{read: 1.0, write: 1.0}
	}
	// Non-cached prompt tokens bill at the base rate; cache reads/writes are
	// billed separately at their provider-specific fraction of that rate.
	baseTokens := promptTokens - cacheReadTokens - cacheWriteTokens
	if baseTokens < 0 {
		baseTokens = 0
	}
	cost := float64(baseTokens) * r.prompt
	cost += float64(cacheReadTokens) * r.prompt * mult.read
	cost += float64(cacheWriteTokens) * r.prompt * mult.write
	cost += float64(completionTokens) * r.completion
	return cost / 1_000_000
}
