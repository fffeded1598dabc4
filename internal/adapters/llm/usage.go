package llm

import (
	"sync"

	"workrecap/internal/domain"
	"workrecap/internal/platform/logger"
)

// UsageTracker accumulates per-(provider, model) token usage and estimated
// cost across the life of a process. Safe for concurrent use by multiple
// router calls in flight.
type UsageTracker struct {
	mu     sync.Mutex
	usages map[string]*domain.ModelUsage
}

// NewUsageTracker returns an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{usages: map[string]*domain.ModelUsage{}}
}

func usageKey(provider, model string) string { return provider + "/" + model }

// Record folds one call's usage into the running total for (provider, model).
// A model with no pricing entry is recorded at zero cost and logs a warning.
func (t *UsageTracker) Record(provider, model string, usage domain.TokenUsage) {
	if _, ok := lookupRate(provider, model); !ok {
		logger.Named("llm.usage").Warn().Str("provider", provider).Str("model", model).Msg("no pricing entry, cost recorded as 0")
	}
	cost := estimateCost(provider, model, usage.PromptTokens, usage.CompletionTokens, usage.CacheReadTokens, usage.CacheWriteTokens)

	t.mu.Lock()
	defer t.mu.Unlock()
	key := usageKey(provider, model)
	mu, ok := t.usages[key]
	if !ok {
		mu = &domain.ModelUsage{Provider: provider, Model: model}
		t.usages[key] = mu
	}
	mu.PromptTokens += usage.PromptTokens
	mu.CompletionTokens += usage.CompletionTokens
	mu.TotalTokens += usage.TotalTokens
	mu.CallCount += usage.CallCount
	mu.CacheReadTokens += usage.CacheReadTokens
	mu.CacheWriteTokens += usage.CacheWriteTokens
	mu.EstimatedCostUSD += cost
}

// Snapshot returns a read-only copy of every tracked (provider, model)'s
// usage, keyed "provider/model".
func (t *UsageTracker) Snapshot() map[string]domain.ModelUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]domain.ModelUsage, len(t.usages))
	for k, v := range t.usages {
		out[k] = *v
	}
	return out
}

// Total aggregates token counts (not cost) across every tracked model.
func (t *UsageTracker) Total() domain.TokenUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var total domain.TokenUsage
	for _, mu := range t.usages {
		total = total.Add(domain.TokenUsage{
			PromptTokens:     mu.PromptTokens,
			CompletionTokens: mu.CompletionTokens,
			TotalTokens:      mu.TotalTokens,
			CallCount:        mu.CallCount,
			CacheReadTokens:  mu.CacheReadTokens,
			CacheWriteTokens: mu.CacheWriteTokens,
		})
	}
	return total
}
