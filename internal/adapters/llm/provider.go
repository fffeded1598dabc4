// Package llm routes a high-level task to a concrete provider+model, giving
// every call site a uniform chat/batch-chat contract regardless of which
// vendor backs the task.
package llm

import (
	"context"

	"workrecap/internal/domain"
)

// ChatOptions carries the uniform per-call knobs every provider maps onto
// its own wire format.
type ChatOptions struct {
	JSONMode          bool
	MaxTokens         int
	CacheSystemPrompt bool
}

// Provider is the uniform interface every vendor-specific client satisfies.
type Provider interface {
	// Name is the short provider identifier used in usage records and
	// provider-config lookups ("openai", "anthropic", "gemini", "generic").
	Name() string
	// Chat sends one system+user exchange and returns the response text plus
	// the token usage that call incurred.
	Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, domain.TokenUsage, error)
}

// BatchCapable is implemented by providers whose vendor API supports
// asynchronous bulk completion. Checked with a type assertion before batch
// submission; a provider that doesn't implement it simply has no batch path.
type BatchCapable interface {
	Provider
	SubmitBatch(ctx context.Context, requests []domain.BatchChatRequest) (string, error)
	GetBatchStatus(ctx context.Context, batchID string) (domain.BatchStatus, error)
	GetBatchResults(ctx context.Context, batchID string) ([]domain.BatchChatResult, error)
}
