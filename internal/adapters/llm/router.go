package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
	"workrecap/internal/platform/logger"
)

const adaptiveConfidenceThreshold = 0.7

const adaptiveSystemPrompt = `Complete the user's task and respond with JSON: {"answer": "...", "confidence": 0.0-1.0}`

// Router maps a Task to a concrete provider+model per the configured
// strategy, then performs the chat or batch-chat call with a uniform
// contract. Providers are created lazily and cached for the router's
// lifetime.
type Router struct {
	config  *ProviderConfig
	usage   *UsageTracker
	log     *logger.Logger
	mu      sync.Mutex
	clients map[string]Provider
	// factory builds a Provider from its config entry; overridable in tests.
	factory func(name string, entry ProviderEntry) (Provider, error)
}

// NewRouter builds a router bound to config, recording usage into tracker.
func NewRouter(config *ProviderConfig, tracker *UsageTracker) *Router {
	log := logger.Named("llm.router")
	return &Router{
		config:  config,
		usage:   tracker,
		log:     log,
		clients: map[string]Provider{},
		factory: defaultProviderFactory,
	}
}

func defaultProviderFactory(name string, entry ProviderEntry) (Provider, error) {
	switch name {
	case "openai":
		return newOpenAIProvider(entry.APIKey), nil
	case "anthropic":
		return newAnthropicProvider(entry.APIKey), nil
	case "gemini":
		return newGeminiProvider(entry.APIKey, entry.BaseURL), nil
	case "generic":
		return newGenericProvider(entry.APIKey, entry.BaseURL), nil
	default:
		return nil, perr.SummarizeErrorf(perr.ErrorCodeValidation, "unsupported provider %q", name)
	}
}

func (r *Router) provider(name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.clients[name]; ok {
		return p, nil
	}
	entry, ok := r.config.Providers[name]
	if !ok {
		return nil, perr.SummarizeErrorf(perr.ErrorCodeValidation, "provider %q is not configured", name)
	}
	p, err := r.factory(name, entry)
	if err != nil {
		return nil, err
	}
	r.clients[name] = p
	return p, nil
}

// resolveModel implements the strategy semantics: which model to call, and
// whether that call should be wrapped in adaptive escalation.
func (r *Router) resolveModel(binding TaskBinding, strategy domain.StrategyMode) (model string, adaptive bool) {
	switch strategy {
	case domain.StrategyEconomy, domain.StrategyFixed:
		return binding.Model, false
	case domain.StrategyPremium:
		if binding.EscalationModel != "" {
			return binding.EscalationModel, false
		}
		return binding.Model, false
	case domain.StrategyAdaptive:
		return binding.Model, binding.EscalationModel != ""
	case domain.StrategyStandard:
		// Standard escalates only on a structural failure from the base
		// model, handled inline in Chat rather than here.
		return binding.Model, false
	default:
		return binding.Model, false
	}
}

// Chat routes task to its configured provider/model and performs the call.
// max_tokens resolution order is explicit opts.MaxTokens, then the task's
// configured cap, then unset.
func (r *Router) Chat(ctx context.Context, task domain.Task, systemPrompt, userContent string, opts ChatOptions) (string, error) {
	binding, ok := r.config.TaskConfig(task)
	if !ok {
		return "", perr.SummarizeErrorf(perr.ErrorCodeValidation, "no provider binding for task %q", task)
	}
	strategy := r.config.Strategy

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = binding.MaxTokens
	}

	model, adaptive := r.resolveModel(binding, strategy)

	provider, err := r.provider(binding.Provider)
	if err != nil {
		return "", err
	}

	r.log.Info().Str("task", string(task)).Str("provider", binding.Provider).Str("model", model).Str("strategy", string(strategy)).Msg("llm call")

	if adaptive {
		return r.chatAdaptive(ctx, provider, binding, systemPrompt, userContent, opts)
	}

	text, usage, err := provider.Chat(ctx, model, systemPrompt, userContent, opts)
	if err != nil {
		if strategy == domain.StrategyStandard && binding.EscalationModel != "" && isStructuralFailure(err) {
			r.log.Warn().Str("task", string(task)).Msg("escalating after structural failure")
			text, usage, err = provider.Chat(ctx, binding.EscalationModel, systemPrompt, userContent, opts)
			if err != nil {
				return "", err
			}
			r.usage.Record(binding.Provider, binding.EscalationModel, usage)
			return text, nil
		}
		return "", err
	}
	r.usage.Record(binding.Provider, model, usage)
	return text, nil
}

// isStructuralFailure reports whether err reflects a provider-side
// structured-output or content-limit failure, the only condition under
// which the "standard" strategy escalates.
func isStructuralFailure(err error) bool {
	switch perr.CodeOf(err) {
	case perr.ErrorCodeJSON, perr.ErrorCodeInvalidArgument:
		return true
	default:
		return false
	}
}

type adaptiveEnvelope struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// chatAdaptive runs the lean self-assessment envelope on the base model and
// escalates to the configured escalation model when confidence is below
// threshold. A JSON parse failure on the envelope is a graceful fallback:
// the raw base-model text is returned unchanged, with no escalation call.
func (r *Router) chatAdaptive(ctx context.Context, provider Provider, binding TaskBinding, systemPrompt, userContent string, opts ChatOptions) (string, error) {
	wrappedUser := fmt.Sprintf("Instructions: %s\n\n---\n\n%s", systemPrompt, userContent)

	baseText, baseUsage, err := provider.Chat(ctx, binding.Model, adaptiveSystemPrompt, wrappedUser, ChatOptions{JSONMode: true})
	if err != nil {
		return "", err
	}
	r.usage.Record(binding.Provider, binding.Model, baseUsage)

	var envelope adaptiveEnvelope
	if err := json.Unmarshal([]byte(baseText), &envelope); err != nil {
		r.log.Warn().Err(err).Msg("adaptive envelope parse failed, returning raw response")
		return baseText, nil
	}

	if envelope.Confidence >= adaptiveConfidenceThreshold {
		return envelope.Answer, nil
	}

	r.log.Info().Float64("confidence", envelope.Confidence).Msg("escalating adaptive call")
	escText, escUsage, err := provider.Chat(ctx, binding.EscalationModel, adaptiveSystemPrompt, wrappedUser, ChatOptions{JSONMode: true})
	if err != nil {
		return "", err
	}
	r.usage.Record(binding.Provider, binding.EscalationModel, escUsage)

	var escEnvelope adaptiveEnvelope
	if err := json.Unmarshal([]byte(escText), &escEnvelope); err != nil {
		r.log.Warn().Err(err).Msg("adaptive envelope parse failed on escalation, returning raw response")
		return escText, nil
	}
	return escEnvelope.Answer, nil
}

// SubmitBatch submits requests as a single provider-side batch for task,
// which never escalates: batch requests always use the task's base model.
func (r *Router) SubmitBatch(ctx context.Context, task domain.Task, requests []domain.BatchChatRequest) (string, error) {
	binding, ok := r.config.TaskConfig(task)
	if !ok {
		return "", perr.SummarizeErrorf(perr.ErrorCodeValidation, "no provider binding for task %q", task)
	}
	batchProvider, err := r.batchProvider(binding.Provider)
	if err != nil {
		return "", err
	}

	for i := range requests {
		if requests[i].Model == "" {
			requests[i].Model = binding.Model
		}
		if requests[i].MaxTokens == 0 {
			requests[i].MaxTokens = binding.MaxTokens
		}
	}
	return batchProvider.SubmitBatch(ctx, requests)
}

// GetBatchStatus reports the current status of a submitted batch.
func (r *Router) GetBatchStatus(ctx context.Context, task domain.Task, batchID string) (domain.BatchStatus, error) {
	binding, ok := r.config.TaskConfig(task)
	if !ok {
		return "", perr.SummarizeErrorf(perr.ErrorCodeValidation, "no provider binding for task %q", task)
	}
	batchProvider, err := r.batchProvider(binding.Provider)
	if err != nil {
		return "", err
	}
	return batchProvider.GetBatchStatus(ctx, batchID)
}

// GetBatchResults retrieves per-request results from a completed batch and
// records their usage.
func (r *Router) GetBatchResults(ctx context.Context, task domain.Task, batchID string) ([]domain.BatchChatResult, error) {
	binding, ok := r.config.TaskConfig(task)
	if !ok {
		return nil, perr.SummarizeErrorf(perr.ErrorCodeValidation, "no provider binding for task %q", task)
	}
	batchProvider, err := r.batchProvider(binding.Provider)
	if err != nil {
		return nil, err
	}
	results, err := batchProvider.GetBatchResults(ctx, batchID)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res.Err == nil {
			r.usage.Record(binding.Provider, binding.Model, res.Usage)
		}
	}
	return results, nil
}

// WaitForBatch polls GetBatchStatus until a terminal state, then returns
// results. Polling interval ramps linearly from 5s to 60s across the
// expected duration (the timeout); the timeout is min(300+30*size, 14400)
// seconds.
func (r *Router) WaitForBatch(ctx context.Context, task domain.Task, batchID string, size int) ([]domain.BatchChatResult, error) {
	timeout := batchTimeout(size)
	start := time.Now()
	deadline := start.Add(timeout)

	minInterval := 5 * time.Second
	maxInterval := 60 * time.Second

	for {
		status, err := r.GetBatchStatus(ctx, task, batchID)
		if err != nil {
			return nil, err
		}
		switch status {
		case domain.BatchStatusCompleted:
			return r.GetBatchResults(ctx, task, batchID)
		case domain.BatchStatusFailed, domain.BatchStatusExpired:
			return nil, perr.SummarizeErrorf(perr.ErrorCodeUnavailable, "batch %s ended with status %s", batchID, status)
		}
		if time.Now().After(deadline) {
			return nil, perr.SummarizeErrorf(perr.ErrorCodeUnavailable, "batch %s timed out after %s (status %s)", batchID, timeout, status)
		}

		progress := float64(time.Since(start)) / float64(timeout)
		if progress > 1 {
			progress = 1
		}
		interval := minInterval + time.Duration(progress*float64(maxInterval-minInterval))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// batchTimeout is five minutes base plus thirty seconds per request,
// capped at four hours.
func batchTimeout(size int) time.Duration {
	secs := 300 + 30*size
	if secs > 14400 {
		secs = 14400
	}
	return time.Duration(secs) * time.Second
}

func (r *Router) batchProvider(name string) (BatchCapable, error) {
	p, err := r.provider(name)
	if err != nil {
		return nil, err
	}
	bc, ok := p.(BatchCapable)
	if !ok {
		return nil, perr.SummarizeErrorf(perr.ErrorCodeValidation, "provider %q does not support batch processing", name)
	}
	return bc, nil
}

// Usage exposes the router's usage tracker for status reporting.
func (r *Router) Usage() *UsageTracker { return r.usage }
