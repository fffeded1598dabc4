package llm

import (
	"context"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
)

// anthropicProvider wraps the Anthropic Messages API. Structured output is
// enforced by prefilling the assistant turn with "[" so the model must
// continue the JSON array; cache_system_prompt attaches an ephemeral
// cache-control marker to the system turn instead of relying on automatic
// caching.
type anthropicProvider struct {
	client *anthropic.Client
	name   string
}

func newAnthropicProvider(apiKey string) *anthropicProvider {
	return &anthropicProvider{client: anthropic.NewClient(apiKey), name: "anthropic"}
}

func (p *anthropicProvider) Name() string { return p.name }

func systemParts(systemPrompt string, cache bool) []anthropic.MessageSystemPart {
	part := anthropic.MessageSystemPart{Type: "text", Text: systemPrompt}
	if cache {
		part.CacheControl = &anthropic.MessageCacheControl{Type: anthropic.CacheControlTypeEphemeral}
	}
	return []anthropic.MessageSystemPart{part}
}

func (p *anthropicProvider) Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, domain.TokenUsage, error) {
	messages := []anthropic.Message{anthropic.NewUserTextMessage(userContent)}
	if opts.JSONMode {
		messages = append(messages, anthropic.NewAssistantTextMessage("["))
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	req := anthropic.MessagesRequest{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Messages:    messages,
		MultiSystem: systemParts(systemPrompt, opts.CacheSystemPrompt),
	}

	resp, err := p.client.CreateMessages(ctx, req)
	if err != nil {
		return "", domain.TokenUsage{}, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "anthropic chat completion")
	}

	text := resp.GetFirstContentText()
	if opts.JSONMode {
		text = "[" + text
	}

	usage := domain.TokenUsage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		CallCount:        1,
		CacheReadTokens:  resp.Usage.CacheReadInputTokens,
		CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
	}
	return text, usage, nil
}

func (p *anthropicProvider) SubmitBatch(ctx context.Context, requests []domain.BatchChatRequest) (string, error) {
	items := make([]anthropic.InnerRequests, 0, len(requests))
	for _, r := range requests {
		messages := []anthropic.Message{anthropic.NewUserTextMessage(r.UserContent)}
		if r.JSONMode {
			messages = append(messages, anthropic.NewAssistantTextMessage("["))
		}
		maxTokens := r.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 4096
		}
		items = append(items, anthropic.InnerRequests{
			CustomId: r.CustomID,
			Params: anthropic.MessagesRequest{
				Model:       anthropic.Model(r.Model),
				MaxTokens:   maxTokens,
				Messages:    messages,
				MultiSystem: systemParts(r.SystemPrompt, r.CacheSystemPrompt),
			},
		})
	}

	batch, err := p.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return "", perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "submit anthropic batch")
	}
	return string(batch.Id), nil
}

var anthropicBatchStatus = map[string]domain.BatchStatus{
	"in_progress": domain.BatchStatusInProgress,
	"canceling":   domain.BatchStatusFailed,
	"ended":       domain.BatchStatusCompleted,
	"expired":     domain.BatchStatusExpired,
}

func (p *anthropicProvider) GetBatchStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	batch, err := p.client.RetrieveBatch(ctx, anthropic.BatchId(batchID))
	if err != nil {
		return "", perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "retrieve anthropic batch %s", batchID)
	}
	if status, ok := anthropicBatchStatus[string(batch.ProcessingStatus)]; ok {
		return status, nil
	}
	return domain.BatchStatusInProgress, nil
}

func (p *anthropicProvider) GetBatchResults(ctx context.Context, batchID string) ([]domain.BatchChatResult, error) {
	resp, err := p.client.RetrieveBatchResults(ctx, anthropic.BatchId(batchID))
	if err != nil {
		return nil, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "list anthropic batch results %s", batchID)
	}

	entries := resp.Responses
	results := make([]domain.BatchChatResult, 0, len(entries))
	for _, entry := range entries {
		if entry.Result.Type != anthropic.ResultTypeSucceeded {
			results = append(results, domain.BatchChatResult{
				CustomID: entry.CustomId,
				Err:      perr.SummarizeErrorf(perr.ErrorCodeUnavailable, "anthropic batch entry %s: %s", entry.CustomId, entry.Result.Type),
			})
			continue
		}
		text := entry.Result.Result.GetFirstContentText()
		u := entry.Result.Result.Usage
		results = append(results, domain.BatchChatResult{
			CustomID: entry.CustomId,
			Content:  text,
			Usage: domain.TokenUsage{
				PromptTokens:     u.InputTokens,
				CompletionTokens: u.OutputTokens,
				TotalTokens:      u.InputTokens + u.OutputTokens,
				CallCount:        1,
				CacheReadTokens:  u.CacheReadInputTokens,
				CacheWriteTokens: u.CacheCreationInputTokens,
			},
		})
	}
	return results, nil
}
