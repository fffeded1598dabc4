package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
)

// genericProvider speaks the OpenAI wire protocol against a configurable
// base URL, for self-hosted or OpenAI-compatible gateways. It advertises no
// batch capability: the batch endpoint shape varies too much across
// self-hosted gateways to support generically.
type genericProvider struct {
	client *openai.Client
	name   string
}

func newGenericProvider(apiKey, baseURL string) *genericProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &genericProvider{client: openai.NewClientWithConfig(cfg), name: "generic"}
}

func (p *genericProvider) Name() string { return p.name }

func (p *genericProvider) Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, domain.TokenUsage, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = opts.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", domain.TokenUsage{}, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "generic provider chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", domain.TokenUsage{}, perr.SummarizeErrorf(perr.ErrorCodeUnavailable, "generic provider returned no choices")
	}

	usage := domain.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CallCount:        1,
	}
	return resp.Choices[0].Message.Content, usage, nil
}
