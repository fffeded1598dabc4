package llm

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
)

// openAIProvider wraps the OpenAI chat-completions API and its batch
// endpoint (file upload + /v1/chat/completions batch job).
type openAIProvider struct {
	client *openai.Client
	name   string
}

// newOpenAIProvider builds a provider bound to the public OpenAI API.
func newOpenAIProvider(apiKey string) *openAIProvider {
	return &openAIProvider{client: openai.NewClient(apiKey), name: "openai"}
}

func (p *openAIProvider) Name() string { return p.name }

// reasoningModel reports whether model belongs to a reasoning family that
// bills "thinking" tokens against the same cap as visible output — passing
// a small output cap to these starves the visible answer, so the cap is
// omitted entirely for them.
func reasoningModel(model string) bool {
	for _, prefix := range []string{"gpt-5", "o3", "o4"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (p *openAIProvider) Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, domain.TokenUsage, error) {
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
	if opts.MaxTokens > 0 && !reasoningModel(model) {
		req.MaxCompletionTokens = opts.MaxTokens
	}
	// CacheSystemPrompt is ignored on the wire: OpenAI auto-caches prompts at
	// or above its internal token threshold; accounting still reads the
	// cached-token count back from the response.

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", domain.TokenUsage{}, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", domain.TokenUsage{}, perr.SummarizeErrorf(perr.ErrorCodeUnavailable, "openai returned no choices")
	}

	cacheRead := 0
	if resp.Usage.PromptTokensDetails != nil {
		cacheRead = resp.Usage.PromptTokensDetails.CachedTokens
	}
	usage := domain.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CallCount:        1,
		CacheReadTokens:  cacheRead,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func (p *openAIProvider) SubmitBatch(ctx context.Context, requests []domain.BatchChatRequest) (string, error) {
	lines := make([]openai.BatchLineItem, 0, len(requests))
	for _, r := range requests {
		body := openai.ChatCompletionRequest{
			Model: r.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: r.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: r.UserContent},
			},
		}
		if r.JSONMode {
			body.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		}
		if r.MaxTokens > 0 && !reasoningModel(r.Model) {
			body.MaxCompletionTokens = r.MaxTokens
		}
		lines = append(lines, openai.BatchChatCompletionRequest{
			CustomID: r.CustomID,
			Body:     body,
			Method:   "POST",
			URL:      openai.BatchEndpointChatCompletions,
		})
	}

	batch, err := p.client.CreateBatchWithUploadFile(ctx, openai.CreateBatchWithUploadFileRequest{
		Endpoint:         openai.BatchEndpointChatCompletions,
		CompletionWindow: "24h",
		UploadBatchFileRequest: openai.UploadBatchFileRequest{
			FileName: "batch.jsonl",
			Lines:    lines,
		},
	})
	if err != nil {
		return "", perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "submit openai batch")
	}
	return batch.ID, nil
}

var openaiBatchStatus = map[string]domain.BatchStatus{
	"validating":  domain.BatchStatusInProgress,
	"in_progress": domain.BatchStatusInProgress,
	"finalizing":  domain.BatchStatusInProgress,
	"completed":   domain.BatchStatusCompleted,
	"failed":      domain.BatchStatusFailed,
	"cancelled":   domain.BatchStatusFailed,
	"cancelling":  domain.BatchStatusFailed,
	"expired":     domain.BatchStatusExpired,
}

func (p *openAIProvider) GetBatchStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	batch, err := p.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return "", perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "retrieve openai batch %s", batchID)
	}
	if status, ok := openaiBatchStatus[string(batch.Status)]; ok {
		return status, nil
	}
	return domain.BatchStatusInProgress, nil
}

// batchResultLine is the JSONL shape of one response line in an OpenAI
// batch output file.
type batchResultLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int `json:"status_code"`
		Body       struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			Usage struct {
				PromptTokens        int `json:"prompt_tokens"`
				CompletionTokens    int `json:"completion_tokens"`
				TotalTokens         int `json:"total_tokens"`
				PromptTokensDetails struct {
					CachedTokens int `json:"cached_tokens"`
				} `json:"prompt_tokens_details"`
			} `json:"usage"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"body"`
	} `json:"response"`
}

func (p *openAIProvider) GetBatchResults(ctx context.Context, batchID string) ([]domain.BatchChatResult, error) {
	batch, err := p.client.RetrieveBatch(ctx, batchID)
	if err != nil {
		return nil, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "retrieve openai batch %s", batchID)
	}
	if batch.OutputFileID == nil {
		return nil, perr.SummarizeErrorf(perr.ErrorCodeUnavailable, "openai batch %s has no output file", batchID)
	}

	raw, err := p.client.GetFileContent(ctx, *batch.OutputFileID)
	if err != nil {
		return nil, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "fetch openai batch output file")
	}
	defer raw.Close()
	content, err := io.ReadAll(raw)
	if err != nil {
		return nil, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "read openai batch output file")
	}

	var results []domain.BatchChatResult
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry batchResultLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			results = append(results, domain.BatchChatResult{Err: perr.SummarizeWrapf(err, perr.ErrorCodeJSON, "decode batch result line")})
			continue
		}
		if entry.Response == nil || entry.Response.StatusCode != 200 {
			msg := "unknown batch error"
			if entry.Response != nil && entry.Response.Body.Error != nil {
				msg = entry.Response.Body.Error.Message
			}
			results = append(results, domain.BatchChatResult{CustomID: entry.CustomID, Err: perr.SummarizeErrorf(perr.ErrorCodeUnavailable, "%s", msg)})
			continue
		}
		body := entry.Response.Body
		text := ""
		if len(body.Choices) > 0 {
			text = body.Choices[0].Message.Content
		}
		results = append(results, domain.BatchChatResult{
			CustomID: entry.CustomID,
			Content:  text,
			Usage: domain.TokenUsage{
				PromptTokens:     body.Usage.PromptTokens,
				CompletionTokens: body.Usage.CompletionTokens,
				TotalTokens:      body.Usage.TotalTokens,
				CallCount:        1,
				CacheReadTokens:  body.Usage.PromptTokensDetails.CachedTokens,
			},
		})
	}
	return results, nil
}
