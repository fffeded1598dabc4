package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"workrecap/internal/domain"
	perr "workrecap/internal/platform/errors"
)

// geminiProvider talks to the Gemini generateContent REST endpoint directly
// over net/http. No Gemini Go SDK is available anywhere in the retrieved
// reference pack, so this follows the same raw-HTTP shape the host client
// already uses rather than inventing a dependency.
type geminiProvider struct {
	http    *http.Client
	apiKey  string
	baseURL string
	name    string
}

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

func newGeminiProvider(apiKey, baseURL string) *geminiProvider {
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &geminiProvider{
		http:    &http.Client{Timeout: 60 * time.Second},
		apiKey:  apiKey,
		baseURL: baseURL,
		name:    "gemini",
	}
}

func (p *geminiProvider) Name() string { return p.name }

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"response_mime_type,omitempty"`
	MaxOutputTokens  int    `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
	CachedContentTokens  int `json:"cachedContentTokenCount"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

func (p *geminiProvider) Chat(ctx context.Context, model, systemPrompt, userContent string, opts ChatOptions) (string, domain.TokenUsage, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: userContent}}}},
	}
	if systemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}
	if opts.JSONMode {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if opts.MaxTokens > 0 {
		body.GenerationConfig.MaxOutputTokens = opts.MaxTokens
	}
	// cache_system_prompt is ignored on the wire: Gemini auto-caches
	// eligible prompts; accounting reads cachedContentTokenCount back.

	payload, err := json.Marshal(body)
	if err != nil {
		return "", domain.TokenUsage{}, perr.SummarizeWrapf(err, perr.ErrorCodeJSON, "encode gemini request")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", domain.TokenUsage{}, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "build gemini request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", domain.TokenUsage{}, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "gemini chat completion")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", domain.TokenUsage{}, perr.SummarizeWrapf(err, perr.ErrorCodeUnavailable, "read gemini response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.TokenUsage{}, perr.SummarizeErrorf(perr.ErrorCodeUnavailable, "gemini returned status %d: %s", resp.StatusCode, string(data))
	}

	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", domain.TokenUsage{}, perr.SummarizeWrapf(err, perr.ErrorCodeJSON, "decode gemini response")
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", domain.TokenUsage{}, perr.SummarizeErrorf(perr.ErrorCodeUnavailable, "gemini returned no candidates")
	}

	usage := domain.TokenUsage{
		PromptTokens:     out.UsageMetadata.PromptTokenCount,
		CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      out.UsageMetadata.TotalTokenCount,
		CallCount:        1,
		CacheReadTokens:  out.UsageMetadata.CachedContentTokens,
	}
	return out.Candidates[0].Content.Parts[0].Text, usage, nil
}
