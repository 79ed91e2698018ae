// Package google adapts the google.golang.org/genai SDK to the
// rlm/internal/llm Provider surface, following the same instrumentation
// pattern as the OpenAI and Anthropic adapters: a tracing span per call,
// redacted prompt/response debug logging, and token accounting through the
// shared llm observability helpers.
package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"rlm/internal/llm"
	"rlm/internal/observability"
)

// Client implements llm.Provider against the Gemini GenerateContent API.
type Client struct {
	client  *genai.Client
	model   string
	httpOpt genai.HTTPOptions
}

// New constructs a Google provider. model is the default used when a call's
// ChatOptions.Model is empty. baseURL, when non-empty, overrides the default
// Gemini endpoint (self-hosted gateways, proxies).
func New(apiKey, model, baseURL string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(nil)
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = "gemini-1.5-flash"
	}

	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSpace(baseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      strings.TrimSpace(apiKey),
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}

	return &Client{client: client, model: model, httpOpt: httpOpts}, nil
}

func (c *Client) Chat(ctx context.Context, history []llm.Message, opts llm.ChatOptions) (llm.Message, llm.Usage, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = c.model
	}

	ctx, span := llm.StartRequestSpan(ctx, "Google Chat", model, 0, len(history))
	defer span.End()
	llm.LogRedactedPrompt(ctx, history)
	log := observability.LoggerWithTrace(ctx)

	contents, err := toContents(history)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Msg("google_chat_to_contents_error")
		return llm.Message{}, llm.Usage{}, err
	}

	temperature := float32(opts.Temperature)
	cfg := &genai.GenerateContentConfig{HTTPOptions: &c.httpOpt, Temperature: &temperature}
	if opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("google_chat_error")
		return llm.Message{}, llm.Usage{}, err
	}

	msg, err := messageFromResponse(resp)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Dur("duration", dur).Msg("google_chat_response_parse_error")
		return llm.Message{}, llm.Usage{}, err
	}

	llm.LogRedactedResponse(ctx, resp)

	var promptTokens, completionTokens int64
	if resp.UsageMetadata != nil {
		promptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	usage := llm.NewUsage(promptTokens, completionTokens)
	llm.RecordTokenAttributes(span, int(usage.InputTokens), int(usage.OutputTokens), int(usage.TotalTokens))
	llm.RecordTokenMetrics(model, int(usage.InputTokens), int(usage.OutputTokens))

	log.Debug().Str("model", model).Dur("duration", dur).
		Int64("prompt_tokens", usage.InputTokens).
		Int64("completion_tokens", usage.OutputTokens).
		Msg("google_chat_ok")

	return msg, usage, nil
}

func toContents(msgs []llm.Message) ([]*genai.Content, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("messages required")
	}

	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role string
		text := m.Content
		switch m.Role {
		case llm.RoleSystem:
			role = genai.RoleUser
			text = "[system] " + text
		case llm.RoleUser:
			role = genai.RoleUser
		case llm.RoleAssistant:
			role = genai.RoleModel
		default:
			return nil, fmt.Errorf("unsupported role for google provider: %s", m.Role)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	return contents, nil
}

func messageFromResponse(resp *genai.GenerateContentResponse) (llm.Message, error) {
	if resp == nil {
		return llm.Message{}, fmt.Errorf("nil response from google provider")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return llm.Message{}, fmt.Errorf("request blocked by google: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return llm.Message{}, fmt.Errorf("no candidates in google response")
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety:
		return llm.Message{}, fmt.Errorf("response blocked by safety filters")
	case genai.FinishReasonRecitation:
		return llm.Message{}, fmt.Errorf("response blocked due to recitation")
	}

	if candidate.Content == nil {
		return llm.Assistant(""), nil
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return llm.Assistant(sb.String()), nil
}

var _ llm.Provider = (*Client)(nil)
