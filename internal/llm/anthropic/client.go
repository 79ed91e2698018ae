// Package anthropic adapts the real anthropic-sdk-go SDK to the
// rlm/internal/llm Provider surface, following the same instrumentation
// pattern as the OpenAI and Google adapters: a tracing span per call,
// redacted prompt/response debug logging, and token accounting through the
// shared llm observability helpers.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"rlm/internal/llm"
	"rlm/internal/observability"
)

const defaultMaxTokens int64 = 4096

// Client implements llm.Provider against the Anthropic Messages API.
type Client struct {
	sdk       anthropic.Client
	model     string
	maxTokens int64
}

// New constructs an Anthropic provider. model is the default used when a
// call's ChatOptions.Model is empty.
func New(apiKey, model, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(nil)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	if strings.TrimSpace(model) == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}

	return &Client{
		sdk:       anthropic.NewClient(opts...),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

func (c *Client) Chat(ctx context.Context, history []llm.Message, opts llm.ChatOptions) (llm.Message, llm.Usage, error) {
	model := opts.Model
	if strings.TrimSpace(model) == "" {
		model = c.model
	}

	sys, converted, err := adaptMessages(history)
	if err != nil {
		return llm.Message{}, llm.Usage{}, err
	}

	maxTokens := c.maxTokens
	if opts.MaxOutputTokens > 0 {
		maxTokens = int64(opts.MaxOutputTokens)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    converted,
		System:      sys,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(opts.Temperature),
	}

	ctx, span := llm.StartRequestSpan(ctx, "Anthropic Chat", model, 0, len(history))
	defer span.End()
	llm.LogRedactedPrompt(ctx, history)
	log := observability.LoggerWithTrace(ctx)

	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("anthropic_chat_error")
		return llm.Message{}, llm.Usage{}, err
	}

	llm.LogRedactedResponse(ctx, resp)

	out := messageFromResponse(resp)
	usage := llm.NewUsage(resp.Usage.InputTokens+resp.Usage.CacheCreationInputTokens+resp.Usage.CacheReadInputTokens, resp.Usage.OutputTokens)
	llm.RecordTokenAttributes(span, int(usage.InputTokens), int(usage.OutputTokens), int(usage.TotalTokens))
	llm.RecordTokenMetrics(model, int(usage.InputTokens), int(usage.OutputTokens))

	log.Debug().Str("model", model).Dur("duration", dur).
		Int64("prompt_tokens", usage.InputTokens).
		Int64("completion_tokens", usage.OutputTokens).
		Msg("anthropic_chat_ok")

	return out, usage, nil
}

func adaptMessages(msgs []llm.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam, error) {
	if len(msgs) == 0 {
		return nil, nil, fmt.Errorf("messages required")
	}
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			}
		case llm.RoleUser:
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case llm.RoleAssistant:
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		default:
			return nil, nil, fmt.Errorf("unsupported role for anthropic provider: %s", m.Role)
		}
	}
	return system, out, nil
}

func messageFromResponse(resp *anthropic.Message) llm.Message {
	if resp == nil {
		return llm.Message{}
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return llm.Assistant(sb.String())
}

var _ llm.Provider = (*Client)(nil)
