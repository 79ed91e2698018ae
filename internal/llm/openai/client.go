// Package openai adapts the real openai-go/v2 SDK to the rlm/internal/llm
// Provider surface, instrumented the way the teacher's client does: a
// tracing span per call, redacted prompt/response debug logging, and token
// accounting pushed through the shared llm observability helpers.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"

	"rlm/internal/llm"
	"rlm/internal/observability"
)

var errNoChoices = errors.New("openai: no choices in chat completion response")

// Client implements llm.Provider against the OpenAI chat completions API,
// or any OpenAI-compatible self-hosted server reachable at BaseURL.
type Client struct {
	sdk        sdk.Client
	model      string
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// New constructs an OpenAI provider. model is the default used when a call's
// ChatOptions.Model is empty. baseURL, when non-empty, overrides the default
// OpenAI endpoint (self-hosted gateways, proxies).
func New(apiKey, model, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(nil)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		sdk:        sdk.NewClient(opts...),
		model:      model,
		baseURL:    baseURL,
		httpClient: httpClient,
		apiKey:     apiKey,
	}
}

func (c *Client) Chat(ctx context.Context, history []llm.Message, opts llm.ChatOptions) (llm.Message, llm.Usage, error) {
	model := opts.Model
	if strings.TrimSpace(model) == "" {
		model = c.model
	}

	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(model),
		Messages:    AdaptMessages(history),
		Temperature: param.NewOpt(opts.Temperature),
	}
	if opts.MaxOutputTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(opts.MaxOutputTokens))
	}

	ctx, span := llm.StartRequestSpan(ctx, "OpenAI Chat", model, 0, len(history))
	defer span.End()
	llm.LogRedactedPrompt(ctx, history)

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", model).Dur("duration", dur).Msg("openai_chat_completion_error")
		span.RecordError(err)
		return llm.Message{}, llm.Usage{}, err
	}
	if len(comp.Choices) == 0 {
		return llm.Message{}, llm.Usage{}, errNoChoices
	}

	llm.LogRedactedResponse(ctx, comp.Choices)
	usage := llm.NewUsage(comp.Usage.PromptTokens, comp.Usage.CompletionTokens)
	llm.RecordTokenAttributes(span, int(usage.InputTokens), int(usage.OutputTokens), int(usage.TotalTokens))
	llm.RecordTokenMetrics(model, int(usage.InputTokens), int(usage.OutputTokens))

	log.Debug().Str("model", model).Dur("duration", dur).
		Int64("prompt_tokens", usage.InputTokens).
		Int64("completion_tokens", usage.OutputTokens).
		Msg("openai_chat_completion_ok")

	return llm.Assistant(comp.Choices[0].Message.Content), usage, nil
}

var _ llm.Provider = (*Client)(nil)
