package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"rlm/internal/observability"
)

// HTTPCompatProvider talks to any OpenAI-compatible /chat/completions
// endpoint over raw HTTP, without depending on a provider SDK. It backs the
// "local" provider tag (self-hosted servers such as llama.cpp server, vLLM,
// Ollama's OpenAI-compatible surface) the same way the teacher's
// CallLLM/GetEndpointModels pair did, generalized into a Provider
// implementation instead of a single free function.
type HTTPCompatProvider struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// NewHTTPCompatProvider constructs a provider pointed at an OpenAI-compatible
// base URL (e.g. "http://localhost:8000/v1"). The endpoint must already
// include any version prefix the server expects.
func NewHTTPCompatProvider(endpoint, apiKey string, httpClient *http.Client) *HTTPCompatProvider {
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(nil)
	}
	return &HTTPCompatProvider{Endpoint: endpoint, APIKey: apiKey, HTTPClient: httpClient}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireLogprobs struct {
	TokenLogprobs []float64            `json:"token_logprobs,omitempty"`
	Tokens        []int                `json:"tokens,omitempty"`
	TopLogprobs   []map[string]float64 `json:"top_logprobs,omitempty"`
}

type wireRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireChoice struct {
	Index        int           `json:"index"`
	Message      wireMessage   `json:"message"`
	Logprobs     *wireLogprobs `json:"logprobs,omitempty"`
	FinishReason string        `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireErrorData struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
}

type wireErrorResponse struct {
	Error wireErrorData `json:"error"`
}

// Chat implements Provider over the raw HTTP /chat/completions surface.
func (p *HTTPCompatProvider) Chat(ctx context.Context, history []Message, opts ChatOptions) (Message, Usage, error) {
	ctx, span := StartRequestSpan(ctx, "HTTPCompat Chat", opts.Model, 0, len(history))
	defer span.End()
	LogRedactedPrompt(ctx, history)

	wireMsgs := make([]wireMessage, 0, len(history))
	for _, m := range history {
		wireMsgs = append(wireMsgs, wireMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody, err := json.Marshal(wireRequest{
		Model:       opts.Model,
		Messages:    wireMsgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxOutputTokens,
	})
	if err != nil {
		return Message{}, Usage{}, fmt.Errorf("marshal request: %w", err)
	}

	chatURL := strings.TrimSuffix(p.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, chatURL, bytes.NewReader(reqBody))
	if err != nil {
		return Message{}, Usage{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return Message{}, Usage{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Message{}, Usage{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp wireErrorResponse
		if jerr := json.Unmarshal(respBody, &errResp); jerr == nil && errResp.Error.Message != "" {
			return Message{}, Usage{}, fmt.Errorf("http-compat provider error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return Message{}, Usage{}, fmt.Errorf("http-compat provider error (status %d)", resp.StatusCode)
	}

	var completion wireResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return Message{}, Usage{}, fmt.Errorf("parse response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Message{}, Usage{}, fmt.Errorf("no choices in completion response")
	}

	LogRedactedResponse(ctx, completion.Choices)
	usage := NewUsage(completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	RecordTokenAttributes(span, int(usage.InputTokens), int(usage.OutputTokens), int(usage.TotalTokens))
	RecordTokenMetrics(opts.Model, int(usage.InputTokens), int(usage.OutputTokens))

	return Assistant(completion.Choices[0].Message.Content), usage, nil
}

// ListModels returns the model identifiers advertised by the /models endpoint
// of an OpenAI-compatible server. modelsURL is the full URL of that endpoint;
// it is not derived from Endpoint.
func (p *HTTPCompatProvider) ListModels(ctx context.Context, modelsURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp wireErrorResponse
		if jerr := json.Unmarshal(respBody, &errResp); jerr == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("http-compat provider error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("http-compat provider error (status %d)", resp.StatusCode)
	}

	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, fmt.Errorf("parse models response: %w", err)
	}
	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		models = append(models, m.ID)
	}
	return models, nil
}
