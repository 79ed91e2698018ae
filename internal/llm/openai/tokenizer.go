package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"rlm/internal/llm"
	"rlm/internal/observability"
)

// ResponsesTokenizer implements llm.Tokenizer using the OpenAI Responses API
// /v1/responses/input_tokens preflight endpoint for accurate token counting,
// as an alternative to the heuristic chars/4 estimate in llm.EstimateTokens.
type ResponsesTokenizer struct {
	client *Client
	model  string
}

// NewResponsesTokenizer creates a tokenizer bound to a specific model.
func NewResponsesTokenizer(client *Client, model string) *ResponsesTokenizer {
	return &ResponsesTokenizer{client: client, model: model}
}

type inputTokensRequest struct {
	Model        string `json:"model"`
	Input        []any  `json:"input"`
	Instructions string `json:"instructions,omitempty"`
}

type inputTokensResponse struct {
	TotalTokens int `json:"total_tokens"`
}

// CountTokens counts tokens for a single text string.
func (t *ResponsesTokenizer) CountTokens(ctx context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	return t.CountMessagesTokens(ctx, []llm.Message{llm.User(text)})
}

// CountMessagesTokens counts tokens for a conversation via the
// /v1/responses/input_tokens endpoint.
func (t *ResponsesTokenizer) CountMessagesTokens(ctx context.Context, msgs []llm.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	log := observability.LoggerWithTrace(ctx)
	input, instructions := t.buildInputItems(msgs)

	req := inputTokensRequest{Model: t.model, Input: input}
	if strings.TrimSpace(instructions) != "" {
		req.Instructions = instructions
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal input_tokens request: %w", err)
	}

	baseURL := strings.TrimSuffix(strings.TrimSpace(t.client.baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	url := baseURL + "/responses/input_tokens"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create input_tokens request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.client.apiKey)

	resp, err := t.client.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("input_tokens request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read input_tokens response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("input_tokens_api_error")
		return 0, fmt.Errorf("input_tokens returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result inputTokensResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, fmt.Errorf("unmarshal input_tokens response: %w", err)
	}

	log.Debug().Int("total_tokens", result.TotalTokens).Int("message_count", len(msgs)).Msg("input_tokens_counted")
	return result.TotalTokens, nil
}

// buildInputItems converts an RLM message history to the Responses API input
// format. System messages collapse into the top-level instructions field.
func (t *ResponsesTokenizer) buildInputItems(msgs []llm.Message) ([]any, string) {
	items := make([]any, 0, len(msgs))
	var instructions string

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			instructions = m.Content
		case llm.RoleUser:
			items = append(items, map[string]any{
				"type": "message",
				"role": "user",
				"content": []map[string]any{
					{"type": "input_text", "text": m.Content},
				},
			})
		case llm.RoleAssistant:
			items = append(items, map[string]any{
				"type":   "message",
				"role":   "assistant",
				"status": "completed",
				"content": []map[string]any{
					{"type": "output_text", "text": m.Content},
				},
			})
		}
	}

	return items, instructions
}

var _ llm.Tokenizer = (*ResponsesTokenizer)(nil)
