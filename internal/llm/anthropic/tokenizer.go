package anthropic

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"rlm/internal/llm"
	"rlm/internal/observability"
)

// MessagesTokenizer implements llm.Tokenizer using the Anthropic Messages API
// /v1/messages/count_tokens endpoint for accurate preflight token counting.
type MessagesTokenizer struct {
	sdk   anthropic.Client
	model string
}

// NewMessagesTokenizer creates a tokenizer bound to a specific model.
func NewMessagesTokenizer(sdk anthropic.Client, model string) *MessagesTokenizer {
	return &MessagesTokenizer{sdk: sdk, model: model}
}

// CountTokens counts tokens for a single text string.
func (t *MessagesTokenizer) CountTokens(ctx context.Context, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	return t.CountMessagesTokens(ctx, []llm.Message{llm.User(text)})
}

// CountMessagesTokens counts tokens for a conversation via the
// /v1/messages/count_tokens endpoint.
func (t *MessagesTokenizer) CountMessagesTokens(ctx context.Context, msgs []llm.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	log := observability.LoggerWithTrace(ctx)
	apiMsgs, system := t.buildMessageParams(msgs)

	params := anthropic.MessageCountTokensParams{
		Messages: apiMsgs,
		Model:    anthropic.Model(t.model),
	}
	if strings.TrimSpace(system) != "" {
		params.System = anthropic.MessageCountTokensParamsSystemUnion{OfString: anthropic.String(system)}
	}

	result, err := t.sdk.Messages.CountTokens(ctx, params)
	if err != nil {
		log.Warn().Err(err).Str("model", t.model).Int("messages", len(msgs)).Msg("anthropic_count_tokens_error")
		return 0, err
	}

	log.Debug().Int64("input_tokens", result.InputTokens).Int("message_count", len(msgs)).Msg("anthropic_count_tokens_ok")
	return int(result.InputTokens), nil
}

// buildMessageParams converts an RLM message history into Anthropic API
// message params. System messages collapse into the top-level system field.
func (t *MessagesTokenizer) buildMessageParams(msgs []llm.Message) ([]anthropic.MessageParam, string) {
	params := make([]anthropic.MessageParam, 0, len(msgs))
	var system string

	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			system = m.Content
		case llm.RoleUser:
			if strings.TrimSpace(m.Content) != "" {
				params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case llm.RoleAssistant:
			if strings.TrimSpace(m.Content) != "" {
				params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}

	return params, system
}

var _ llm.Tokenizer = (*MessagesTokenizer)(nil)
