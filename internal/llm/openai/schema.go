package openai

import (
	sdk "github.com/openai/openai-go/v2"

	"rlm/internal/llm"
)

// AdaptMessages converts the portable llm.Message history into OpenAI SDK
// message params. RLM conversations never carry tool calls, so only the
// three message roles need to round-trip.
func AdaptMessages(msgs []llm.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case llm.RoleUser:
			out = append(out, sdk.UserMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Content))
		}
	}
	return out
}
