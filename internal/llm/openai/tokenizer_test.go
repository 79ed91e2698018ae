package openai

import (
	"testing"

	"rlm/internal/llm"
)

func TestResponsesTokenizer_BuildInputItems(t *testing.T) {
	tokenizer := &ResponsesTokenizer{}
	items, instructions := tokenizer.buildInputItems([]llm.Message{
		llm.System("be concise"),
		llm.User("hello"),
		llm.Assistant("hi"),
	})

	if instructions != "be concise" {
		t.Fatalf("expected system content to collapse into instructions, got %q", instructions)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 non-system items, got %d: %+v", len(items), items)
	}

	first, ok := items[0].(map[string]any)
	if !ok || first["role"] != "user" {
		t.Fatalf("expected first item to be a user message, got %+v", items[0])
	}
	second, ok := items[1].(map[string]any)
	if !ok || second["role"] != "assistant" {
		t.Fatalf("expected second item to be an assistant message, got %+v", items[1])
	}
}
