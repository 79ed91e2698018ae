package openai

import (
	"encoding/json"
	"strings"
	"testing"

	"rlm/internal/llm"
)

func TestAdaptMessages(t *testing.T) {
	msgs := []llm.Message{
		llm.System("You are concise."),
		llm.User("hello"),
		llm.Assistant("hi there"),
	}
	out := AdaptMessages(msgs)
	if len(out) != len(msgs) {
		t.Fatalf("expected %d messages, got %d", len(msgs), len(out))
	}

	js0, _ := json.Marshal(out[0])
	if !strings.Contains(string(js0), "You are concise.") {
		t.Fatalf("expected system content in %s", string(js0))
	}
	js1, _ := json.Marshal(out[1])
	if !strings.Contains(string(js1), "hello") {
		t.Fatalf("expected user content in %s", string(js1))
	}
	js2, _ := json.Marshal(out[2])
	if !strings.Contains(string(js2), "hi there") {
		t.Fatalf("expected assistant content in %s", string(js2))
	}
}
