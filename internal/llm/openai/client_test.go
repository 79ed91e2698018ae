package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rlm/internal/llm"
)

func TestChat_ServerReturnsChoice(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	cli := New("test", "m", srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, usage, err := cli.Chat(ctx, []llm.Message{llm.User("hi")}, llm.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Content != "hello" {
		t.Fatalf("expected hello, got %q", msg.Content)
	}
	if usage.InputTokens != 3 || usage.OutputTokens != 1 || usage.TotalTokens != 4 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestChat_NoChoicesReturnsError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	cli := New("test", "m", srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := cli.Chat(ctx, []llm.Message{llm.User("hi")}, llm.ChatOptions{})
	if err == nil {
		t.Fatalf("expected error for empty choices")
	}
}

func TestChat_ModelFallsBackToDefault(t *testing.T) {
	var gotModel string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if m, ok := payload["model"].(string); ok {
			gotModel = m
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	})
	srv := httptest.NewServer(h)
	defer srv.Close()

	cli := New("test", "default-model", srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := cli.Chat(ctx, []llm.Message{llm.User("hi")}, llm.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotModel != "default-model" {
		t.Fatalf("expected default-model to be used, got %q", gotModel)
	}
}
