package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"rlm/internal/llm"
)

func TestChatSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		defer r.Body.Close()
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]}}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := New("k", "test-model", srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	msg, usage, err := client.Chat(context.Background(), []llm.Message{
		llm.System("do"),
		llm.User("hi"),
	}, llm.ChatOptions{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if msg.Content != "hello" {
		t.Fatalf("expected hello, got %q", msg.Content)
	}
	if usage.InputTokens != 5 || usage.OutputTokens != 2 || usage.TotalTokens != 7 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if gotPath != "/v1beta/models/test-model:generateContent" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestChatModelFallsBackToDefault(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]}}]}`))
	}))
	t.Cleanup(srv.Close)

	client, err := New("k", "default-model", srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, _, err = client.Chat(context.Background(), []llm.Message{llm.User("hi")}, llm.ChatOptions{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if gotPath != "/v1beta/models/default-model:generateContent" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestChatBlockedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := New("k", "m", srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, _, err = client.Chat(context.Background(), []llm.Message{llm.User("hi")}, llm.ChatOptions{})
	if err == nil {
		t.Fatalf("expected error for blocked response")
	}
}
