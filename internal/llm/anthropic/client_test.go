package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"rlm/internal/llm"
)

func minimalUsage() sdk.Usage {
	return sdk.Usage{InputTokens: 5, OutputTokens: 2}
}

func TestChatReturnsText(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		defer r.Body.Close()
		w.Header().Set("Content-Type", "application/json")
		resp := sdk.Message{
			ID:         "msg_1",
			Type:       constant.Message("message"),
			Role:       constant.Assistant("assistant"),
			Model:      sdk.ModelClaude3_7SonnetLatest,
			StopReason: sdk.StopReasonEndTurn,
			Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "hello"}},
			Usage:      minimalUsage(),
		}
		b, _ := json.Marshal(resp)
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	client := New("k", "m", srv.URL, srv.Client())
	msg, usage, err := client.Chat(context.Background(), []llm.Message{llm.User("hi")}, llm.ChatOptions{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if msg.Content != "hello" {
		t.Fatalf("unexpected content %q", msg.Content)
	}
	if usage.InputTokens != 5 || usage.OutputTokens != 2 || usage.TotalTokens != 7 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if gotPath != "/v1/messages" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestChat_SendsSystemPromptSeparately(t *testing.T) {
	var reqBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		w.Header().Set("Content-Type", "application/json")
		resp := sdk.Message{
			ID:         "msg_2",
			Type:       constant.Message("message"),
			Role:       constant.Assistant("assistant"),
			Model:      sdk.ModelClaude3_7SonnetLatest,
			StopReason: sdk.StopReasonEndTurn,
			Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "ok"}},
			Usage:      minimalUsage(),
		}
		b, _ := json.Marshal(resp)
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	client := New("k", "m", srv.URL, srv.Client())
	_, _, err := client.Chat(context.Background(), []llm.Message{
		llm.System("be terse"),
		llm.User("hi"),
	}, llm.ChatOptions{})
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}

	sysAny, ok := reqBody["system"]
	if !ok {
		t.Fatalf("expected system field in request, got %#v", reqBody)
	}
	sysList, ok := sysAny.([]any)
	if !ok || len(sysList) == 0 {
		t.Fatalf("expected system blocks array, got %#v", sysAny)
	}
}

func TestAdaptMessages_RejectsUnsupportedRole(t *testing.T) {
	_, _, err := adaptMessages([]llm.Message{{Role: "tool", Content: "x"}})
	if err == nil {
		t.Fatalf("expected error for unsupported role")
	}
}

func TestAdaptMessages_CollapsesSystemSeparately(t *testing.T) {
	sys, converted, err := adaptMessages([]llm.Message{
		llm.System("s1"),
		llm.User("hi"),
		llm.Assistant("hello"),
	})
	if err != nil {
		t.Fatalf("adaptMessages error: %v", err)
	}
	if len(sys) != 1 || sys[0].Text != "s1" {
		t.Fatalf("unexpected system blocks: %+v", sys)
	}
	if len(converted) != 2 {
		t.Fatalf("expected 2 converted messages, got %d", len(converted))
	}
}
