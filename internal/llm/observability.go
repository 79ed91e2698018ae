package llm

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"rlm/internal/observability"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	mu                   sync.RWMutex
	enablePayloadLogging = false
	truncateBytes        = 0 // 0 means no truncation
)

var (
	tokenOnce         sync.Once
	promptCounter     otelmetric.Int64Counter
	completionCounter otelmetric.Int64Counter
	totalsMu          sync.RWMutex
	modelTotals       = map[string]struct{ Prompt, Completion int64 }{}
)

// ensureTokenInstruments lazily creates the token counters from the global
// OTel meter provider on first use. telemetry.Setup installs only a tracer
// provider, not a meter provider.
func ensureTokenInstruments() {
	tokenOnce.Do(func() {
		m := otel.Meter("internal/llm")
		promptCounter, _ = m.Int64Counter("llm.prompt_tokens", otelmetric.WithDescription("Cumulative prompt tokens by model"))
		completionCounter, _ = m.Int64Counter("llm.completion_tokens", otelmetric.WithDescription("Cumulative completion tokens by model"))
	})
}

// RecordTokenMetrics records token usage for a model, exporting via OTel
// counters and updating the in-process cumulative totals returned by
// TokenTotalsSnapshot.
func RecordTokenMetrics(model string, promptTokens, completionTokens int) {
	if model == "" || (promptTokens == 0 && completionTokens == 0) {
		return
	}
	ensureTokenInstruments()
	ctx := context.Background()
	if promptCounter != nil && promptTokens > 0 {
		promptCounter.Add(ctx, int64(promptTokens), otelmetric.WithAttributes(attribute.String("llm.model", model)))
	}
	if completionCounter != nil && completionTokens > 0 {
		completionCounter.Add(ctx, int64(completionTokens), otelmetric.WithAttributes(attribute.String("llm.model", model)))
	}
	totalsMu.Lock()
	cur := modelTotals[model]
	cur.Prompt += int64(promptTokens)
	cur.Completion += int64(completionTokens)
	modelTotals[model] = cur
	totalsMu.Unlock()
}

// TokenTotal is a cumulative token count for one model since process start.
type TokenTotal struct {
	Model      string `json:"model"`
	Prompt     int64  `json:"prompt"`
	Completion int64  `json:"completion"`
	Total      int64  `json:"total"`
}

// TokenTotalsSnapshot returns a snapshot of cumulative token usage recorded
// since process start, sorted by total tokens (highest first) with ties
// ordered by model name.
func TokenTotalsSnapshot() []TokenTotal {
	totalsMu.RLock()
	defer totalsMu.RUnlock()
	out := make([]TokenTotal, 0, len(modelTotals))
	for model, v := range modelTotals {
		out = append(out, TokenTotal{Model: model, Prompt: v.Prompt, Completion: v.Completion, Total: v.Prompt + v.Completion})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total == out[j].Total {
			return out[i].Model < out[j].Model
		}
		return out[i].Total > out[j].Total
	})
	return out
}

// ConfigureLogging sets global behavior for prompt/response logging. Call
// once at startup from the values resolved by config.Load.
func ConfigureLogging(enable bool, truncate int) {
	mu.Lock()
	defer mu.Unlock()
	enablePayloadLogging = enable
	truncateBytes = truncate
}

// StartRequestSpan starts a tracer span for an LM request and sets common attributes.
func StartRequestSpan(ctx context.Context, operation string, model string, tools int, messages int) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("internal/llm").Start(ctx, operation)
	span.SetAttributes(attribute.String("llm.model", model), attribute.Int("llm.tools", tools), attribute.Int("llm.messages", messages))
	return ctx, span
}

func shouldLog() (bool, int) {
	mu.RLock()
	defer mu.RUnlock()
	return enablePayloadLogging, truncateBytes
}

// LogRedactedPrompt logs a redacted copy of the outgoing messages at debug
// level. No-op unless payload logging was enabled via ConfigureLogging.
func LogRedactedPrompt(ctx context.Context, msgs []Message) {
	ok, t := shouldLog()
	if !ok {
		return
	}
	log := observability.LoggerWithTrace(ctx)
	b, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	logRedactedPayload(log, "prompt", "llm_request", b, t)
}

// LogRedactedResponse logs a redacted copy of the response payload at debug
// level. No-op unless payload logging was enabled via ConfigureLogging.
func LogRedactedResponse(ctx context.Context, resp any) {
	ok, t := shouldLog()
	if !ok {
		return
	}
	log := observability.LoggerWithTrace(ctx)
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	logRedactedPayload(log, "response", "llm_response", b, t)
}

func logRedactedPayload(log *zerolog.Logger, field, msg string, raw []byte, truncateAt int) {
	red := observability.RedactJSON(raw)
	if truncateAt > 0 && len(red) > truncateAt {
		previewObj := map[string]any{"truncated": true, "preview": string(red[:truncateAt])}
		if pb, err := json.Marshal(previewObj); err == nil {
			red = pb
		}
	}
	tmp := log.With().RawJSON(field, red).Logger()
	tmp.Debug().Msg(msg)
}

// RecordTokenAttributes sets token count attributes on the provided span.
// Per-model metric aggregation happens in RecordTokenMetrics, called
// separately by adapters that know the model string at the call site.
func RecordTokenAttributes(span trace.Span, promptTokens, completionTokens, totalTokens int) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", promptTokens),
		attribute.Int("llm.completion_tokens", completionTokens),
		attribute.Int("llm.total_tokens", totalTokens),
	)
}
