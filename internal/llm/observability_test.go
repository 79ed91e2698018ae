package llm

import "testing"

func resetTokenMetricsStateForTest() {
	totalsMu.Lock()
	modelTotals = map[string]struct{ Prompt, Completion int64 }{}
	totalsMu.Unlock()
}

func TestRecordTokenMetrics_AccumulatesPerModel(t *testing.T) {
	resetTokenMetricsStateForTest()
	defer resetTokenMetricsStateForTest()

	RecordTokenMetrics("gpt-5", 100, 50)
	RecordTokenMetrics("gpt-5", 20, 10)
	RecordTokenMetrics("claude-sonnet-4-5", 30, 30)

	totals := TokenTotalsSnapshot()
	if len(totals) != 2 {
		t.Fatalf("expected 2 models, got %d: %+v", len(totals), totals)
	}

	byModel := make(map[string]TokenTotal, len(totals))
	for _, tt := range totals {
		byModel[tt.Model] = tt
	}

	gpt5 := byModel["gpt-5"]
	if gpt5.Prompt != 120 || gpt5.Completion != 60 || gpt5.Total != 180 {
		t.Fatalf("unexpected gpt-5 totals: %+v", gpt5)
	}
	claude := byModel["claude-sonnet-4-5"]
	if claude.Total != 60 {
		t.Fatalf("unexpected claude totals: %+v", claude)
	}
}

func TestRecordTokenMetrics_IgnoresEmptyModel(t *testing.T) {
	resetTokenMetricsStateForTest()
	defer resetTokenMetricsStateForTest()

	RecordTokenMetrics("", 10, 10)
	if totals := TokenTotalsSnapshot(); len(totals) != 0 {
		t.Fatalf("expected no totals recorded for empty model, got %+v", totals)
	}
}

func TestConfigureLogging_TogglesPayloadLogging(t *testing.T) {
	ConfigureLogging(true, 256)
	if ok, trunc := shouldLog(); !ok || trunc != 256 {
		t.Fatalf("expected logging enabled with truncate=256, got ok=%v trunc=%d", ok, trunc)
	}
	ConfigureLogging(false, 0)
	if ok, _ := shouldLog(); ok {
		t.Fatalf("expected logging disabled after ConfigureLogging(false, 0)")
	}
}

func TestRecordTokenAttributes_NilSpanNoop(t *testing.T) {
	RecordTokenAttributes(nil, 1, 2, 3)
}
