package prompts

import "testing"

func TestBuildSystemPromptIncludesContextLength(t *testing.T) {
	p := BuildSystemPrompt(1234)
	if !contains(p, "1234 total characters") {
		t.Fatalf("expected context length in prompt, got: %s", p)
	}
}

func TestBuildSystemPromptStrategyHintBands(t *testing.T) {
	short := BuildSystemPrompt(500)
	if !contains(short, "single pass") {
		t.Fatalf("expected single-pass hint for short context, got: %s", short)
	}

	mid := BuildSystemPrompt(4000)
	if !contains(mid, "scan its start and end") {
		t.Fatalf("expected scan-then-full-pass hint for mid context, got: %s", mid)
	}

	long := BuildSystemPrompt(10000)
	if !contains(long, "3000-4000 characters") {
		t.Fatalf("expected chunking hint for long context, got: %s", long)
	}
}

func TestBuildInitialUserPrompt(t *testing.T) {
	p := BuildInitialUserPrompt()
	if !contains(p, "context") || !contains(p, "Your next action:") {
		t.Fatalf("unexpected initial prompt: %s", p)
	}
}

func TestBuildContinuePromptUrgencyBands(t *testing.T) {
	urgent := BuildContinuePrompt(17, 20)
	if !contains(urgent, "urgent") {
		t.Fatalf("expected urgent band near the end, got: %s", urgent)
	}

	pastHalf := BuildContinuePrompt(12, 20)
	if !contains(pastHalf, "halfway") {
		t.Fatalf("expected halfway band, got: %s", pastHalf)
	}

	early := BuildContinuePrompt(1, 20)
	if contains(early, "urgent") || contains(early, "halfway") {
		t.Fatalf("expected plain continuation prompt early on, got: %s", early)
	}
	if !contains(early, "FINAL(answer)") {
		t.Fatalf("expected base continuation wording, got: %s", early)
	}
}

func TestBuildFixPrompt(t *testing.T) {
	p := BuildFixPrompt()
	if !contains(p, "```repl```") || !contains(p, "```python```") {
		t.Fatalf("unexpected fix prompt: %s", p)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return substr == ""
}
