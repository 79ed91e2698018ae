package rlm

import (
	"time"

	"github.com/google/uuid"

	"rlm/internal/interpreter"
)

// CodeBlock records one executed fenced block within an iteration.
type CodeBlock struct {
	Source     string
	Result     interpreter.ReplResult
	RetryCount int
}

// Iteration records everything observed during one pass through the loop.
type Iteration struct {
	Index          int
	RawResponse    string
	Code           *CodeBlock
	DetectedAnswer string
	AnswerFound    bool
	Elapsed        time.Duration
}

// Completion is the result of one root LM request driven through the
// interpreter loop (SPEC_FULL.md §3).
type Completion struct {
	Prompt        string
	Response      string
	Iterations    []Iteration
	Usage         Usage
	Elapsed       time.Duration
	CorrelationID uuid.UUID
}

// Usage mirrors llm.Usage so rlm's public surface doesn't force callers to
// import the llm package just to read token counts off a Completion.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

func (u *Usage) add(input, output int64) {
	u.InputTokens += input
	u.OutputTokens += output
	u.TotalTokens += input + output
}
