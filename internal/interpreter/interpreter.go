// Package interpreter embeds go.starlark.net as the RLM orchestrator's
// sandboxed code environment: a Python-subset interpreter with a single
// mutable global namespace threaded through every call, the same way
// go.starlark.net's own REPL tool (go.starlark.net/repl) persists bindings
// across successive chunks of input.
package interpreter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// QueryFunc issues one stateless sub-LM call and returns its answer text. The
// callback sees only prompt — no namespace, no conversation history — per
// SPEC_FULL.md §4.1's llm_query contract.
type QueryFunc func(ctx context.Context, prompt string) (string, error)

// SubCall records one llm_query invocation made during a single Execute call.
type SubCall struct {
	Prompt   string
	Response string
}

// ReplResult is the outcome of one Execute call (SPEC_FULL.md §3).
type ReplResult struct {
	Stdout    string
	Stderr    string
	Namespace map[string]string
	Success   bool
	Error     string
	// LLMOutput holds str(answer) when llm_output(answer) was called during
	// this execution, nil otherwise. Success is always true when set.
	LLMOutput *string
	SubCalls  []SubCall
	Elapsed   time.Duration
}

// BindError reports an invalid name passed to Bind.
type BindError struct{ Name string }

func (e *BindError) Error() string { return fmt.Sprintf("interpreter: invalid bind name %q", e.Name) }

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Interpreter owns a persistent Starlark global namespace. A single
// completion uses one Interpreter; it is not safe for concurrent Execute
// calls (SPEC_FULL.md §5 — a completion is single-threaded internally).
type Interpreter struct {
	globals starlark.StringDict
	query   QueryFunc
}

// New constructs an Interpreter with llm_query and llm_output pre-declared in
// the namespace, ready for context to be Bind-ed before the first Execute.
func New(query QueryFunc) *Interpreter {
	it := &Interpreter{globals: starlark.StringDict{}, query: query}
	it.globals["llm_query"] = it.llmQueryBuiltin()
	it.globals["llm_output"] = it.llmOutputBuiltin()
	return it
}

// Bind installs name in the persistent namespace. Supported value types:
// string, int, int64, float64, bool, nil.
func (it *Interpreter) Bind(name string, value any) error {
	if !identRe.MatchString(name) {
		return &BindError{Name: name}
	}
	sv, err := toStarlarkValue(value)
	if err != nil {
		return err
	}
	it.globals[name] = sv
	return nil
}

func toStarlarkValue(value any) (starlark.Value, error) {
	switch v := value.(type) {
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case float64:
		return starlark.Float(v), nil
	case bool:
		return starlark.Bool(v), nil
	case nil:
		return starlark.None, nil
	default:
		return nil, fmt.Errorf("interpreter: unsupported bind value type %T", value)
	}
}

type outputSlot struct {
	set   bool
	value string
}

// Execute runs source against the persistent namespace. Side effects
// (variable assignments, printed output) are observable on subsequent
// Execute calls. Stdout/stderr are captured only for the duration of this
// call; the namespace is left in whatever state it reached, even on error.
func (it *Interpreter) Execute(ctx context.Context, source string) ReplResult {
	start := time.Now()

	var stdout strings.Builder
	slot := &outputSlot{}
	var subCalls []SubCall

	thread := &starlark.Thread{
		Name: "rlm-repl",
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteString("\n")
		},
	}
	thread.SetLocal(localCtx, ctx)
	thread.SetLocal(localOutput, slot)
	thread.SetLocal(localSubCalls, &subCalls)

	f, err := syntax.Parse("<repl>", source, 0)
	if err != nil {
		return ReplResult{
			Stdout:  stdout.String(),
			Success: false,
			Error:   err.Error(),
			Elapsed: time.Since(start),
		}
	}

	execErr := starlark.ExecREPLChunk(f, thread, it.globals)
	elapsed := time.Since(start)

	if execErr != nil {
		msg, stderr := errorDetails(execErr)
		return ReplResult{
			Stdout:    stdout.String(),
			Stderr:    stderr,
			Namespace: it.SnapshotStrings(),
			Success:   false,
			Error:     msg,
			SubCalls:  subCalls,
			Elapsed:   elapsed,
		}
	}

	res := ReplResult{
		Stdout:    stdout.String(),
		Namespace: it.SnapshotStrings(),
		Success:   true,
		SubCalls:  subCalls,
		Elapsed:   elapsed,
	}
	if slot.set {
		out := slot.value
		res.LLMOutput = &out
	}
	return res
}

// SnapshotStrings returns every currently-bound name whose value is a
// string, for the parser's variable-resolution step (SPEC_FULL.md §4.2).
func (it *Interpreter) SnapshotStrings() map[string]string {
	out := make(map[string]string, len(it.globals))
	for name, v := range it.globals {
		if s, ok := starlark.AsString(v); ok {
			out[name] = s
		}
	}
	return out
}

func errorDetails(err error) (msg, stderr string) {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return evalErr.Msg, evalErr.Backtrace()
	}
	return err.Error(), ""
}

// stringify applies Starlark's str() semantics: raw text for strings,
// Starlark repr for everything else (numbers, lists, dicts).
func stringify(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}

type contextKey string

const (
	localCtx      contextKey = "rlm_ctx"
	localOutput   contextKey = "rlm_output_slot"
	localSubCalls contextKey = "rlm_sub_calls"
)

func (it *Interpreter) llmQueryBuiltin() *starlark.Builtin {
	return starlark.NewBuiltin("llm_query", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var prompt string
		if err := starlark.UnpackArgs("llm_query", args, kwargs, "prompt", &prompt); err != nil {
			return nil, err
		}
		if it.query == nil {
			return nil, fmt.Errorf("llm_query: no sub-LM configured")
		}

		ctx, _ := thread.Local(localCtx).(context.Context)
		if ctx == nil {
			ctx = context.Background()
		}

		resp, err := it.query(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("llm_query: %w", err)
		}

		if calls, ok := thread.Local(localSubCalls).(*[]SubCall); ok {
			*calls = append(*calls, SubCall{Prompt: prompt, Response: resp})
		}
		return starlark.String(resp), nil
	})
}

func (it *Interpreter) llmOutputBuiltin() *starlark.Builtin {
	return starlark.NewBuiltin("llm_output", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var answer starlark.Value
		if err := starlark.UnpackArgs("llm_output", args, kwargs, "answer", &answer); err != nil {
			return nil, err
		}

		text := stringify(answer)
		if slot, ok := thread.Local(localOutput).(*outputSlot); ok {
			slot.set = true
			slot.value = text
		}
		if thread.Print != nil {
			thread.Print(thread, "FINAL_ANSWER: "+text)
		}
		return starlark.None, nil
	})
}
