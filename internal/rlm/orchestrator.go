// Package rlm implements the Recursive Language Model orchestrator: the
// iteration loop, prompt/protocol contract, and termination detection
// described in SPEC_FULL.md §4.5, ported from original_source/src/rlm.rs's
// Rlm::completion and expressed in the teacher's internal/agent.Engine idiom
// (structured zerolog tracing, explicit Config validation at construction).
package rlm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rlm/internal/config"
	"rlm/internal/interpreter"
	"rlm/internal/llm"
	"rlm/internal/observability"
	"rlm/internal/parser"
	"rlm/internal/prompts"
	"rlm/internal/util"
)

// Orchestrator drives one RLM completion at a time. It is not safe for
// concurrent use by multiple goroutines; concurrent completions must each
// construct their own Orchestrator (SPEC_FULL.md §5).
type Orchestrator struct {
	cfg      config.Config
	provider llm.Provider
}

// New validates cfg and binds provider as both the root LM and the sub-LM
// backing llm_query.
func New(cfg config.Config, provider llm.Provider) (*Orchestrator, error) {
	if provider == nil {
		return nil, configError(fmt.Errorf("provider must not be nil"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, configError(err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" && cfg.Provider != "local" {
		return nil, missingAPIKeyError(fmt.Errorf("no credential configured for provider %q", cfg.Provider))
	}
	return &Orchestrator{cfg: cfg, provider: provider}, nil
}

// Complete runs one bounded completion over contextPayload: the payload is
// bound into the interpreter as the context variable (SPEC_FULL.md §3
// invariant i — set once, never overwritten), never placed in the LM's
// message history.
func (o *Orchestrator) Complete(ctx context.Context, contextPayload string) (Completion, error) {
	start := time.Now()
	correlationID := uuid.New()
	log := observability.LoggerWithTrace(ctx).With().Str("correlation_id", correlationID.String()).Logger()
	log.Debug().Int("context_chars", len(contextPayload)).Int("context_tokens_est", util.CountTokens(contextPayload)).Msg("rlm_completion_start")

	var usage Usage
	var subUsage llm.Usage

	interp := interpreter.New(func(subCtx context.Context, prompt string) (string, error) {
		msg, u, err := o.chatOpts(subCtx, []llm.Message{llm.User(prompt)})
		if err != nil {
			return "", err
		}
		subUsage.Add(u)
		return msg.Content, nil
	})

	if err := interp.Bind("context", contextPayload); err != nil {
		return Completion{}, configError(err)
	}

	history := []llm.Message{
		llm.System(prompts.BuildSystemPrompt(len(contextPayload))),
		llm.User(prompts.BuildInitialUserPrompt()),
	}

	var iterations []Iteration

	for i := 0; i < o.cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return Completion{}, transportError(err)
		}

		iterStart := time.Now()
		if o.cfg.Verbose {
			log.Debug().Int("iteration", i).Int("history_len", len(history)).Msg("rlm_iteration_start")
		}

		respMsg, respUsage, err := o.chatOpts(ctx, history)
		if err != nil {
			return Completion{}, transportError(err)
		}
		usage.add(respUsage.InputTokens, respUsage.OutputTokens)

		truncated := truncateAfterFirstReplBlock(respMsg.Content)
		history = append(history, llm.Assistant(truncated))

		iter := Iteration{Index: i, RawResponse: truncated}

		code, hasCode := parser.FirstCodeBlock(truncated)
		if hasCode {
			block, err := o.executeWithRetry(ctx, interp, code, &history, &subUsage)
			if err != nil {
				return Completion{}, transportError(err)
			}
			iter.Code = &block

			if o.cfg.ExecLog {
				log.Info().Int("iteration", i).Bool("code_ran", true).
					Bool("success", block.Result.Success).Int("retries", block.RetryCount).
					Msg("rlm_iteration_exec")
			}
		} else if o.cfg.ExecLog {
			log.Info().Int("iteration", i).Bool("code_ran", false).Msg("rlm_iteration_exec")
		}

		answer, found := o.detectAnswer(iter.Code, truncated, interp.SnapshotStrings())
		iter.DetectedAnswer = answer
		iter.AnswerFound = found
		iter.Elapsed = time.Since(iterStart)
		iterations = append(iterations, iter)

		if found {
			usage.add(subUsage.InputTokens, subUsage.OutputTokens)
			log.Info().Int("iterations", len(iterations)).Msg("rlm_completion_done")
			return Completion{
				Prompt:        contextPayload,
				Response:      answer,
				Iterations:    iterations,
				Usage:         usage,
				Elapsed:       time.Since(start),
				CorrelationID: correlationID,
			}, nil
		}

		history = append(history, llm.User(prompts.BuildContinuePrompt(i, o.cfg.MaxIterations)))
	}

	log.Warn().Int("max_iterations", o.cfg.MaxIterations).Msg("rlm_max_iterations_reached")
	return Completion{}, maxIterationsError(o.cfg.MaxIterations)
}

func (o *Orchestrator) chatOpts(ctx context.Context, history []llm.Message) (llm.Message, llm.Usage, error) {
	return o.provider.Chat(ctx, history, llm.ChatOptions{
		Model:           o.cfg.Model,
		Temperature:     o.cfg.Temperature,
		MaxOutputTokens: o.cfg.MaxOutputTokens,
	})
}

// executeWithRetry runs code, and on failure asks the LM to fix it and
// retries up to cfg.MaxExecRetries times, ported from
// rlm.rs::execute_with_retry. Execution retries do not count against
// MaxIterations (SPEC_FULL.md §3 invariant iv). A canceled ctx or an LM
// error during a fix round is returned as the error.
func (o *Orchestrator) executeWithRetry(ctx context.Context, interp *interpreter.Interpreter, code string, history *[]llm.Message, subUsage *llm.Usage) (CodeBlock, error) {
	currentCode := code
	retryCount := 0

	for {
		result := interp.Execute(ctx, currentCode)
		*history = append(*history, llm.User(formatExecutionResult(result)))

		if result.Success || retryCount >= o.cfg.MaxExecRetries {
			return CodeBlock{Source: currentCode, Result: result, RetryCount: retryCount}, nil
		}

		retryCount++
		*history = append(*history, llm.User(prompts.BuildFixPrompt()))

		if err := ctx.Err(); err != nil {
			return CodeBlock{}, err
		}
		fixMsg, fixUsage, err := o.chatOpts(ctx, *history)
		if err != nil {
			return CodeBlock{}, err
		}
		subUsage.Add(fixUsage)

		fixResponse := truncateAfterFirstReplBlock(fixMsg.Content)
		*history = append(*history, llm.Assistant(fixResponse))

		fixed, ok := parser.FirstCodeBlock(fixResponse)
		if !ok {
			return CodeBlock{Source: currentCode, Result: result, RetryCount: retryCount}, nil
		}
		currentCode = fixed
	}
}

// detectAnswer applies the three-signal precedence from SPEC_FULL.md §4.2:
// the llm_output channel, then a FINAL_ANSWER: stdout line, then a free-text
// FINAL(...)/FINAL_VAR(...) marker in the LM's own response.
func (o *Orchestrator) detectAnswer(block *CodeBlock, responseText string, locals map[string]string) (string, bool) {
	if block != nil && block.Result.LLMOutput != nil {
		return *block.Result.LLMOutput, true
	}
	if block != nil {
		if answer, ok := parser.ExtractFinalAnswerFromStdout(block.Result.Stdout); ok {
			return answer, true
		}
	}
	return parser.ExtractAnswer(responseText, locals)
}

// truncateAfterFirstReplBlock discards any trailing text or additional
// fenced blocks after the first ```repl```/```python``` block closes,
// ported from rlm.rs::truncate_after_first_repl_block.
func truncateAfterFirstReplBlock(text string) string {
	replStart := strings.Index(text, "```repl\n")
	pyStart := strings.Index(text, "```python\n")

	start := -1
	var markerLen int
	switch {
	case replStart >= 0 && (pyStart < 0 || replStart < pyStart):
		start, markerLen = replStart, len("```repl\n")
	case pyStart >= 0:
		start, markerLen = pyStart, len("```python\n")
	default:
		return text
	}

	afterMarker := start + markerLen
	closeIdx := strings.Index(text[afterMarker:], "\n```")
	if closeIdx < 0 {
		return text
	}
	end := afterMarker + closeIdx + len("\n```")
	return text[:end]
}

// formatExecutionResult renders a ReplResult as the fenced result/error
// block pushed back into history, ported from rlm.rs::format_execution_result.
func formatExecutionResult(result interpreter.ReplResult) string {
	if result.Success {
		out := strings.TrimSpace(result.Stdout)
		if out == "" {
			out = "(no output)"
		}
		return "```result\n" + out + "\n```"
	}

	errText := result.Error
	if errText == "" {
		errText = "Unknown error"
	}
	return "```error\n" + errText + "\n```"
}
