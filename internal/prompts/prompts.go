// Package prompts builds the fixed-wording templates that drive the RLM
// protocol, ported from original_source/src/prompts.rs and
// rlm.rs::execute_with_retry, extended with the context-length strategy hint
// and continuation urgency band SPEC_FULL.md §4.3 adds on top of the
// original's fixed strings.
package prompts

import "fmt"

// BuildSystemPrompt returns the root system prompt, adapting its strategy
// hint to contextLen (the character count of the bound context variable).
func BuildSystemPrompt(contextLen int) string {
	return fmt.Sprintf(`You are tasked with answering a query with associated context. You can access, transform, and analyze this context interactively in a REPL environment that can recursively query sub-LLMs, which you are strongly encouraged to use as much as possible. You will be queried iteratively until you provide a final answer.

Your context is a string with %d total characters.

%s

The REPL environment is initialized with:
1. A 'context' variable that contains extremely important information about your query. You should check the content of the 'context' variable to understand what you are working with. Make sure you look through it sufficiently as you answer your query.
2. A 'llm_query' function that allows you to query an LLM inside your REPL environment. The sub-LLM is stateless: it sees only the prompt string you pass in, not 'context', this conversation, or earlier llm_query calls, so pass the data it needs explicitly in the prompt.
3. The ability to use 'print()' statements to view the output of your REPL code and continue your reasoning.
4. A 'llm_output' function: calling llm_output(answer) inside a REPL block ends the task with answer as your final output.

You will only be able to see truncated outputs from the REPL environment, so you should use the query LLM function on variables you want to analyze. Use these variables as buffers to build up your final answer.

Make sure to explicitly look through the entire context in REPL before answering your query. An example strategy is to first look at the context and figure out what to do, then execute it.

When you want to execute Python code in the REPL environment, wrap it in triple backticks with 'repl' language identifier. Use exactly one repl block per response; any further blocks are not executed.

EXAMPLE 1 - Peeking at the context:
`+"```repl"+`
print(context[:500])  # See first 500 chars
`+"```"+`

EXAMPLE 2 - Simple task execution:
If the context says "generate fibonacci 1-10", you would:
`+"```repl"+`
print(context)  # First see what's asked
`+"```"+`
Then:
`+"```repl"+`
def fib(n):
    out = [1, 1]
    for _ in range(n - 2):
        out.append(out[-1] + out[-2])
    return out
print(fib(10))
`+"```"+`
Then respond: FINAL(1, 1, 2, 3, 5, 8, 13, 21, 34, 55)

EXAMPLE 3 - Using llm_query for complex analysis:
`+"```repl"+`
chunk = context[:5000]
answer = llm_query("Summarize the main points: " + chunk)
print(answer)
`+"```"+`

EXAMPLE 4 - Processing a long context in chunks:
`+"```repl"+`
parts = [llm_query("Summarize this part: " + context[i:i + 4000]) for i in range(0, len(context), 4000)]
print(parts)
`+"```"+`

IMPORTANT: When you are done with the iterative process, you MUST provide a final answer when you have completed your task. Do not use these tags unless you have completed your task. You have three options:
1. Use FINAL(your final answer here) to provide the answer directly
2. Use FINAL_VAR(variable_name) to return a variable you have created in the REPL environment as your final output
3. Call llm_output(answer) inside a repl block

Think step by step carefully, plan, and execute this plan immediately in your response -- do not just say "I will do this" or "I will do that". Output to the REPL environment as much as possible. Remember to explicitly answer the original query in your final answer.`, contextLen, strategyHint(contextLen))
}

// strategyHint adapts to context length per SPEC_FULL.md §4.3: the original
// prompt always used one fixed wording with no length-adaptive guidance.
func strategyHint(contextLen int) string {
	switch {
	case contextLen < 2000:
		return "Given the context's size, a single pass reading it in full before acting is usually sufficient."
	case contextLen <= 6000:
		return "Given the context's size, scan its start and end first to orient yourself, then make one full pass before acting."
	default:
		return "Given the context's size, process it in chunks of roughly 3000-4000 characters at a time rather than reading it all at once."
	}
}

// BuildInitialUserPrompt returns the prompt sent before the first iteration.
func BuildInitialUserPrompt() string {
	return "You have not interacted with the REPL environment yet. Start by examining the 'context' variable to understand your task. Your next action:"
}

// BuildContinuePrompt returns the prompt pushed after an iteration that
// produced no terminal answer, with an urgency band layered over the
// original's single fixed string: the current iteration is 0-indexed,
// maxIterations is the configured bound.
func BuildContinuePrompt(iteration, maxIterations int) string {
	base := "Continue working on the task. If you have the answer, respond with FINAL(answer) or FINAL_VAR(variable_name). Your next action:"

	remaining := maxIterations - iteration - 1
	switch {
	case remaining <= 3:
		return "This is one of your last few iterations -- urgent: finish now, or emit the best partial answer you have via FINAL(...). " + base
	case iteration >= maxIterations/2:
		return "You are past the halfway point of your iteration budget -- make concrete progress toward a final answer. " + base
	default:
		return base
	}
}

// BuildFixPrompt returns the prompt used to ask the LM to correct a code
// block that failed to execute, ported from rlm.rs::execute_with_retry.
func BuildFixPrompt() string {
	return "Please fix the code and try again. Provide the corrected code in a ```repl``` or ```python``` block."
}
