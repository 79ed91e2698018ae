// Package parser extracts code blocks and terminal-answer markers from LM
// responses, the Go port of original_source/src/parsing.rs generalized with
// string-literal-aware paren matching and emoticon tolerance per
// SPEC_FULL.md §4.2.
package parser

import (
	"regexp"
	"strings"
)

var (
	codeBlockRe = regexp.MustCompile("(?s)```(?:repl|python)\n(.*?)```")
	finalVarRe  = regexp.MustCompile(`FINAL_VAR\((\w+)\)`)
	identRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ExtractCodeBlocks returns the inner text of every ```repl``` or ```python```
// fenced block, in order of appearance.
func ExtractCodeBlocks(text string) []string {
	matches := codeBlockRe.FindAllStringSubmatch(text, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}

// FirstCodeBlock returns the first fenced block's inner text, if any.
// Additional blocks in the same response are discarded by design — the
// orchestrator executes one block per iteration so each step observes the
// prior step's actual result before committing to the next.
func FirstCodeBlock(text string) (string, bool) {
	blocks := ExtractCodeBlocks(text)
	if len(blocks) == 0 {
		return "", false
	}
	return blocks[0], true
}

const finalMarker = "FINAL("

var emoticonPrefixes = []byte(":;= 8XxDPp")

// ExtractFinalAnswer scans text for a FINAL(...) marker, applying the
// position gate, paren matching (string-literal and emoticon aware), prose
// rejection, variable resolution against locals, and string-literal
// unquoting described in SPEC_FULL.md §4.2. It returns ok=false if no valid
// marker is found.
func ExtractFinalAnswer(text string, locals map[string]string) (string, bool) {
	searchStart := 0
	for searchStart < len(text) {
		idx := strings.Index(text[searchStart:], finalMarker)
		if idx < 0 {
			return "", false
		}
		startPos := searchStart + idx

		if !validPosition(text, startPos) {
			searchStart = startPos + 1
			continue
		}

		contentStart := startPos + len(finalMarker)
		end, ok := matchParen(text, contentStart)
		if !ok {
			searchStart = startPos + 1
			continue
		}

		content := strings.TrimSpace(text[contentStart:end])
		if looksLikeProse(content) {
			searchStart = end + 1
			continue
		}

		content = resolveAndUnquote(content, locals)
		return content, true
	}
	return "", false
}

func validPosition(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	prev := prevRune(text, pos)
	return prev == '\n' || prev == ':' || isSpace(prev)
}

func prevRune(text string, pos int) rune {
	r := []rune(text[:pos])
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1]
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n':
		return true
	}
	return false
}

// matchParen scans from contentStart (just after "FINAL(", with the opening
// paren's depth already at 1) and returns the offset of the matching close.
// String literals don't affect depth; a close immediately preceded by an
// emoticon-face character is skipped unless no other close can be found, in
// which case the match is retried with emoticon suppression disabled.
func matchParen(text string, contentStart int) (int, bool) {
	if end, ok := scanParen(text, contentStart, true); ok {
		return end, true
	}
	return scanParen(text, contentStart, false)
}

func scanParen(text string, contentStart int, suppressEmoticons bool) (int, bool) {
	depth := 1
	inString := false
	var quote byte
	escaped := false

	for i := contentStart; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				inString = false
			}
			continue
		}

		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '(':
			depth++
		case ')':
			if suppressEmoticons && i > 0 && isEmoticonFace(text[i-1]) {
				continue
			}
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func isEmoticonFace(b byte) bool {
	for _, e := range emoticonPrefixes {
		if b == e {
			return true
		}
	}
	return false
}

func looksLikeProse(content string) bool {
	if hasCodePatterns(content) {
		return false
	}

	lower := strings.ToLower(content)

	prosePrefixes := []string{
		"output from",
		"result of",
		"this is the",
		"this is a",
		"the result",
		"here is",
	}
	for _, p := range prosePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}

	strongIndicators := []string{
		"executing code",
		"execution of",
		"demonstration of",
		"example of how",
	}
	for _, ind := range strongIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}

	return false
}

func hasCodePatterns(text string) bool {
	inIdentifier := false
	for _, c := range text {
		switch {
		case isAlpha(c) || c == '_':
			inIdentifier = true
		case c == '(' && inIdentifier:
			return true
		case !isAlnum(c) && c != '_':
			inIdentifier = false
		}
	}
	return strings.ContainsAny(text, "+*/[")
}

func isAlpha(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c rune) bool {
	return isAlpha(c) || (c >= '0' && c <= '9')
}

func isIdentifier(s string) bool {
	return identRe.MatchString(s)
}

func resolveAndUnquote(content string, locals map[string]string) string {
	if isIdentifier(content) {
		if v, ok := locals[content]; ok {
			return v
		}
		return content
	}

	if n := len(content); n >= 2 {
		first, last := content[0], content[n-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			inner := content[1 : n-1]
			inner = strings.ReplaceAll(inner, `\n`, "\n")
			inner = strings.ReplaceAll(inner, `\t`, "\t")
			return inner
		}
	}

	return content
}

// ExtractFinalVar looks for a FINAL_VAR(name) marker and resolves name
// directly against locals, with no prose-rejection pass.
func ExtractFinalVar(text string, locals map[string]string) (string, bool) {
	m := finalVarRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v, ok := locals[m[1]]
	return v, ok
}

// ExtractAnswer applies the FINAL(...)-first, FINAL_VAR(...)-fallback
// precedence described in SPEC_FULL.md §4.2.
func ExtractAnswer(text string, locals map[string]string) (string, bool) {
	if v, ok := ExtractFinalAnswer(text, locals); ok {
		return v, true
	}
	return ExtractFinalVar(text, locals)
}

const finalAnswerStdoutPrefix = "FINAL_ANSWER: "

// ExtractFinalAnswerFromStdout scans stdout lines for a FINAL_ANSWER: line,
// as printed by the interpreter's llm_output builtin for legacy consumers
// that only observe captured stdout.
func ExtractFinalAnswerFromStdout(stdout string) (string, bool) {
	for _, line := range strings.Split(stdout, "\n") {
		if rest, ok := strings.CutPrefix(line, finalAnswerStdoutPrefix); ok {
			return rest, true
		}
	}
	return "", false
}
