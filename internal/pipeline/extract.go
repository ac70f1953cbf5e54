package pipeline

import (
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"

	"uiagent/internal/types"
	"uiagent/internal/util/jsonutil"
)

// ExtractPlan pulls the plan object out of planner text. ok is false when
// nothing parsed, in which case the returned Plan is the sentinel carrying
// text verbatim.
//
// Candidates are tried in order: the greedy span from the first '{' to the
// last '}' (or the whole text when there is no such span), each balanced
// top-level object, and finally the greedy span read as JSONC.
func ExtractPlan(text string) (types.Plan, bool) {
	greedy := greedySpan(text)
	if m, ok := jsonutil.DecodeObject([]byte(greedy)); ok {
		return types.PlanFromMap(m), true
	}
	for _, c := range balancedObjects(text) {
		if c == greedy {
			continue
		}
		if m, ok := jsonutil.DecodeObject([]byte(c)); ok {
			return types.PlanFromMap(m), true
		}
	}
	if m, ok := jsonutil.DecodeObject(jsonc.ToJSON([]byte(greedy))); ok {
		return types.PlanFromMap(m), true
	}
	return types.SentinelPlan(text), false
}

func greedySpan(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}

// balancedObjects returns each top-level {...} span, skipping braces inside
// JSON strings. ASCII delimiters never occur inside UTF-8 multi-byte runes,
// so scanning bytes is safe.
func balancedObjects(s string) []string {
	var out []string
	depth, start := 0, -1
	inString, escape := false, false
	for i := 0; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			// Quotes only open strings inside an object; prose apostrophes
			// and stray quotes outside braces are ignored.
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					out = append(out, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return out
}

var (
	// A jsx, js or javascript tag is dropped even on a single line; any
	// other tag only when it ends its line.
	fenceRe      = regexp.MustCompile("(?is)```(?:(?:javascript|jsx?)\\b[ \\t]*(?:\\r?\\n)?|[a-z0-9_+.-]+[ \\t]*\\r?\\n)?(.*?)```")
	codeLabelRe  = regexp.MustCompile(`(?i)^(GENERATED_CODE:|JSX:|Code:)`)
	explainLabel = regexp.MustCompile(`(?i)EXPLANATION:`)
)

// ExtractCode returns the body of the first fenced block, trimmed. Without a
// fence it falls back to the trimmed text minus one leading label. ok reports
// whether a fence was found.
func ExtractCode(text string) (string, bool) {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	code := strings.TrimSpace(text)
	code = codeLabelRe.ReplaceAllString(code, "")
	return strings.TrimSpace(code), false
}

// CleanExplanation removes the first EXPLANATION: token and trims.
func CleanExplanation(text string) string {
	if loc := explainLabel.FindStringIndex(text); loc != nil {
		text = text[:loc[0]] + text[loc[1]:]
	}
	return strings.TrimSpace(text)
}
