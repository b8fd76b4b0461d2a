package drafting

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrMalformed means no recovery layer could extract a usable suggestion.
var ErrMalformed = errors.New("drafting response malformed")

var (
	fenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingRe  = regexp.MustCompile(`,\s*([}\]])`)
	summaryRe   = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	narrativeRe = regexp.MustCompile(`"narrative"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// Decode recovers a Suggestion from collaborator output. The layers run in
// order, each more aggressive than the last:
//
//  1. strip markdown code fences and decode as-is
//  2. truncate to the first balanced top-level object, appending any missing
//     closing braces and brackets
//  3. remove trailing commas and normalize curly quotes, then decode again
//  4. regex-salvage the summary and day narratives from the raw text
//
// Only when all four fail does it return ErrMalformed.
func Decode(raw []byte) (Suggestion, error) {
	text := strings.TrimSpace(string(raw))
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		return s, nil
	}

	balanced := balanceBraces(text)
	if err := json.Unmarshal([]byte(balanced), &s); err == nil {
		return s, nil
	}

	repaired := repairText(balanced)
	if err := json.Unmarshal([]byte(repaired), &s); err == nil {
		return s, nil
	}

	if salvaged, ok := salvage(text); ok {
		return salvaged, nil
	}
	return Suggestion{}, ErrMalformed
}

// balanceBraces cuts leading noise before the first '{' and appends closers
// for any braces and brackets left open, ignoring characters inside strings.
func balanceBraces(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return text
	}
	text = text[start:]

	var stack []byte
	inString := false
	escaped := false
	end := -1
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, ch)
			}
		case '}', ']':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
				if len(stack) == 0 {
					end = i
				}
			}
		}
		if end >= 0 {
			break
		}
	}
	if end >= 0 {
		return text[:end+1]
	}

	// Unterminated: close the open string, then unwind the stack.
	var b strings.Builder
	b.WriteString(text)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

func repairText(text string) string {
	text = trailingRe.ReplaceAllString(text, "$1")
	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
	return replacer.Replace(text)
}

// salvage pulls whatever fields survive in free text. Day order follows
// narrative appearance order.
func salvage(text string) (Suggestion, bool) {
	var s Suggestion
	found := false
	if m := summaryRe.FindStringSubmatch(text); m != nil {
		s.Summary = unescape(m[1])
		found = true
	}
	for i, m := range narrativeRe.FindAllStringSubmatch(text, -1) {
		s.Days = append(s.Days, DayNote{DayIndex: i, Narrative: unescape(m[1])})
		found = true
	}
	return s, found
}

func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
