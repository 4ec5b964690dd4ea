// Package repair recovers a JSON value from raw language-model output that may
// wrap it in prose or markdown fences.
package repair

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnparsable is matched by every UnparsableError.
var ErrUnparsable = errors.New("no recoverable JSON in model response")

const previewLen = 200

// UnparsableError carries a truncated preview of the input for diagnostics.
type UnparsableError struct {
	Preview string
}

func (e *UnparsableError) Error() string {
	return fmt.Sprintf("%v: %s", ErrUnparsable, e.Preview)
}

func (e *UnparsableError) Is(target error) bool {
	return target == ErrUnparsable
}

// Extractor applies the extraction strategies in order; the first success wins:
// whole text, first fenced block, then a bracket-matched span.
//
// With StringAware unset the bracket scan counts every bracket, including
// ones inside quoted strings, which reproduces how previously stored outputs
// were parsed. Set StringAware to skip string literals during the scan.
type Extractor struct {
	StringAware bool
}

// Extract uses the compatible (string-unaware) extractor.
func Extract(text string) (json.RawMessage, error) {
	return Extractor{}.Extract(text)
}

func (x Extractor) Extract(text string) (json.RawMessage, error) {
	if v, ok := parse(text); ok {
		return v, nil
	}
	if body, ok := fencedBlock(text); ok {
		if v, ok := parse(body); ok {
			return v, nil
		}
	}
	for _, start := range bracketStarts(text) {
		span, ok := x.matchSpan(text, start)
		if !ok {
			continue
		}
		if v, ok := parse(span); ok {
			return v, nil
		}
	}
	return nil, &UnparsableError{Preview: preview(text)}
}

func parse(s string) (json.RawMessage, bool) {
	b := bytes.TrimSpace([]byte(s))
	if len(b) == 0 || !json.Valid(b) {
		return nil, false
	}
	return json.RawMessage(b), true
}

// fencedBlock returns the content between the first opening fence (``` or ~~~,
// optionally followed by a language tag) and the next fence of the same kind.
func fencedBlock(text string) (string, bool) {
	open, marker := -1, ""
	for _, m := range []string{"```", "~~~"} {
		if i := strings.Index(text, m); i >= 0 && (open < 0 || i < open) {
			open, marker = i, m
		}
	}
	if open < 0 {
		return "", false
	}
	rest := text[open+len(marker):]
	end := strings.Index(rest, marker)
	if end < 0 {
		return "", false
	}
	return stripLanguageTag(rest[:end]), true
}

// stripLanguageTag drops a leading tag such as "json" only when whitespace
// follows it and something remains, so "```true```" keeps its value.
func stripLanguageTag(s string) string {
	i := 0
	for i < len(s) {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '+' {
			i++
			continue
		}
		break
	}
	if i == 0 || i == len(s) || !unicode.IsSpace(rune(s[i])) {
		return s
	}
	if strings.TrimSpace(s[i:]) == "" {
		return s
	}
	return s[i:]
}

// bracketStarts orders the first '{' and first '[' by position.
func bracketStarts(text string) []int {
	obj, arr := strings.IndexByte(text, '{'), strings.IndexByte(text, '[')
	switch {
	case obj < 0 && arr < 0:
		return nil
	case obj < 0:
		return []int{arr}
	case arr < 0:
		return []int{obj}
	case obj < arr:
		return []int{obj, arr}
	default:
		return []int{arr, obj}
	}
}

// matchSpan counts depth over the bracket pair opened at start and returns the
// span up to the bracket that brings depth back to zero.
func (x Extractor) matchSpan(text string, start int) (string, bool) {
	open := text[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if x.StringAware {
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			if c == '"' {
				inString = true
				continue
			}
		}
		switch c {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLen {
		return text
	}
	r := []rune(text)
	return string(r[:previewLen]) + "..."
}
