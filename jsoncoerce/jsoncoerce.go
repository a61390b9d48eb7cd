// Package jsoncoerce extracts the first brace-balanced JSON object from
// free-form LLM output that may carry a preamble, a postamble, or markdown
// code fences around the payload (spec §4.2). Only that one object is
// parsed: if it is not valid JSON, Decode reports the failure and does not
// search later or nested objects.
package jsoncoerce

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fenceRe matches a fenced code block (``` or ~~~) with an optional language
// tag, capturing the content between the fences.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\n]*\n(.*?)(?:`{3}|~{3})\\s*$")

// openFenceRe matches an opening fence line with no closing fence, for
// responses truncated before the model emitted one.
var openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\n]*\n")

// StripFences removes a leading/trailing markdown code fence wrapped around
// the payload, if present. A response truncated mid-fence has only its
// opening line removed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// ErrNoObject is returned by Extract when the text contains no '{', or when
// the object opened by the first '{' is never closed.
var ErrNoObject = fmt.Errorf("jsoncoerce: no JSON object found")

// Extract scans raw for the first brace-balanced JSON object, ignoring
// braces that appear inside JSON string literals, and returns its text. It
// strips markdown fences first. Unlike a naive first-'{'-to-last-'}' slice,
// this tracks nesting depth so trailing prose after the object (e.g. "Let me
// know if you have questions!") doesn't get pulled into the candidate.
func Extract(raw string) (string, error) {
	s := StripFences(raw)

	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", ErrNoObject
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced braces starting at offset %d", ErrNoObject, start)
}

// Decode is Extract followed by json.Unmarshal into v. On parse failure it
// returns an error that embeds the extracted candidate text, so callers that
// build an agent repair prompt (spec §4.2, one retry with the parse error
// fed back) have the offending payload on hand.
func Decode(raw string, v any) error {
	candidate, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return fmt.Errorf("jsoncoerce: decode %q: %w", truncate(candidate, 200), err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
