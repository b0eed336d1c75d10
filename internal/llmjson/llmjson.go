// Package llmjson extracts structured JSON from free-form language-model
// output. Models wrap JSON in markdown fences, prefix it with prose, or
// append commentary; every call site that parses model text goes through
// this package instead of scraping strings locally.
package llmjson

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ParseError reports why model output could not be parsed. It carries a
// truncated snippet of the raw text for logs.
type ParseError struct {
	Reason  string
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llmjson: %s (text: %q)", e.Reason, e.Snippet)
}

const snippetLen = 120

func newParseError(reason, raw string) *ParseError {
	snippet := raw
	if len(snippet) > snippetLen {
		snippet = snippet[:snippetLen] + "..."
	}
	return &ParseError{Reason: reason, Snippet: snippet}
}

// Extract returns the first well-formed JSON object or array inside raw.
// Markdown code fences are stripped first; remaining prose before or after
// the JSON value is ignored.
func Extract(raw string) ([]byte, error) {
	text := stripFences(raw)

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, newParseError("no JSON value found", raw)
	}

	candidate := text[start:]
	end := balancedEnd(candidate)
	if end < 0 {
		return nil, newParseError("unbalanced JSON value", raw)
	}

	value := []byte(candidate[:end])
	if !json.Valid(value) {
		return nil, newParseError("extracted value is not valid JSON", raw)
	}
	return value, nil
}

// Decode extracts the first JSON value from raw and unmarshals it into v.
func Decode(raw string, v any) error {
	data, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return newParseError("unmarshal: "+err.Error(), raw)
	}
	return nil
}

// stripFences removes markdown code fences (``` or ```json) wherever they
// appear, keeping the fenced content.
func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}

	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// balancedEnd returns the index one past the end of the first balanced JSON
// object or array starting at s[0], or -1 if the value never closes.
// String literals and escapes are honored so braces inside strings don't count.
func balancedEnd(s string) int {
	if len(s) == 0 {
		return -1
	}

	var open, closeCh byte
	switch s[0] {
	case '{':
		open, closeCh = '{', '}'
	case '[':
		open, closeCh = '[', ']'
	default:
		return -1
	}

	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
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
		case open:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}

	return -1
}
