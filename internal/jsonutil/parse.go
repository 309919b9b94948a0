// Package jsonutil provides utilities for extracting and parsing JSON from
// server responses that may be partial, wrapped in markdown code fences, or
// embedded in prose.
//
// Streaming payloads accumulate token by token, so JSON parses are expected
// to fail repeatedly until enough bytes have arrived. Every helper here is
// permissive: a failed parse is an ordinary outcome, never an error the
// caller has to handle.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TryParse attempts to unmarshal s into T. The boolean reports whether the
// parse succeeded; on failure the zero value is returned.
func TryParse[T any](s string) (T, bool) {
	var result T
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		var zero T
		return zero, false
	}
	return result, true
}

// TryParseMap attempts to unmarshal s into a generic JSON object. Arrays,
// primitives, and malformed input all report false.
func TryParseMap(s string) (map[string]any, bool) {
	return TryParse[map[string]any](s)
}

// StringField returns the named field of obj if it is present and a string.
func StringField(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StripMarkdownFences removes ```json ... ``` or ``` ... ``` wrapping from text.
// Returns the content between the fences, or the original text if no fences are found.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	startIdx := 1 // skip the opening ``` line
	endIdx := len(lines) - 1

	// Find the closing ```
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}

	return strings.Join(lines[startIdx:endIdx], "\n")
}

// CleanMarkdown strips fenced code-block delimiters (with or without a
// language tag) and inline single-backtick markers anywhere in text, leaving
// the enclosed content as plain prose. Non-delimiter content is untouched,
// and the operation is idempotent: cleaning already-cleaned text is a no-op.
func CleanMarkdown(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			// Drop the fence line itself; a language tag after the
			// backticks goes with it.
			continue
		}
		out = append(out, strings.ReplaceAll(line, "`", ""))
	}
	return strings.Join(out, "\n")
}

// ExtractJSON finds and returns the JSON content (object or array) from text
// that may contain surrounding non-JSON content.
// It finds the first { or [ and matches it with the last corresponding } or ].
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)

	objIdx := strings.Index(text, "{")
	arrIdx := strings.Index(text, "[")

	if objIdx == -1 && arrIdx == -1 {
		return "", fmt.Errorf("no JSON content found")
	}

	// Determine which delimiter comes first
	var startIdx int
	var endChar string

	if arrIdx == -1 || (objIdx != -1 && objIdx <= arrIdx) {
		startIdx = objIdx
		endChar = "}"
	} else {
		startIdx = arrIdx
		endChar = "]"
	}

	text = text[startIdx:]
	endIdx := strings.LastIndex(text, endChar)
	if endIdx == -1 {
		return "", fmt.Errorf("no closing %s found", endChar)
	}

	return text[:endIdx+1], nil
}
