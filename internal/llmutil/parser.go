// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
)

var (
	// Backticks are written as \x60 because Go raw strings cannot contain them.

	// fencedBlockRegex captures the body of a fenced block with an optional language tag.
	fencedBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")
)

// StripCodeFences removes a surrounding ```json (or bare ```) fence. Text that
// is not fenced is returned trimmed but otherwise unchanged.
func StripCodeFences(response string) string {
	response = strings.TrimSpace(response)
	if !strings.Contains(response, "```") {
		return response
	}
	if matches := fencedBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	// An unterminated fence: drop the opening line.
	if strings.HasPrefix(response, "```") {
		if nl := strings.IndexByte(response, '\n'); nl != -1 {
			return strings.TrimSpace(response[nl+1:])
		}
	}
	return response
}

// extractJSON narrows a model reply to the outermost JSON object or array.
func extractJSON(response string) string {
	s := StripCodeFences(response)
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return s
	}

	// The structure may be embedded in conversational text.
	if fb, lb := strings.Index(s, "{"), strings.LastIndex(s, "}"); fb != -1 && lb > fb {
		return s[fb : lb+1]
	}
	if fb, lb := strings.Index(s, "["), strings.LastIndex(s, "]"); fb != -1 && lb > fb {
		return s[fb : lb+1]
	}
	return s
}

// ParseJSONResponse parses a model reply into T, tolerating markdown fences
// and surrounding chatter.
func ParseJSONResponse[T any](response string) (*T, error) {
	candidate := extractJSON(response)

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(candidate, 500))
	}
	return &result, nil
}

// ParseJSONObject parses a model reply that must be a single JSON object.
func ParseJSONObject(response string) (map[string]any, error) {
	candidate := extractJSON(response)
	if !strings.HasPrefix(candidate, "{") {
		return nil, fmt.Errorf("LLM response is not a JSON object: %s", truncateString(candidate, 200))
	}
	parsed, err := ParseJSONResponse[map[string]any](candidate)
	if err != nil {
		return nil, err
	}
	return *parsed, nil
}

// truncateString shortens s for error messages.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Byte based; good enough for log output.
	return s[:maxLen] + "..."
}
