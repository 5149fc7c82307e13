package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	thinkBlock = regexp.MustCompile(`(?s)^\s*<think>.*?</think>`)
	codeFence  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ExtractJSON returns the first valid JSON object or array in a model
// response. Leading <think> blocks and markdown fences are ignored.
func ExtractJSON(response string) (string, error) {
	cleaned := thinkBlock.ReplaceAllString(response, "")

	candidates := []string{}
	for _, m := range codeFence.FindAllStringSubmatch(cleaned, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, cleaned)

	for _, c := range candidates {
		if found, ok := firstJSONValue(c); ok {
			return found, nil
		}
	}
	return "", fmt.Errorf("no valid JSON found in response")
}

// firstJSONValue scans s for a balanced {...} or [...] that parses.
// Each opening bracket is tried in order until one yields valid JSON.
func firstJSONValue(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' && s[start] != '[' {
			continue
		}
		end, ok := matchBracket(s, start)
		if !ok {
			continue
		}
		if candidate := s[start : end+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	trimmed := strings.TrimSpace(s)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return trimmed, true
	}
	return "", false
}

// matchBracket returns the index of the bracket closing s[start], skipping
// brackets inside string literals.
func matchBracket(s string, start int) (int, bool) {
	var stack []byte
	inString, escaped := false, false

	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			stack = append(stack, '}')
		case c == '[':
			stack = append(stack, ']')
		case c == '}' || c == ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
