package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Pre-compiled regex patterns for JSON extraction from LLM responses.
var (
	// jsonBlockPattern matches JSON inside markdown code blocks: ```json { ... } ```
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern spans the first '{' to the last '}'.
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

var errNoObject = errors.New("no JSON object found")

// ParseObject decodes an LLM response into a JSON object.
// The full text is parsed strictly first; on failure the outermost {...} block
// is extracted (fenced or bare) and parsed, then parsed again after cleanup.
// Anything else is a KindNotJSON error.
func ParseObject(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)

	if obj, err := decodeObject(content); err == nil {
		return obj, nil
	}

	raw := extractRawJSON(content)
	if raw == "" {
		return nil, NewNotJSONError(errNoObject)
	}
	obj, err := decodeObject(raw)
	if err == nil {
		return obj, nil
	}
	if cleaned, cerr := decodeObject(cleanJSON(raw)); cerr == nil {
		return cleaned, nil
	}
	return nil, NewNotJSONError(err)
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNoObject
	}
	return obj, nil
}

// ExtractJSON extracts a JSON object from an LLM response string.
// It handles markdown code blocks, JavaScript-style comments, and trailing commas.
func ExtractJSON(content string) string {
	raw := extractRawJSON(content)
	if raw == "" {
		return ""
	}
	return cleanJSON(raw)
}

// extractRawJSON extracts raw JSON content before cleaning.
func extractRawJSON(content string) string {
	if matches := jsonBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		return matches[1]
	}
	return jsonObjectPattern.FindString(content)
}

// cleanJSON removes JavaScript-style comments and trailing commas from JSON.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(cleaned, "\n"), "$1")
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
//
//	"focus": "read https://go.dev", // note  → "focus": "read https://go.dev",
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
