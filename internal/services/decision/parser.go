package decision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/sitetest/internal/models"
)

// ParseError describes why a model response could not be turned into a
// decision. Callers must handle it explicitly; it is never silently
// swallowed here.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse decision: %s", e.Reason)
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractDecision locates and validates a decision JSON object inside
// free-form model output. Exactly one of the results is non-nil.
//
// The model is prompted to emit a fenced JSON block, but responses often
// wrap it in prose, so extraction tries the fenced form first and falls
// back to the first balanced object in the text.
func ExtractDecision(text string) (*models.Decision, *ParseError) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Reason: "empty model response", Raw: text}
	}

	var candidates []string
	if m := fencedJSONPattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if obj := firstJSONObject(text); obj != "" {
		candidates = append(candidates, obj)
	}

	var lastErr string
	for _, candidate := range candidates {
		var d models.Decision
		if err := json.Unmarshal([]byte(candidate), &d); err != nil {
			lastErr = err.Error()
			continue
		}
		if d.Action == "" {
			lastErr = "object has no action field"
			continue
		}
		if !d.Action.Valid() {
			lastErr = fmt.Sprintf("unknown action %q", d.Action)
			continue
		}
		return &d, nil
	}

	if lastErr == "" {
		lastErr = "no JSON object found in response"
	}
	return nil, &ParseError{Reason: lastErr, Raw: text}
}

// firstJSONObject returns the first balanced {...} block in the text,
// respecting strings and escapes.
func firstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// skip structural characters inside strings
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
