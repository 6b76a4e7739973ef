// Package agent runs the bounded tool-calling loop that turns one user
// message into a grounded, tool-augmented model response.
package agent

import (
	"encoding/json"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ============================================================================
// TOOL-CALL DIRECTIVES
// ============================================================================

// DirectiveMarker introduces a tool-call request in generated text. The
// marker is followed by a single JSON object naming the tool and its
// arguments.
const DirectiveMarker = "TOOL_CALL:"

// Directive is a parsed tool-call request.
type Directive struct {
	Tool string            `json:"tool"`
	Args map[string]string `json:"args"`
}

// ExtractDirective scans generated text for a tool-call directive. Returns
// the directive and true when one is found and parses cleanly; otherwise
// false, treating the text as a plain answer.
func ExtractDirective(text string) (*Directive, bool) {
	idx := strings.Index(text, DirectiveMarker)
	if idx < 0 {
		return nil, false
	}

	payload := strings.TrimSpace(text[idx+len(DirectiveMarker):])
	end := jsonObjectEnd(payload)
	if end == 0 {
		return nil, false
	}

	var raw struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	}
	if err := json.Unmarshal([]byte(payload[:end]), &raw); err != nil {
		return nil, false
	}
	if raw.Tool == "" {
		return nil, false
	}

	// Models sometimes emit numbers or booleans for string parameters;
	// coerce them rather than reject the call
	args := make(map[string]string, len(raw.Args))
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &args,
	})
	if err != nil || decoder.Decode(raw.Args) != nil {
		return nil, false
	}

	return &Directive{Tool: raw.Tool, Args: args}, true
}

// jsonObjectEnd returns the length of the JSON object at the start of
// content, or 0 when no complete object is present. Brace counting is
// string- and escape-aware.
func jsonObjectEnd(content string) int {
	if !strings.HasPrefix(content, "{") {
		return 0
	}

	braceCount := 0
	inString := false
	escapeNext := false

	for i, char := range content {
		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if !inString {
			if char == '{' {
				braceCount++
			} else if char == '}' {
				braceCount--
				if braceCount == 0 {
					return i + 1
				}
			}
		}
	}
	return 0
}

// StripDirective removes the directive portion from generated text, leaving
// any surrounding prose.
func StripDirective(text string) string {
	idx := strings.Index(text, DirectiveMarker)
	if idx < 0 {
		return text
	}
	payload := strings.TrimSpace(text[idx+len(DirectiveMarker):])
	end := jsonObjectEnd(payload)
	if end == 0 {
		return text
	}
	rest := payload[end:]
	return strings.TrimSpace(text[:idx] + rest)
}
