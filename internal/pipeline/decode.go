package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeModelJSON unmarshals a model response into v after stripping the
// Markdown wrappers and surrounding prose models sometimes emit despite
// strict-JSON instructions.
func decodeModelJSON(raw string, v interface{}) error {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return fmt.Errorf("empty response from model")
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("unmarshal model JSON: %w\nraw response: %s", err, raw)
	}
	return nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	// Remove trailing ``` if present.
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Extra safety: if there's still prose around the JSON, keep only the
	// outermost object or array.
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	var end int
	if s[start] == '[' {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}
	if end > start {
		s = strings.TrimSpace(s[start : end+1])
	}
	return s
}
