package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Coerce extracts a JSON document from a free-text model response. Models
// frequently wrap structured payloads in prose or markdown fences; the loop
// treats a failure to find a document the same as a validation failure.
func Coerce(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.New("empty response")
	}

	if (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && gjson.Valid(trimmed) {
		return []byte(trimmed), nil
	}

	if candidate, ok := fencedBlock(trimmed); ok {
		return []byte(candidate), nil
	}

	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			candidate := trimmed[start : end+1]
			if gjson.Valid(candidate) {
				return []byte(candidate), nil
			}
		}
	}

	return nil, fmt.Errorf("no JSON document found in response")
}

func fencedBlock(text string) (string, bool) {
	idx := strings.Index(text, "```")
	if idx < 0 {
		return "", false
	}
	rest := text[idx+3:]
	rest = strings.TrimPrefix(rest, "json")
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	candidate := strings.TrimSpace(rest[:end])
	if !gjson.Valid(candidate) {
		return "", false
	}
	return candidate, true
}
