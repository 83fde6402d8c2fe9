package feedback

import (
	"encoding/json"
	"fmt"
	"strings"

	"podium/internal/services"
)

// DecodeModelJSON decodes JSON from a model response, handling common
// formatting quirks: code fences around the payload, or prose surrounding
// the outermost JSON object/array. Extraction failures carry the
// malformed-response marker.
func DecodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return services.Wrap(services.ErrMalformed, "feedback", "decode", "empty payload", nil)
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return services.Wrap(services.ErrMalformed, "feedback", "decode",
			fmt.Sprintf("payload snippet: %s", summarizePayloadSnippet(trimmed)), directErr)
	}

	sanitizedErr := json.Unmarshal([]byte(sanitized), target)
	if sanitizedErr == nil {
		return nil
	}
	return services.Wrap(services.ErrMalformed, "feedback", "decode",
		fmt.Sprintf("sanitized payload snippet: %s", summarizePayloadSnippet(sanitized)), sanitizedErr)
}

// extractJSONPayload pulls the JSON document out of a completion, applying
// the same fence and prose sanitation as DecodeModelJSON without binding to
// a target type.
func extractJSONPayload(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", services.Wrap(services.ErrMalformed, "feedback", "complete", "empty payload", nil)
	}
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}
	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized != "" && json.Valid([]byte(sanitized)) {
		return sanitized, nil
	}
	return "", services.Wrap(services.ErrMalformed, "feedback", "complete",
		fmt.Sprintf("payload snippet: %s", summarizePayloadSnippet(trimmed)), nil)
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := replacer.Replace(trimmed)
	clean = strings.Join(strings.Fields(clean), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
