package suggest

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// extractJSONPayload strips a markdown code fence from the model output
// when one is present. A ```json fence wins over a bare ``` fence; text
// without any fence is returned verbatim.
func extractJSONPayload(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if payload, ok := contentBetween(trimmed, "```json", "```"); ok {
		return payload
	}
	if payload, ok := contentBetween(trimmed, "```", "```"); ok {
		return payload
	}
	return trimmed
}

func contentBetween(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// ParseFindings turns raw model output into validated findings.
//
// Failure handling is deliberately asymmetric: if the payload is not a
// JSON array at all, the whole run failed and an *ErrMalformedResponse
// is returned. If the array parses but individual elements are broken
// (unknown severity, missing fields), those elements are logged and
// skipped while the rest survive, preserving their original order.
func ParseFindings(raw string, logger *zap.Logger) ([]Finding, error) {
	payload := extractJSONPayload(raw)

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &elements); err != nil {
		return nil, &ErrMalformedResponse{Msg: "response is not a JSON array", Err: err}
	}

	findings := make([]Finding, 0, len(elements))
	for i, element := range elements {
		var f Finding
		if err := json.Unmarshal(element, &f); err != nil {
			logger.Warn("skipping unparseable finding",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		if err := f.validate(); err != nil {
			logger.Warn("skipping invalid finding",
				zap.Int("index", i),
				zap.Error(err))
			continue
		}
		findings = append(findings, f)
	}
	return findings, nil
}
