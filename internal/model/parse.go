package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a generation reply that could not be decoded as the
// expected JSON object shape.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "malformed model output"
	}
	return fmt.Sprintf("malformed model output (stage=%s): %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DecodeObject decodes a reply into dst. The single tolerated deviation from
// strict JSON is a fenced ```json block around the object; anything else is a
// *ParseError attributed to stage.
func DecodeObject(stage, reply string, dst any) error {
	body, err := stripJSONFence(reply)
	if err != nil {
		return &ParseError{Stage: stage, Err: err}
	}
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(dst); err != nil {
		return &ParseError{Stage: stage, Err: err}
	}
	return nil
}

// DecodeObjectStrict decodes a reply that must be a bare JSON object.
func DecodeObjectStrict(stage, reply string, dst any) error {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "{") {
		return &ParseError{Stage: stage, Err: fmt.Errorf("reply is not a JSON object")}
	}
	if err := json.Unmarshal([]byte(trimmed), dst); err != nil {
		return &ParseError{Stage: stage, Err: err}
	}
	return nil
}

func stripJSONFence(reply string) (string, error) {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return "", fmt.Errorf("empty reply")
	}
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed, nil
	}

	// Expect ```json\n...\n``` with nothing meaningful outside the fence.
	rest := strings.TrimPrefix(trimmed, "```")
	rest = strings.TrimPrefix(rest, "json")
	end := strings.LastIndex(rest, "```")
	if end < 0 {
		return "", fmt.Errorf("unterminated code fence")
	}
	body := strings.TrimSpace(rest[:end])
	if body == "" {
		return "", fmt.Errorf("empty fenced block")
	}
	return body, nil
}
