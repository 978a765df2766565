// Package jsonreply parses the structured-JSON replies the core asks LLM
// providers to emit, tolerating the markdown code fences some models wrap
// JSON in before the stage's malformed-output repair path ever kicks in.
package jsonreply

import (
	"bytes"
	"encoding/json"
	"strings"
)

// StripFences removes an optional leading ```json or ``` fence and a
// trailing ``` fence that some models wrap JSON replies in.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// Unmarshal strips markdown fences from content and decodes it into v,
// rejecting any field not present in v's type. A reply the model
// embellished with extra keys is treated the same as malformed JSON: both
// trigger the caller's one-shot repair re-prompt.
func Unmarshal(content string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(StripFences(content))))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
