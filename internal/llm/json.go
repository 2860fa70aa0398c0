package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON unmarshals model output into dst, tolerating the markdown code
// fences some models wrap JSON in. Fields outside dst's schema are dropped by
// the decoder; callers check required fields themselves.
func DecodeJSON(text string, dst any) error {
	cleaned := StripFences(text)
	if cleaned == "" {
		return fmt.Errorf("empty model output")
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}

// StripFences removes a surrounding ```json ... ``` (or bare ```) block and
// trims whitespace.
func StripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}
