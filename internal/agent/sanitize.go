package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// imagePrefix marks inline data-URI images that must never reach the log.
const imagePrefix = "data:image"

// SanitizeText prepares a tool argument or result string for logging: any
// string value starting with "data:image" — the value itself or any nested
// string inside a JSON structure — is replaced by "<image len=N>" where N is
// the original byte length. Non-JSON input is treated as a plain string.
func SanitizeText(s string) string {
	if strings.HasPrefix(s, imagePrefix) {
		return placeholder(len(s))
	}
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return s
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return s
	}
	scrubbed := scrub(v)
	out, err := json.Marshal(scrubbed)
	if err != nil {
		return s
	}
	return string(out)
}

// SanitizeJSON is [SanitizeText] for raw JSON values.
func SanitizeJSON(raw json.RawMessage) string {
	return SanitizeText(string(raw))
}

// scrub walks a decoded JSON value replacing image data URIs in place.
func scrub(v any) any {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, imagePrefix) {
			return placeholder(len(t))
		}
		return t
	case map[string]any:
		for k, val := range t {
			t[k] = scrub(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = scrub(val)
		}
		return t
	default:
		return v
	}
}

func placeholder(n int) string {
	return fmt.Sprintf("<image len=%d>", n)
}
