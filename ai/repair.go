package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeJSON unmarshals raw into v. When strict parsing fails one repair
// pass is attempted before giving up.
func DecodeJSON(raw string, v interface{}) error {
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), v); err == nil {
		return nil
	}
	repaired := RepairJSON(raw)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// ParseSuggestions extracts the "suggestions" array of raw. Entries may be
// strings or objects carrying a suggestion/text/description field.
func ParseSuggestions(raw string) ([]string, error) {
	var payload struct {
		Suggestions []json.RawMessage `json:"suggestions"`
	}
	if err := DecodeJSON(raw, &payload); err != nil {
		return []string{}, err
	}

	out := make([]string, 0, len(payload.Suggestions))
	for _, item := range payload.Suggestions {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			var obj map[string]interface{}
			if json.Unmarshal(item, &obj) != nil {
				continue
			}
			for _, key := range []string{"suggestion", "text", "description", "title"} {
				if v, ok := obj[key].(string); ok {
					s = v
					break
				}
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return out, ErrNoSuggestions
	}
	return out, nil
}

// RepairJSON makes a best effort to turn almost-JSON into JSON: it strips
// code fences and text around the top level value, drops trailing commas,
// escapes raw control characters inside strings and closes unbalanced
// strings, objects and arrays.
func RepairJSON(raw string) string {
	s := stripFences(strings.TrimSpace(raw))
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	s = s[start:]

	var out strings.Builder
	var stack []byte
	inString, escaped := false, false

	runes := []rune(s)
loop:
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if inString {
			switch {
			case escaped:
				escaped = false
				out.WriteRune(r)
			case r == '\\':
				escaped = true
				out.WriteRune(r)
			case r == '"':
				inString = false
				out.WriteRune(r)
			case r == '\n':
				out.WriteString(`\n`)
			case r == '\r':
				out.WriteString(`\r`)
			case r == '\t':
				out.WriteString(`\t`)
			case r < 0x20:
				fmt.Fprintf(&out, `\u%04x`, r)
			default:
				out.WriteRune(r)
			}
			continue
		}

		switch r {
		case '"':
			inString = true
			out.WriteRune(r)
		case '{':
			stack = append(stack, '}')
			out.WriteRune(r)
		case '[':
			stack = append(stack, ']')
			out.WriteRune(r)
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != byte(r) {
				continue
			}
			stack = stack[:len(stack)-1]
			out.WriteRune(r)
			if len(stack) == 0 {
				break loop
			}
		case ',':
			if next := nextNonSpace(runes, i+1); next == '}' || next == ']' || next == 0 {
				continue
			}
			out.WriteRune(r)
		default:
			out.WriteRune(r)
		}
	}

	if escaped {
		out.WriteRune('\\')
	}
	if inString {
		out.WriteRune('"')
	}
	result := strings.TrimRight(out.String(), " \t\r\n,")
	for i := len(stack) - 1; i >= 0; i-- {
		result += string(stack[i])
	}
	return result
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func nextNonSpace(runes []rune, from int) rune {
	for i := from; i < len(runes); i++ {
		switch runes[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return runes[i]
		}
	}
	return 0
}
