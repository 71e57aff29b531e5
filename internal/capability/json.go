package capability

import (
	"encoding/json"
	"strings"
)

// ExtractJSON returns the first balanced top-level JSON object found in s,
// tolerating markdown code fences and surrounding prose. Returns "" when no
// balanced object exists.
func ExtractJSON(s string) string {
	s = stripFences(s)
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// DecodeInto parses the first JSON object in raw into out and reports whether
// it succeeded. When raw holds no valid JSON object, out is left untouched,
// so callers pre-fill it with a fallback value and use it either way.
func DecodeInto(raw string, out interface{}) bool {
	blob := ExtractJSON(raw)
	if blob == "" || !json.Valid([]byte(blob)) {
		return false
	}
	return json.Unmarshal([]byte(blob), out) == nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
