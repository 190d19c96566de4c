package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoJSON is returned when a response holds no balanced {...} region
var ErrNoJSON = errors.New("no JSON object found in response")

// ExtractJSON returns the first balanced {...} region of raw. Braces inside
// JSON strings are ignored, so markdown fences or prose around the object
// do not matter.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(raw); i++ {
		c := raw[i]

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
				return raw[start : i+1], true
			}
		}
	}

	return "", false
}

// ParseWithFallback decodes the first JSON object embedded in raw into T.
// On any failure it returns fallback together with the cause so callers can
// log it and carry on.
func ParseWithFallback[T any](raw string, fallback T) (T, error) {
	obj, ok := ExtractJSON(raw)
	if !ok {
		return fallback, ErrNoJSON
	}

	var out T
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return fallback, fmt.Errorf("failed to decode embedded JSON: %w", err)
	}
	return out, nil
}

// flexFloat accepts a JSON number, a numeric string, or null
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	f.Value = v
	f.Set = true
	return nil
}

// flexBool accepts true/false as JSON booleans or strings
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`))
	switch s {
	case "true", "yes", "1":
		*f = true
	case "false", "no", "0", "null", "":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}
