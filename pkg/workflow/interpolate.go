package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Substitute replaces every ${a.b.c} token in text with the value resolved
// from the run context. Paths resolve against a virtual root where "input"
// maps to the run input and every completed step id maps to its result.
// Unresolved tokens are left verbatim.
func Substitute(text string, rc *RunContext) string {
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		path := token[2 : len(token)-1]
		value, ok := resolvePath(path, rc)
		if !ok {
			return token
		}
		return stringify(value)
	})
}

// SubstituteValue applies Substitute recursively through strings, maps and
// slices, leaving other values untouched.
func SubstituteValue(v any, rc *RunContext) any {
	switch tv := v.(type) {
	case string:
		return substituteWhole(tv, rc)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = SubstituteValue(item, rc)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = SubstituteValue(item, rc)
		}
		return out
	default:
		return v
	}
}

// substituteWhole keeps the resolved value's native type when the string is
// exactly one token, so "${step1.rows}" can carry arrays through configs.
func substituteWhole(text string, rc *RunContext) any {
	matches := tokenPattern.FindStringSubmatch(text)
	if matches != nil && matches[0] == text {
		if value, ok := resolvePath(matches[1], rc); ok {
			return value
		}
		return text
	}
	return Substitute(text, rc)
}

// ResolvePath resolves a dotted path against the run context without
// substitution syntax. Used by data_analysis "context." sources.
func ResolvePath(path string, rc *RunContext) (any, bool) {
	return resolvePath(path, rc)
}

func resolvePath(path string, rc *RunContext) (any, bool) {
	parts := strings.Split(path, ".")
	if len(parts) == 0 {
		return nil, false
	}

	var current any
	switch parts[0] {
	case "input":
		current = rc.Input
	default:
		result, ok := rc.Results[parts[0]]
		if !ok {
			return nil, false
		}
		current = result
	}

	for _, part := range parts[1:] {
		m, ok := toMap(current)
		if !ok {
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// toMap exposes map fields of arbitrary result values. Structs returned by
// handlers are viewed through their JSON encoding.
func toMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case float64:
		// Render integral floats without a trailing ".0".
		if tv == float64(int64(tv)) {
			return fmt.Sprintf("%d", int64(tv))
		}
		return fmt.Sprintf("%v", tv)
	case nil:
		return ""
	default:
		if data, err := json.Marshal(tv); err == nil {
			s := string(data)
			// Plain scalars read better unquoted.
			return strings.Trim(s, `"`)
		}
		return fmt.Sprintf("%v", tv)
	}
}
