package config

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches ${name} references, where name may be a dotted
// path into nested variables.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\}`)

// ExpandString substitutes ${name} placeholders in s from vars. Placeholders
// that resolve to non-string values are rendered with their default Go
// formatting. Names that cannot be resolved are returned in missing, with
// the placeholder left in place.
func ExpandString(s string, vars map[string]any) (expanded string, missing []string) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	expanded = placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		value, ok := lookupVar(vars, name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		if str, isString := value.(string); isString {
			return str
		}
		return fmt.Sprintf("%v", value)
	})
	return expanded, missing
}

// ExpandOptions walks an options map and expands placeholders in every
// string value, including strings nested in maps and slices. The input is
// not modified; the expanded copy and the unresolved names are returned.
func ExpandOptions(options map[string]any, vars map[string]any) (map[string]any, []string) {
	if len(options) == 0 {
		return options, nil
	}

	var missing []string
	expanded := expandValue(options, vars, &missing)
	return expanded.(map[string]any), missing
}

func expandValue(v any, vars map[string]any, missing *[]string) any {
	switch val := v.(type) {
	case string:
		out, miss := ExpandString(val, vars)
		*missing = append(*missing, miss...)
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandValue(item, vars, missing)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item, vars, missing)
		}
		return out
	default:
		return v
	}
}

// lookupVar resolves a possibly dotted name against nested variable maps.
func lookupVar(vars map[string]any, name string) (any, bool) {
	parts := strings.Split(name, ".")
	var current any = vars
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
