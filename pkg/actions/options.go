package actions

import "strconv"

// stringOption reads a string option, falling back when the key is
// absent, nil, or not a non-empty string.
func stringOption(options map[string]any, key, fallback string) string {
	v, ok := options[key]
	if !ok || v == nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}

// boolOption reads a bool option with a fallback.
func boolOption(options map[string]any, key string, fallback bool) bool {
	b, ok := options[key].(bool)
	if !ok {
		return fallback
	}
	return b
}

// intOption reads a numeric option with a fallback. Options arrive
// through YAML and JSON decoders, so numbers show up as int, int64,
// float64, or digit strings.
func intOption(options map[string]any, key string, fallback int) int {
	v, ok := options[key]
	if !ok || v == nil {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return fallback
}

// stringListOption reads a list option. Both []string and the []any
// the decoders produce are accepted; non-string and empty elements are
// dropped.
func stringListOption(options map[string]any, key string) []string {
	switch list := options[key].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
