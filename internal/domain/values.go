package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// IntValue coerces a JSON-shaped value to int. A nil value yields def;
// anything that is present but not numeric yields 0.
func IntValue(v any, def int) int {
	switch x := v.(type) {
	case nil:
		return def
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return int(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		if f, err := x.Float64(); err == nil {
			return int(f)
		}
		return 0
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return 0
}

// StringValue coerces a JSON-shaped value to string. A nil value yields def;
// containers become their JSON text.
func StringValue(v any, def string) string {
	switch x := v.(type) {
	case nil:
		return def
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "1"
		}
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return def
	}
	return string(b)
}

// SanitizeHeaders flattens a header definition into a key→value map.
// It accepts an object (key → scalar, or key → {"value": ...}) or a list of
// {"key": k, "value": v} pairs. Entries without a key are dropped.
func SanitizeHeaders(raw any) map[string]string {
	out := map[string]string{}

	put := func(fallbackKey string, v any) {
		key := fallbackKey
		var val string
		if m, ok := v.(map[string]any); ok {
			if k, ok := m["key"]; ok && k != nil {
				key = StringValue(k, "")
				val = StringValue(m["value"], "")
			} else if inner, ok := m["value"]; ok {
				val = StringValue(inner, "")
			} else {
				val = StringValue(m, "")
			}
		} else {
			val = StringValue(v, "")
		}
		if key == "" {
			return
		}
		out[key] = val
	}

	switch h := raw.(type) {
	case map[string]any:
		for _, k := range sortedKeys(h) {
			put(k, h[k])
		}
	case map[string]string:
		for k, v := range h {
			if k != "" {
				out[k] = v
			}
		}
	case []any:
		for _, v := range h {
			put("", v)
		}
	}
	return out
}
