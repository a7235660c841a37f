package template

import (
	"encoding/json"
	"sort"
	"strings"
)

// Pair is one key/value entry of a "data" or "variables" definition.
type Pair struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ParsePairs normalizes a key/value definition. Accepted shapes:
//
//	"k1=v1\nk2=v2"                   newline separated text
//	[{"key":"k1","value":"v1"}, ...] list of pair objects
//	{"k1":"v1", ...}                 object, visited in key order
//
// String values holding valid JSON are decoded; anything else is kept as
// given. Entries with an empty key are skipped.
func ParsePairs(v any) []Pair {
	var out []Pair
	switch x := v.(type) {
	case string:
		for _, line := range strings.Split(strings.TrimSpace(x), "\n") {
			line = strings.TrimSuffix(line, "\r")
			if line == "" {
				continue
			}
			key, raw, _ := strings.Cut(line, "=")
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			out = append(out, Pair{Key: key, Value: decodeLoose(strings.TrimSpace(raw))})
		}
	case []any:
		for _, e := range x {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			k, ok := m["key"]
			if !ok || k == nil {
				continue
			}
			key := Stringify(k)
			if key == "" {
				continue
			}
			out = append(out, Pair{Key: key, Value: decodeValue(m["value"], "")})
		}
	case []Pair:
		out = append(out, x...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "" {
				continue
			}
			e := x[k]
			if m, ok := e.(map[string]any); ok {
				if pk, ok := m["key"]; ok && pk != nil {
					if key := Stringify(pk); key != "" {
						out = append(out, Pair{Key: key, Value: decodeValue(m["value"], "")})
					}
					continue
				}
			}
			out = append(out, Pair{Key: k, Value: decodeValue(e, nil)})
		}
	}
	return out
}

// ResolvePairs applies r to every pair value.
func (r *Replacer) ResolvePairs(pairs []Pair) []Pair {
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		out[i] = Pair{Key: p.Key, Value: r.Apply(p.Value)}
	}
	return out
}

// decodeValue decodes string values holding JSON; missing values become def.
func decodeValue(v any, def any) any {
	if v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return decodeLoose(s)
	}
	return v
}

func decodeLoose(s string) any {
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return s
	}
	return out
}
