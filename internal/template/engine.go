package template

import (
	"encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Profile is the set of recipient fields tokens resolve against.
type Profile map[string]any

// Replacer substitutes the tokens of one profile. It is safe for concurrent
// use once built.
type Replacer struct {
	r *strings.Replacer
}

// NewReplacer builds the token table for p. An empty profile yields a
// Replacer that returns every input unchanged.
func NewReplacer(p Profile) *Replacer {
	tokens := tokenTable(p)
	if len(tokens) == 0 {
		return &Replacer{}
	}

	// strings.Replacer picks the first listed match at a position, so the
	// longest tokens go first.
	olds := make([]string, 0, len(tokens))
	for k := range tokens {
		olds = append(olds, k)
	}
	sort.Slice(olds, func(i, j int) bool {
		if len(olds[i]) != len(olds[j]) {
			return len(olds[i]) > len(olds[j])
		}
		return olds[i] < olds[j]
	})

	pairs := make([]string, 0, 2*len(olds))
	for _, o := range olds {
		pairs = append(pairs, o, tokens[o])
	}
	return &Replacer{r: strings.NewReplacer(pairs...)}
}

// Text replaces every known token in s.
func (r *Replacer) Text(s string) string {
	if r == nil || r.r == nil || s == "" {
		return s
	}
	return r.r.Replace(s)
}

// Apply walks v and replaces tokens in every string leaf. Maps and slices
// are copied; the input is never modified.
func (r *Replacer) Apply(v any) any {
	if r == nil || r.r == nil {
		return v
	}
	return walk(v, r.Text)
}

// Walk returns a copy of the JSON-shaped value v with fn applied to every
// string leaf, descending into maps and slices of any element type.
func Walk(v any, fn func(string) string) any {
	return walk(v, fn)
}

func walk(v any, fn func(string) string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return fn(x)
	case json.Number:
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = walk(e, fn)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = walk(e, fn)
		}
		return out
	}
	return walkReflect(reflect.ValueOf(v), fn)
}

var stringType = reflect.TypeOf("")

// walkReflect covers typed containers such as []map[string]any or
// map[string]string so the walk stays total over JSON-shaped input.
func walkReflect(rv reflect.Value, fn func(string) string) any {
	switch rv.Kind() {
	case reflect.String:
		// Named string types such as json.Number keep their value.
		if rv.Type() != stringType {
			return rv.Interface()
		}
		return fn(rv.String())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return rv.Interface()
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = walk(iter.Value().Interface(), fn)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface()
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = walk(rv.Index(i).Interface(), fn)
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return walk(rv.Elem().Interface(), fn)
	}
	return rv.Interface()
}

// tokenTable maps every token variant to its stringified value. Fields are
// visited in key order so collisions between variants resolve the same way
// on every call.
func tokenTable(p Profile) map[string]string {
	if len(p) == 0 {
		return nil
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := make(map[string]string, len(keys)*8)
	for _, key := range keys {
		if key == "" {
			continue
		}
		val := Stringify(p[key])
		for _, k := range Variants(key) {
			table["{{"+k+"}}"] = val
			table["{"+k+"}"] = val
			table["{contactfield="+k+"}"] = val
			table["{{contactfield="+k+"}}"] = val
		}
	}
	return table
}

// Variants returns the distinct token keys a profile field answers to:
// the key itself, its lowercase form, and the lowercase form without
// underscores.
func Variants(key string) []string {
	out := []string{key}
	lower := strings.ToLower(key)
	if lower != key {
		out = append(out, lower)
	}
	if stripped := strings.ReplaceAll(lower, "_", ""); stripped != lower {
		out = append(out, stripped)
	}
	return out
}

// Stringify renders a profile value for substitution: null is empty,
// containers become JSON text.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
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
		return ""
	}
	return string(b)
}
