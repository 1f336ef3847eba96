package search

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Lookup follows path through nested maps and arrays. Array steps are decimal
// indices. It reports false as soon as a step is missing or of the wrong type.
func Lookup(doc any, path ...string) (any, bool) {
	cur := doc
	for _, step := range path {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[step]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(step)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			cur = v[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// String returns the string at path, or ""
func String(doc any, path ...string) string {
	v, _ := Lookup(doc, path...)
	s, _ := v.(string)
	return s
}

// Int returns the integer at path, or 0. Numeric strings are accepted.
func Int(doc any, path ...string) int {
	v, _ := Lookup(doc, path...)
	return ToInt(v)
}

// Slice returns the array at path, or nil
func Slice(doc any, path ...string) []any {
	v, _ := Lookup(doc, path...)
	s, _ := v.([]any)
	return s
}

// Map returns the object at path, or nil
func Map(doc any, path ...string) map[string]any {
	v, _ := Lookup(doc, path...)
	m, _ := v.(map[string]any)
	return m
}

// Bool returns the boolean at path and whether it was present
func Bool(doc any, path ...string) (bool, bool) {
	v, _ := Lookup(doc, path...)
	b, ok := v.(bool)
	return b, ok
}

// FirstOf returns the first non-empty string among the given keys of m
func FirstOf(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// ToInt converts a decoded JSON scalar to int
func ToInt(v any) int {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(math.Round(f))
		}
	case float64:
		return int(math.Round(n))
	case int:
		return n
	case int64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return 0
}
