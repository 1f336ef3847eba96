// Package search walks decoded JSON trees (nil, bool, json.Number, float64,
// string, []any, map[string]any) looking for keys and paths.
package search

import (
	"reflect"
	"sort"
)

// MaxDepth bounds recursion over untrusted documents
const MaxDepth = 256

// SearchKeyRecursive returns every value stored under key at any depth of doc,
// in depth-first order with map keys visited in sorted order.
//
// When a map holds an array under key and also a caption.text string, each map
// element of that array gets a "title" field set to the caption text. This
// mutates doc.
func SearchKeyRecursive(doc any, key string) []any {
	var found []any
	walk(doc, func(m map[string]any) {
		val, ok := m[key]
		if !ok {
			return
		}
		if arr, ok := val.([]any); ok {
			propagateCaption(m, arr)
		}
		found = append(found, val)
	})
	return found
}

// Owners returns every map in doc that has key, in the same order as
// SearchKeyRecursive.
func Owners(doc any, key string) []map[string]any {
	var owners []map[string]any
	walk(doc, func(m map[string]any) {
		if _, ok := m[key]; ok {
			owners = append(owners, m)
		}
	})
	return owners
}

// WalkStrings calls fn for every string value held directly by a map in doc
func WalkStrings(doc any, fn func(owner map[string]any, key, value string)) {
	walk(doc, func(m map[string]any) {
		for _, k := range sortedKeys(m) {
			if s, ok := m[k].(string); ok {
				fn(m, k, s)
			}
		}
	})
}

// FirstString returns the first non-empty string stored under key anywhere in doc
func FirstString(doc any, key string) string {
	for _, v := range SearchKeyRecursive(doc, key) {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func walk(doc any, visit func(map[string]any)) {
	w := walker{visit: visit, visited: make(map[node]bool)}
	w.walk(doc, 0)
}

type node struct {
	kind reflect.Kind
	ptr  uintptr
	n    int
}

type walker struct {
	visit   func(map[string]any)
	visited map[node]bool
}

func (w *walker) walk(v any, depth int) {
	if depth > MaxDepth {
		return
	}

	switch t := v.(type) {
	case map[string]any:
		if !w.enter(t, len(t)) {
			return
		}
		w.visit(t)
		for _, k := range sortedKeys(t) {
			w.walk(t[k], depth+1)
		}
	case []any:
		if !w.enter(t, len(t)) {
			return
		}
		for _, item := range t {
			w.walk(item, depth+1)
		}
	}
}

// enter marks a container as visited and reports whether it is new.
// Two slices are the same node only if they share backing array and length.
func (w *walker) enter(v any, n int) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && n == 0 {
		return true
	}
	id := node{kind: rv.Kind(), ptr: rv.Pointer(), n: n}
	if rv.Kind() == reflect.Map {
		id.n = 0
	}
	if w.visited[id] {
		return false
	}
	w.visited[id] = true
	return true
}

func propagateCaption(owner map[string]any, arr []any) {
	caption, ok := owner["caption"].(map[string]any)
	if !ok {
		return
	}
	text, ok := caption["text"].(string)
	if !ok {
		return
	}
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			m["title"] = text
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
