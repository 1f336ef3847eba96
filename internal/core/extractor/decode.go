package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoJSON is returned when a body could not be decoded by any cleanup strategy
var ErrNoJSON = errors.New("body is not a JSON document")

// antiScrapePrefixes are guards some APIs prepend to JSON bodies
var antiScrapePrefixes = []string{
	"for (;;);",
	"for(;;);",
	"while(1);",
	")]}',",
	")]}'",
}

// DecodeJSON parses body into a generic tree. It tries, in order, the raw
// body, the body without anti-scraping prefixes, the body without a BOM, and
// the slice from the first opening brace or bracket to the last matching
// closer. Numbers are decoded as json.Number.
func DecodeJSON(body string) (any, error) {
	for _, s := range cleanups(body) {
		if v, err := decodeStrict(s); err == nil {
			return v, nil
		}
	}
	return nil, ErrNoJSON
}

// DecodeJSONInto is DecodeJSON for rules that decode into typed structs
func DecodeJSONInto(body string, v any) error {
	for _, s := range cleanups(body) {
		if err := json.Unmarshal([]byte(s), v); err == nil {
			return nil
		}
	}
	return ErrNoJSON
}

// cleanups returns the variants of body worth trying, in order
func cleanups(body string) []string {
	s := strings.TrimSpace(body)
	if s == "" {
		return nil
	}

	variants := []string{s}
	for _, p := range antiScrapePrefixes {
		if strings.HasPrefix(s, p) {
			variants = append(variants, strings.TrimSpace(s[len(p):]))
			break
		}
	}
	if trimmed := strings.TrimPrefix(s, "\uFEFF"); trimmed != s {
		variants = append(variants, strings.TrimSpace(trimmed))
	}
	if sub := enclosed(s); sub != "" && sub != s {
		variants = append(variants, sub)
	}
	return variants
}

// DecodeJSONAfter decodes the JSON value that follows marker in body, as in
// `window.__INITIAL_STATE__ = {...};` or a `<script id="__NEXT_DATA__">` block.
// Trailing content after the value is ignored.
func DecodeJSONAfter(body, marker string) (any, error) {
	var v any
	if err := decodeAfter(body, marker, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeAfter(body, marker string, v any) error {
	idx := strings.Index(body, marker)
	if idx < 0 {
		return ErrNoJSON
	}
	rest := body[idx+len(marker):]
	start := strings.IndexAny(rest, "{[")
	if start < 0 {
		return ErrNoJSON
	}

	dec := json.NewDecoder(strings.NewReader(rest[start:]))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode after %q: %w", marker, err)
	}
	return nil
}

// RawJSON returns the first cleanup variant of body that is valid JSON, for
// rules that query paths with gjson instead of building a tree
func RawJSON(body string) (string, error) {
	for _, s := range cleanups(body) {
		if gjson.Valid(s) {
			return s, nil
		}
	}
	return "", ErrNoJSON
}

// RawJSONAfter returns the raw JSON value that follows marker in body
func RawJSONAfter(body, marker string) (string, error) {
	var raw json.RawMessage
	if err := decodeAfter(body, marker, &raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeStrict(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrNoJSON
	}
	return v, nil
}

// enclosed returns s from its first '{' or '[' to the last matching closer
func enclosed(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}
