// Package config implements openPMD's backend configuration layer:
// parsing inline JSON, inline TOML, or an @path/to/file reference into
// a normalized tree, deep-merging configs, and tracing which keys the
// core actually consulted so unused configuration can be reported back
// to the user. Ported from openPMD-api's auxiliary::TracingJSON
// (src/auxiliary/JSON.cpp).
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theory/jsonpath"
)

// TracingJSON wraps a decoded configuration tree and records every key
// read through it. Unlike the original's reference-counted shadow
// sharing a single root with all descendants, each TracingJSON node
// keeps its own absolute path from the root so InvertShadow can be
// called on any node, not only the root.
type TracingJSON struct {
	value any
	path  string // JSONPath-style absolute path from the root, e.g. "$.backends.jsonfile"

	// shared across every node produced from the same root via Get,
	// so a leaf's read is visible when InvertShadow runs at the root.
	touched map[string]bool
}

// NewTracingJSON wraps value (the result of decoding JSON or converted
// TOML) as the root of a trace.
func NewTracingJSON(value any) *TracingJSON {
	return &TracingJSON{value: value, path: "$", touched: make(map[string]bool)}
}

// Value returns the raw, untraced value at this node.
func (t *TracingJSON) Value() any { return t.value }

func (t *TracingJSON) mark() {
	t.touched[t.path] = true
}

func (t *TracingJSON) child(key string, value any) *TracingJSON {
	return &TracingJSON{value: value, path: t.path + "." + key, touched: t.touched}
}

func (t *TracingJSON) index(i int, value any) *TracingJSON {
	return &TracingJSON{value: value, path: fmt.Sprintf("%s[%d]", t.path, i), touched: t.touched}
}

// Get descends into a JSON object field, marking both this node and
// the returned child as read. ok is false if this node is not an
// object or the key is absent.
func (t *TracingJSON) Get(key string) (*TracingJSON, bool) {
	t.mark()
	obj, ok := t.value.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[key]
	if !ok {
		return nil, false
	}
	child := t.child(key, v)
	child.mark()
	return child, true
}

// Index descends into a JSON array element, marking both nodes read.
func (t *TracingJSON) Index(i int) (*TracingJSON, bool) {
	t.mark()
	arr, ok := t.value.([]any)
	if !ok || i < 0 || i >= len(arr) {
		return nil, false
	}
	child := t.index(i, arr[i])
	child.mark()
	return child, true
}

// Keys lists this node's object keys without marking them individually
// read; callers that enumerate keys to decide which to Get still need
// to mark the ones they consult.
func (t *TracingJSON) Keys() []string {
	t.mark()
	obj, ok := t.value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns this node's value as a string.
func (t *TracingJSON) String() (string, bool) {
	t.mark()
	s, ok := t.value.(string)
	return s, ok
}

// Float64 returns this node's value as a float64 (encoding/json decodes
// all JSON numbers as float64).
func (t *TracingJSON) Float64() (float64, bool) {
	t.mark()
	f, ok := t.value.(float64)
	return f, ok
}

func (t *TracingJSON) Bool() (bool, bool) {
	t.mark()
	b, ok := t.value.(bool)
	return b, ok
}

// DeclareFullyRead marks this node and every descendant as read,
// without inspecting their values. Used for opaque pass-through
// subtrees a backend consumes wholesale, e.g. engine.parameters or a
// per-dataset operator's parameters.
func (t *TracingJSON) DeclareFullyRead() {
	t.mark()
	declareFullyRead(t.value, t.path, t.touched)
}

func declareFullyRead(value any, path string, touched map[string]bool) {
	touched[path] = true
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			declareFullyRead(child, path+"."+k, touched)
		}
	case []any:
		for i, child := range v {
			declareFullyRead(child, fmt.Sprintf("%s[%d]", path, i), touched)
		}
	}
}

// InvertShadow walks the original tree from this node and returns the
// JSONPath of every key that was never read, in a stable order. Each
// path is canonicalised through jsonpath.Parse; one that fails to parse
// is reported verbatim.
func (t *TracingJSON) InvertShadow() []string {
	var unused []string
	collectUnused(t.value, t.path, t.touched, &unused)
	sort.Strings(unused)
	for i, p := range unused {
		if canonical, err := jsonpath.Parse(p); err == nil {
			unused[i] = canonical.String()
		}
	}
	return unused
}

func collectUnused(value any, path string, touched map[string]bool, out *[]string) {
	switch v := value.(type) {
	case map[string]any:
		if !touched[path] {
			*out = append(*out, path)
			return
		}
		for k, child := range v {
			collectUnused(child, path+"."+k, touched, out)
		}
	case []any:
		if !touched[path] {
			*out = append(*out, path)
			return
		}
		for i, child := range v {
			collectUnused(child, fmt.Sprintf("%s[%d]", path, i), touched, out)
		}
	default:
		if !touched[path] {
			*out = append(*out, path)
		}
	}
}

// FormatUnused renders InvertShadow's result as a single human-readable
// warning, or "" if nothing was unused.
func FormatUnused(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	return "unused configuration keys: " + strings.Join(paths, ", ")
}
