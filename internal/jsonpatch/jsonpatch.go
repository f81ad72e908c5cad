// Package jsonpatch provides the minimal subset of RFC 6902 JSON Patch used
// by the streaming argument tracker: add, replace, and remove operations on
// top-level object properties, with RFC 6901 path escaping.
package jsonpatch

import (
	"encoding/json"
	"strings"
)

// Op identifies a patch operation kind.
type Op string

const (
	OpAdd     Op = "add"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Operation is a single patch operation. Value is unset for remove.
type Operation struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// MarshalJSON keeps the value field on add and replace even when the value
// is an explicit JSON null. Remove carries no value, so the field is dropped
// entirely rather than serialized as null.
func (o Operation) MarshalJSON() ([]byte, error) {
	if o.Op == OpRemove {
		return json.Marshal(struct {
			Op   Op     `json:"op"`
			Path string `json:"path"`
		}{o.Op, o.Path})
	}
	type wire Operation
	return json.Marshal(wire(o))
}

// Add returns an add operation for the given top-level property.
func Add(property string, value any) Operation {
	return Operation{Op: OpAdd, Path: PropertyPath(property), Value: value}
}

// Replace returns a replace operation for the given top-level property.
func Replace(property string, value any) Operation {
	return Operation{Op: OpReplace, Path: PropertyPath(property), Value: value}
}

// Remove returns a remove operation for the given top-level property.
func Remove(property string) Operation {
	return Operation{Op: OpRemove, Path: PropertyPath(property)}
}

// PropertyPath returns the JSON Pointer for a top-level object property.
func PropertyPath(property string) string {
	return "/" + EscapeSegment(property)
}

// EscapeSegment escapes a single JSON Pointer reference token per RFC 6901:
// "~" becomes "~0" and "/" becomes "~1". The order matters; escaping "/"
// first would corrupt pre-existing tildes.
func EscapeSegment(segment string) string {
	segment = strings.ReplaceAll(segment, "~", "~0")
	return strings.ReplaceAll(segment, "/", "~1")
}

// UnescapeSegment reverses EscapeSegment.
func UnescapeSegment(segment string) string {
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

// Apply replays an operation against a document, returning the updated
// document. It only understands the single-segment paths this package
// produces; consumers reassembling streamed argument state use it to fold
// args_delta operations in arrival order.
func Apply(doc map[string]any, op Operation) map[string]any {
	if doc == nil {
		doc = make(map[string]any)
	}
	key := UnescapeSegment(strings.TrimPrefix(op.Path, "/"))
	switch op.Op {
	case OpAdd, OpReplace:
		doc[key] = op.Value
	case OpRemove:
		delete(doc, key)
	}
	return doc
}
