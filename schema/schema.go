// Package schema defines the validation capability operations are declared
// with: a Schema parses an unknown value into its validated form or fails
// with a structured ValidationError.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Schema validates raw input. Parse returns the validated value or an error;
// implementations in this package always fail with *ValidationError.
type Schema interface {
	Parse(raw any) (any, error)
}

// Func adapts a plain function to Schema.
type Func func(raw any) (any, error)

func (f Func) Parse(raw any) (any, error) { return f(raw) }

// Issue is one validation problem. Path is the sequence of keys leading to
// the offending value, empty for the root.
type Issue struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

type ValidationError struct {
	Issues []Issue
}

// Error returns the issue list serialized as JSON.
func (e *ValidationError) Error() string {
	issues := e.Issues
	if issues == nil {
		issues = []Issue{}
	}
	b, err := json.Marshal(issues)
	if err != nil {
		return fmt.Sprintf("validation failed with %d issues", len(e.Issues))
	}
	return string(b)
}

// NewIssue builds a single-issue ValidationError.
func NewIssue(code, message string, path ...string) *ValidationError {
	if path == nil {
		path = []string{}
	}
	return &ValidationError{Issues: []Issue{{Path: path, Message: message, Code: code}}}
}

// IsEmpty reports whether v counts as "no payload": nil, an empty struct,
// a typed nil pointer/map/slice/interface, or JSON bytes that are blank or null.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case []byte:
		return isBlankJSON(x)
	case json.RawMessage:
		return isBlankJSON(x)
	case string:
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	case reflect.Struct:
		return rv.NumField() == 0
	}
	return false
}

func isBlankJSON(b []byte) bool {
	t := bytes.TrimSpace(b)
	return len(t) == 0 || string(t) == "null"
}

// Normalize converts v into the generic JSON value model (map[string]any,
// []any, float64, string, bool, nil). Byte slices and json.RawMessage are
// decoded as JSON text; everything else round-trips through encoding/json.
func Normalize(v any) (any, error) {
	var data []byte
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		data = x
	case json.RawMessage:
		data = x
	case string, bool, float64:
		return x, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, NewIssue("invalid_type", err.Error())
		}
		data = b
	}
	if isBlankJSON(data) {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, NewIssue("invalid_json", err.Error())
	}
	return out, nil
}

// Decode converts a validated value into T. A nil value yields the zero T.
func Decode[T any](v any) (T, error) {
	var out T
	if v == nil {
		return out, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	var data []byte
	switch x := v.(type) {
	case []byte:
		data = x
	case json.RawMessage:
		data = x
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("schema: encode %T: %w", v, err)
		}
		data = b
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("schema: decode into %T: %w", out, err)
	}
	return out, nil
}

// splitPointer turns a JSON pointer such as "/users/0/name" into its
// unescaped segments.
func splitPointer(ptr string) []string {
	if ptr == "" || ptr == "/" {
		return []string{}
	}
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return parts
}
