package schema

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

const userSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"email": {"type": "string", "format": "email"},
		"tags": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["name", "email"],
	"additionalProperties": false
}`

func TestJSONSchemaParse(t *testing.T) {
	s := MustJSON("user", userSchema)

	type payload struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	tests := []struct {
		name     string
		raw      any
		wantCode string
		wantPath []string
	}{
		{name: "struct", raw: payload{Name: "Alice", Email: "alice@test.com"}},
		{name: "map", raw: map[string]any{"name": "Bob", "email": "bob@test.com"}},
		{name: "bytes", raw: []byte(`{"name":"Carol","email":"carol@test.com"}`)},
		{name: "bad email", raw: payload{Name: "Alice", Email: "not-an-email"}, wantCode: "format", wantPath: []string{"email"}},
		{name: "missing email", raw: map[string]any{"name": "Alice"}, wantCode: "required", wantPath: []string{}},
		{name: "bad item", raw: map[string]any{"name": "A", "email": "a@b.co", "tags": []any{"x", 1}}, wantCode: "type", wantPath: []string{"tags", "1"}},
		{name: "not json", raw: []byte(`{"name":`), wantCode: "invalid_json", wantPath: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := s.Parse(tc.raw)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if _, ok := v.(map[string]any); !ok {
					t.Fatalf("expected normalized object, got %T", v)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(ve.Issues) == 0 {
				t.Fatal("expected at least one issue")
			}
			issue := ve.Issues[0]
			if issue.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q (%s)", tc.wantCode, issue.Code, issue.Message)
			}
			if !reflect.DeepEqual(issue.Path, tc.wantPath) {
				t.Fatalf("expected path %v, got %v", tc.wantPath, issue.Path)
			}
		})
	}
}

func TestValidationErrorMessageIsIssueList(t *testing.T) {
	err := &ValidationError{Issues: []Issue{{Path: []string{"a", "b"}, Message: "bad", Code: "custom"}}}

	var decoded []Issue
	if e := json.Unmarshal([]byte(err.Error()), &decoded); e != nil {
		t.Fatalf("error message is not JSON: %v", e)
	}
	if !reflect.DeepEqual(decoded, err.Issues) {
		t.Fatalf("expected %v, got %v", err.Issues, decoded)
	}
	if (&ValidationError{}).Error() != "[]" {
		t.Fatalf("expected empty list, got %s", (&ValidationError{}).Error())
	}
}

func TestIsEmpty(t *testing.T) {
	var nilPtr *struct{ A int }
	var nilMap map[string]any

	empty := []any{nil, struct{}{}, nilPtr, nilMap, []byte(nil), []byte("  "), json.RawMessage("null"), []byte(" null ")}
	for i, v := range empty {
		if !IsEmpty(v) {
			t.Errorf("case %d: expected %#v to be empty", i, v)
		}
	}

	nonEmpty := []any{0, "", false, map[string]any{}, []byte("{}"), struct{ A int }{}, &struct{}{}}
	for i, v := range nonEmpty {
		if IsEmpty(v) {
			t.Errorf("case %d: expected %#v to be non-empty", i, v)
		}
	}
}

func TestDecode(t *testing.T) {
	type user struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	u, err := Decode[user](map[string]any{"id": float64(3), "name": "Dan"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.ID != 3 || u.Name != "Dan" {
		t.Fatalf("unexpected user %+v", u)
	}

	p, err := Decode[*user](nil)
	if err != nil || p != nil {
		t.Fatalf("expected nil pointer, got %v, %v", p, err)
	}

	if _, err := Decode[user]("nope"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFunc(t *testing.T) {
	positive := Func(func(raw any) (any, error) {
		n, ok := raw.(int)
		if !ok || n <= 0 {
			return nil, NewIssue("too_small", "must be positive")
		}
		return n, nil
	})

	if _, err := positive.Parse(-1); err == nil || !strings.Contains(err.Error(), "too_small") {
		t.Fatalf("expected too_small issue, got %v", err)
	}
	if v, err := positive.Parse(2); err != nil || v != 2 {
		t.Fatalf("expected 2, got %v, %v", v, err)
	}
}

func TestCompileJSONRejectsInvalidDocument(t *testing.T) {
	if _, err := CompileJSON("broken", `{"type": 12}`); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestSplitPointer(t *testing.T) {
	got := splitPointer("/a~1b/c~0d/0")
	want := []string{"a/b", "c~d", "0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
