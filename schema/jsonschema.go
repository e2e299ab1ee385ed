package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchema is a Schema backed by a compiled JSON Schema document
// (draft 2020-12 unless the document declares otherwise). Formats such as
// "email" are asserted.
type JSONSchema struct {
	name     string
	compiled *jsonschema.Schema
}

// CompileJSON compiles src under the given name. The name only identifies
// the document in compiler errors.
func CompileJSON(name, src string) (*JSONSchema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	url := "mem:///" + name + ".json"
	if err := c.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return &JSONSchema{name: name, compiled: compiled}, nil
}

// MustJSON is like CompileJSON but panics on error. It is meant for
// package-level catalog declarations.
func MustJSON(name, src string) *JSONSchema {
	s, err := CompileJSON(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *JSONSchema) Name() string { return s.name }

// Parse normalizes raw into the JSON value model and validates it. The
// normalized value is returned on success.
func (s *JSONSchema) Parse(raw any) (any, error) {
	v, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := s.compiled.Validate(v); err != nil {
		return nil, convert(err)
	}
	return v, nil
}

func convert(err error) *ValidationError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return NewIssue("invalid", err.Error())
	}
	out := &ValidationError{}
	collectLeaves(ve, out)
	return out
}

func collectLeaves(ve *jsonschema.ValidationError, out *ValidationError) {
	if len(ve.Causes) == 0 {
		out.Issues = append(out.Issues, Issue{
			Path:    splitPointer(ve.InstanceLocation),
			Message: ve.Message,
			Code:    keyword(ve.KeywordLocation),
		})
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

// keyword returns the last segment of a keyword location, e.g. "format" for
// "/properties/email/format".
func keyword(loc string) string {
	if loc == "" {
		return "schema"
	}
	i := strings.LastIndex(loc, "/")
	if i < 0 || i == len(loc)-1 {
		return strings.Trim(loc, "/")
	}
	return loc[i+1:]
}
