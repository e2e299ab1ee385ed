package api

import (
	"errors"
	"sort"

	"github.com/unruly-software/api/schema"
)

// Definition describes one operation. A nil Request or Response schema means
// the operation has no payload in that direction.
type Definition[M any] struct {
	Request  schema.Schema
	Response schema.Schema
	Metadata M
}

// HasRequest reports whether the operation declares a request shape.
func (d Definition[M]) HasRequest() bool { return d.Request != nil }

// HasResponse reports whether the operation declares a response shape.
func (d Definition[M]) HasResponse() bool { return d.Response != nil }

// ParseRequest validates raw against the request shape. Without a shape raw
// must be empty and the unit value (nil) is returned.
func (d Definition[M]) ParseRequest(name string, raw any) (any, error) {
	v, err := parse(d.Request, raw)
	if err != nil {
		return nil, &RequestValidationError{Operation: name, Err: err}
	}
	return v, nil
}

// ParseResponse validates raw against the response shape with the same
// empty-payload rule as ParseRequest.
func (d Definition[M]) ParseResponse(name string, raw any) (any, error) {
	v, err := parse(d.Response, raw)
	if err != nil {
		return nil, &ResponseValidationError{Operation: name, Err: err}
	}
	return v, nil
}

func parse(s schema.Schema, raw any) (any, *schema.ValidationError) {
	if s == nil {
		if !schema.IsEmpty(raw) {
			return nil, schema.NewIssue(CodeUnexpectedPayload, "expected no payload")
		}
		return nil, nil
	}
	v, err := s.Parse(raw)
	if err == nil {
		return v, nil
	}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return nil, ve
	}
	return nil, schema.NewIssue("custom", err.Error())
}

// Catalog is an immutable set of operation definitions.
type Catalog[M any] struct {
	defs  map[string]Definition[M]
	names []string
}

// NewCatalog copies defs into a new Catalog. Later changes to defs are not
// observed.
func NewCatalog[M any](defs map[string]Definition[M]) *Catalog[M] {
	c := &Catalog[M]{
		defs:  make(map[string]Definition[M], len(defs)),
		names: make([]string, 0, len(defs)),
	}
	for name, def := range defs {
		c.defs[name] = def
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c
}

// Lookup returns the definition registered under name or an
// *OperationNotFoundError.
func (c *Catalog[M]) Lookup(name string) (Definition[M], error) {
	def, ok := c.defs[name]
	if !ok {
		return Definition[M]{}, &OperationNotFoundError{Name: name}
	}
	return def, nil
}

func (c *Catalog[M]) Has(name string) bool {
	_, ok := c.defs[name]
	return ok
}

// Names returns the operation names in sorted order.
func (c *Catalog[M]) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

func (c *Catalog[M]) Len() int { return len(c.names) }

// Each calls fn for every operation in name order.
func (c *Catalog[M]) Each(fn func(name string, def Definition[M])) {
	for _, name := range c.names {
		fn(name, c.defs[name])
	}
}
