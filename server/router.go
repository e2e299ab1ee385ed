package server

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/unruly-software/api"
)

// Router builds routes for the operations of one catalog. C is the type of
// the initial context every dispatch starts from, typically built by a
// transport adapter from the incoming request.
type Router[M, C any] struct {
	catalog *api.Catalog[M]
}

func NewRouter[M, C any](catalog *api.Catalog[M]) *Router[M, C] {
	return &Router[M, C]{catalog: catalog}
}

func (r *Router[M, C]) Catalog() *api.Catalog[M] { return r.catalog }

// Endpoint starts a route for operation name with an empty step chain. It
// panics with *api.OperationNotFoundError if the catalog has no such
// operation; routes are declared at startup and a wrong name is a
// programming error.
func (r *Router[M, C]) Endpoint(name string) *Route[M, C, C] {
	def, err := r.catalog.Lookup(name)
	if err != nil {
		panic(err)
	}
	return &Route[M, C, C]{name: name, def: def}
}

// Implementation is a finalized route that can serve dispatches starting
// from context C. *Endpoint satisfies it.
type Implementation[C any] interface {
	Name() string
	Handle(ctx context.Context, data any, initial C) (any, error)
}

// ImplementError lists every mismatch between a catalog and the endpoints
// offered to Implement.
type ImplementError struct {
	Missing    []string
	Unknown    []string
	Duplicated []string
}

func (e *ImplementError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing implementations for "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "no definitions for "+strings.Join(e.Unknown, ", "))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, "duplicate implementations for "+strings.Join(e.Duplicated, ", "))
	}
	return "implement: " + strings.Join(parts, "; ")
}

// Implement compiles endpoints into a Dispatcher. Every catalog operation
// needs exactly one endpoint and every endpoint must name a catalog
// operation.
func (r *Router[M, C]) Implement(endpoints []Implementation[C], opts ...DispatcherOption) (*Dispatcher[M, C], error) {
	byName := make(map[string]Implementation[C], len(endpoints))
	ierr := &ImplementError{}

	for _, ep := range endpoints {
		name := ep.Name()
		if !r.catalog.Has(name) {
			ierr.Unknown = append(ierr.Unknown, name)
			continue
		}
		if _, dup := byName[name]; dup {
			ierr.Duplicated = append(ierr.Duplicated, name)
			continue
		}
		byName[name] = ep
	}
	for _, name := range r.catalog.Names() {
		if _, ok := byName[name]; !ok {
			ierr.Missing = append(ierr.Missing, name)
		}
	}

	if len(ierr.Missing)+len(ierr.Unknown)+len(ierr.Duplicated) > 0 {
		sort.Strings(ierr.Unknown)
		sort.Strings(ierr.Duplicated)
		return nil, ierr
	}
	return newDispatcher(r.catalog, byName, opts), nil
}

// MustImplement is like Implement but panics on error.
func (r *Router[M, C]) MustImplement(endpoints []Implementation[C], opts ...DispatcherOption) *Dispatcher[M, C] {
	d, err := r.Implement(endpoints, opts...)
	if err != nil {
		panic(fmt.Sprintf("server: %v", err))
	}
	return d
}
