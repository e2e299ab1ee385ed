package server

import (
	"context"
	"fmt"

	"github.com/unruly-software/api"
)

// Step transforms the context value produced by the previous step into the
// next one. Steps run in order; a failing step stops the chain.
type Step func(ctx context.Context, in any) (any, error)

// Input is what a handler receives: the validated request data, the
// operation's definition and the context produced by the route's steps.
type Input[M, C any] struct {
	Operation  string
	Definition api.Definition[M]
	Data       any
	Context    C
}

// Handler is the business function terminating a route. It returns the
// unvalidated response; nil for operations without a response shape.
type Handler[M, C any] func(ctx context.Context, in Input[M, C]) (any, error)

// Route is a route still accepting context steps. Init is the context a
// dispatch starts with, Ctx the context the next step or the handler sees.
//
// Routes are values: UpdateContext and Use never modify the receiver, so one
// route can be the base of several others.
type Route[M, Init, Ctx any] struct {
	name  string
	def   api.Definition[M]
	steps []Step
}

// UpdateContext returns a route extended with fn, which turns the current
// context into a new one of type Next.
func UpdateContext[M, Init, Ctx, Next any](r *Route[M, Init, Ctx], fn func(ctx context.Context, c Ctx) (Next, error)) *Route[M, Init, Next] {
	return &Route[M, Init, Next]{
		name:  r.name,
		def:   r.def,
		steps: appendStep(r.steps, typedStep(fn)),
	}
}

// Use returns a route extended with a step that keeps the context type,
// such as a check or an enrichment of the same struct.
func (r *Route[M, Init, Ctx]) Use(fn func(ctx context.Context, c Ctx) (Ctx, error)) *Route[M, Init, Ctx] {
	return &Route[M, Init, Ctx]{
		name:  r.name,
		def:   r.def,
		steps: appendStep(r.steps, typedStep(fn)),
	}
}

// Handle attaches the business function and finalizes the route.
func (r *Route[M, Init, Ctx]) Handle(h Handler[M, Ctx]) *Endpoint[M, Init, Ctx] {
	steps := make([]Step, len(r.steps))
	copy(steps, r.steps)
	return &Endpoint[M, Init, Ctx]{name: r.name, def: r.def, steps: steps, handler: h}
}

func (r *Route[M, Init, Ctx]) Name() string { return r.name }

func appendStep(steps []Step, s Step) []Step {
	out := make([]Step, len(steps), len(steps)+1)
	copy(out, steps)
	return append(out, s)
}

func typedStep[In, Out any](fn func(context.Context, In) (Out, error)) Step {
	return func(ctx context.Context, in any) (any, error) {
		c, ok := in.(In)
		if !ok && in != nil {
			var want In
			return nil, fmt.Errorf("context step: got %T, want %T", in, want)
		}
		return fn(ctx, c)
	}
}

// Endpoint is a finalized route. It accepts no further steps.
type Endpoint[M, Init, Ctx any] struct {
	name    string
	def     api.Definition[M]
	steps   []Step
	handler Handler[M, Ctx]
}

func (e *Endpoint[M, Init, Ctx]) Name() string { return e.name }

// Steps returns a copy of the context chain in execution order.
func (e *Endpoint[M, Init, Ctx]) Steps() []Step {
	out := make([]Step, len(e.steps))
	copy(out, e.steps)
	return out
}

// Handle runs every step from the initial context, then the handler.
func (e *Endpoint[M, Init, Ctx]) Handle(ctx context.Context, data any, initial Init) (any, error) {
	var cur any = initial
	for _, step := range e.steps {
		next, err := step(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	final, ok := cur.(Ctx)
	if !ok && cur != nil {
		return nil, fmt.Errorf("%s: context chain produced %T", e.name, cur)
	}
	return e.HandleDirect(ctx, data, final)
}

// HandleDirect calls the handler with final as its context, skipping the
// steps.
func (e *Endpoint[M, Init, Ctx]) HandleDirect(ctx context.Context, data any, final Ctx) (any, error) {
	return e.handler(ctx, Input[M, Ctx]{
		Operation:  e.name,
		Definition: e.def,
		Data:       data,
		Context:    final,
	})
}
