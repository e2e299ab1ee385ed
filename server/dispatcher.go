package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/topic"
)

// Dispatcher is the compiled entry point for every operation of a catalog.
// It is safe for concurrent use.
type Dispatcher[M, C any] struct {
	catalog   *api.Catalog[M]
	endpoints map[string]Implementation[C]
	succeeded *topic.Topic[api.Success]
	failed    *topic.Topic[api.Failure]
	logger    *slog.Logger
}

type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	succeeded *topic.Topic[api.Success]
	failed    *topic.Topic[api.Failure]
	logger    *slog.Logger
}

// WithNotifications makes the dispatcher publish handled calls: Success
// once the response passed validation, Failure when a step or the handler
// returned an error. Validation failures are not published. Either topic may
// be nil.
func WithNotifications(succeeded *topic.Topic[api.Success], failed *topic.Topic[api.Failure]) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.succeeded = succeeded
		o.failed = failed
	}
}

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) { o.logger = l }
}

func newDispatcher[M, C any](catalog *api.Catalog[M], endpoints map[string]Implementation[C], opts []DispatcherOption) *Dispatcher[M, C] {
	var o dispatcherOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Dispatcher[M, C]{
		catalog:   catalog,
		endpoints: endpoints,
		succeeded: o.succeeded,
		failed:    o.failed,
		logger:    o.logger,
	}
}

func (d *Dispatcher[M, C]) Catalog() *api.Catalog[M] { return d.catalog }

// Dispatch validates raw against the request shape of operation name, runs
// its endpoint from initial and validates the result against the response
// shape. Errors are returned unchanged.
func (d *Dispatcher[M, C]) Dispatch(ctx context.Context, name string, initial C, raw any) (any, error) {
	def, err := d.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	ep, ok := d.endpoints[name]
	if !ok {
		return nil, &api.OperationNotFoundError{Name: name}
	}

	req, err := def.ParseRequest(name, raw)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := ep.Handle(ctx, req, initial)
	if err != nil {
		if d.failed != nil {
			d.failed.Publish(api.Failure{Operation: name, Request: req, Err: err, Duration: time.Since(start)})
		}
		return nil, err
	}

	resp, err := def.ParseResponse(name, out)
	if err != nil {
		d.logger.Error("handler returned an invalid response", "operation", name, "error", err)
		return nil, err
	}

	if d.succeeded != nil {
		d.succeeded.Publish(api.Success{Operation: name, Request: req, Response: resp, Duration: time.Since(start)})
	}
	return resp, nil
}
