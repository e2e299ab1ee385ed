// Package client executes catalog operations from the calling side.
//
// A Caller validates the request, hands it to a Resolver (the only place
// that performs I/O), validates the response and reports the outcome on its
// Succeeded and Failed topics.
package client

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/topic"
)

// Request is what a Resolver receives for one call. Input has already
// passed request validation; it is nil for operations without a request
// shape.
type Request[M any] struct {
	Operation  string
	Definition api.Definition[M]
	Input      any
	CallID     string
}

// Resolver performs the transport call for one operation and returns the
// unvalidated response. ctx is the caller's cancellation token.
type Resolver[M any] func(ctx context.Context, req Request[M]) (any, error)

type Caller[M any] struct {
	catalog   *api.Catalog[M]
	resolve   Resolver[M]
	formatter atomic.Pointer[api.ErrorFormatter]
	succeeded *topic.Topic[api.Success]
	failed    *topic.Topic[api.Failure]
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*options)

type options struct {
	formatter api.ErrorFormatter
	logger    *slog.Logger
	succeeded *topic.Topic[api.Success]
	failed    *topic.Topic[api.Failure]
}

// WithErrorFormatter installs the formatter applied to every error raised
// after the definition lookup.
func WithErrorFormatter(f api.ErrorFormatter) Option {
	return func(o *options) { o.formatter = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTopics makes the Caller publish on existing topics, e.g. ones shared
// by several callers.
func WithTopics(succeeded *topic.Topic[api.Success], failed *topic.Topic[api.Failure]) Option {
	return func(o *options) {
		o.succeeded = succeeded
		o.failed = failed
	}
}

func New[M any](catalog *api.Catalog[M], resolve Resolver[M], opts ...Option) *Caller[M] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.succeeded == nil {
		o.succeeded = topic.New[api.Success](topic.WithName("succeeded"), topic.WithLogger(o.logger))
	}
	if o.failed == nil {
		o.failed = topic.New[api.Failure](topic.WithName("failed"), topic.WithLogger(o.logger))
	}

	c := &Caller[M]{
		catalog:   catalog,
		resolve:   resolve,
		succeeded: o.succeeded,
		failed:    o.failed,
		logger:    o.logger,
		now:       time.Now,
	}
	c.SetErrorFormatter(o.formatter)
	return c
}

// SetErrorFormatter replaces the formatter for subsequent calls. A nil
// formatter disables formatting.
func (c *Caller[M]) SetErrorFormatter(f api.ErrorFormatter) {
	if f == nil {
		c.formatter.Store(nil)
		return
	}
	c.formatter.Store(&f)
}

func (c *Caller[M]) Catalog() *api.Catalog[M] { return c.catalog }

func (c *Caller[M]) Succeeded() *topic.Topic[api.Success] { return c.succeeded }

func (c *Caller[M]) Failed() *topic.Topic[api.Failure] { return c.failed }

// Call runs operation name with input. The returned value is the validated
// response, nil for operations without a response shape.
func (c *Caller[M]) Call(ctx context.Context, name string, input any) (any, error) {
	def, err := c.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}

	req, err := def.ParseRequest(name, input)
	if err != nil {
		return nil, c.format(err, api.StageRequestValidation)
	}

	callID := uuid.NewString()
	start := c.now()

	raw, err := c.resolve(ctx, Request[M]{
		Operation:  name,
		Definition: def,
		Input:      req,
		CallID:     callID,
	})
	if err != nil {
		err = c.format(err, api.StageResolver)
		c.failed.Publish(api.Failure{
			Operation: name,
			CallID:    callID,
			Request:   req,
			Err:       err,
			Duration:  c.now().Sub(start),
		})
		return nil, err
	}

	resp, err := def.ParseResponse(name, raw)
	if err != nil {
		c.logger.Warn("response failed validation", "operation", name, "call_id", callID, "error", err)
		return nil, c.format(err, api.StageResponseValidation)
	}

	c.succeeded.Publish(api.Success{
		Operation: name,
		CallID:    callID,
		Request:   req,
		Response:  resp,
		Duration:  c.now().Sub(start),
	})
	return resp, nil
}

// format applies the installed formatter. A formatter returning nil cannot
// turn a failed call into a success; the original error is kept.
func (c *Caller[M]) format(err error, stage api.Stage) error {
	f := c.formatter.Load()
	if f == nil {
		return err
	}
	if formatted := (*f)(err, stage); formatted != nil {
		return formatted
	}
	return err
}
