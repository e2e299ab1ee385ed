// Package natsadapter serves a dispatcher over NATS request/reply and
// provides the matching client resolver.
//
// Every operation listens on the subject named by its metadata. The request
// body is the JSON request (empty for none); the reply is a JSON
// message.Envelope carrying either the payload or the error and status.
package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/codec"
	"github.com/unruly-software/api/message"
	"github.com/unruly-software/api/server"
)

// CallIDHeader carries the caller's call id to the server.
const CallIDHeader = "Uapi-Call-Id"

// Subject is implemented by operation metadata served over NATS.
type Subject interface {
	NATSSubject() string
}

// ContextFunc builds the initial route context for a request message.
type ContextFunc[C any] func(msg *nats.Msg) (C, error)

type Option func(*options)

type options struct {
	queue   string
	timeout time.Duration
	logger  *slog.Logger
}

// WithQueue subscribes in a queue group so replicas share the load.
func WithQueue(group string) Option {
	return func(o *options) { o.queue = group }
}

// WithTimeout cancels the dispatch context of a request after d. Zero means
// no limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Service is the set of subscriptions created by Serve.
type Service struct {
	subs []*nats.Subscription
	// ctx is the parent of every dispatch; Unsubscribe cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// Subjects lists the subscribed subjects.
func (s *Service) Subjects() []string {
	out := make([]string, len(s.subs))
	for i, sub := range s.subs {
		out[i] = sub.Subject
	}
	return out
}

// Drain stops receiving and lets in-flight requests finish.
func (s *Service) Drain() error {
	var errs []error
	for _, sub := range s.subs {
		errs = append(errs, sub.Drain())
	}
	return errors.Join(errs...)
}

// Unsubscribe stops receiving and cancels in-flight requests.
func (s *Service) Unsubscribe() error {
	defer s.cancel()
	var errs []error
	for _, sub := range s.subs {
		errs = append(errs, sub.Unsubscribe())
	}
	return errors.Join(errs...)
}

// Serve subscribes every catalog operation on nc. On error, subscriptions
// already made are removed.
func Serve[M Subject, C any](nc *nats.Conn, d *server.Dispatcher[M, C], newContext ContextFunc[C], opts ...Option) (*Service, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := codec.Get(codec.TypeJSON)
	if err != nil {
		return nil, err
	}

	svc := &Service{}
	svc.ctx, svc.cancel = context.WithCancel(context.Background())
	for _, name := range d.Catalog().Names() {
		def, _ := d.Catalog().Lookup(name)
		subject := def.Metadata.NATSSubject()
		h := handler(svc.ctx, d, name, newContext, c, o)

		var sub *nats.Subscription
		if o.queue != "" {
			sub, err = nc.QueueSubscribe(subject, o.queue, h)
		} else {
			sub, err = nc.Subscribe(subject, h)
		}
		if err != nil {
			svc.Unsubscribe()
			return nil, fmt.Errorf("natsadapter: subscribe %s: %w", subject, err)
		}
		svc.subs = append(svc.subs, sub)
	}
	if err := nc.Flush(); err != nil {
		svc.Unsubscribe()
		return nil, err
	}
	return svc, nil
}

func handler[M Subject, C any](parent context.Context, d *server.Dispatcher[M, C], name string, newContext ContextFunc[C], c codec.Codec, o options) nats.MsgHandler {
	logger := o.logger
	return func(msg *nats.Msg) {
		start := time.Now()
		req := &message.Envelope{Operation: name}
		if msg.Header != nil {
			req.ID = msg.Header.Get(CallIDHeader)
		}

		ctx, cancel := parent, context.CancelFunc(func() {})
		if o.timeout > 0 {
			ctx, cancel = context.WithTimeout(parent, o.timeout)
		}
		resp := dispatch(ctx, d, name, newContext, msg, req, logger)
		cancel()

		body, err := c.Encode(resp)
		if err != nil {
			logger.Error("encode reply", "operation", name, "error", err)
			return
		}
		if err := msg.Respond(body); err != nil {
			logger.Warn("respond", "operation", name, "subject", msg.Subject, "error", err)
			return
		}

		attrs := []any{
			"operation", name,
			"call_id", req.ID,
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if resp.Failed() {
			logger.Warn("nats request failed", append(attrs, "status", resp.Status, "error", resp.Error)...)
			return
		}
		logger.Debug("nats request", attrs...)
	}
}

// dispatch runs on the subscription goroutine, so a panic is turned into a
// 500 reply instead of taking the connection down.
func dispatch[M Subject, C any](ctx context.Context, d *server.Dispatcher[M, C], name string, newContext ContextFunc[C], msg *nats.Msg, req *message.Envelope, logger *slog.Logger) (resp *message.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic serving nats request", "operation", name, "call_id", req.ID, "panic", r)
			resp = message.Fail(req, message.StatusError, fmt.Sprintf("internal error: %v", r))
		}
	}()

	initial, err := newContext(msg)
	if err != nil {
		return message.Fail(req, uint16(api.StatusCode(err)), err.Error())
	}

	var raw any
	if len(msg.Data) > 0 {
		raw = json.RawMessage(msg.Data)
	}
	out, err := d.Dispatch(ctx, name, initial, raw)
	if err != nil {
		return message.Fail(req, uint16(api.StatusCode(err)), err.Error())
	}
	reply, err := message.Reply(req, out)
	if err != nil {
		return message.Fail(req, message.StatusError, err.Error())
	}
	return reply
}
