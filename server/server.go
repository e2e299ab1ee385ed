// Package server implements catalog operations on the serving side.
//
// Routes are declared per operation with Router.Endpoint, optionally
// extended with context steps (UpdateContext, Use), and finalized with
// Handle. Router.Implement compiles the endpoints into a Dispatcher, the
// single entry point transport adapters call.
//
// Server exposes a Dispatcher over the frame protocol:
//
//	Accept conn → serveConn (one goroutine reads frames)
//	  → for each request: go serveRequest
//	    → codec decode → Dispatch → codec encode → write response (same seq)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/codec"
	"github.com/unruly-software/api/message"
	"github.com/unruly-software/api/protocol"
	"github.com/unruly-software/api/registry"
)

// ConnInfo describes the frame request a context is built for.
type ConnInfo struct {
	Remote net.Addr
	CallID string
}

// Server serves a Dispatcher over the frame protocol.
type Server[M, C any] struct {
	dispatcher *Dispatcher[M, C]
	newContext func(ctx context.Context, info ConnInfo) (C, error)
	logger     *slog.Logger
	maxBody    uint32

	listener net.Listener
	wg       sync.WaitGroup
	shutdown atomic.Bool
	// ctx is the parent of every dispatch. It is cancelled when Shutdown
	// gives up waiting for in-flight requests.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	registry registry.Registry
	service  string
	inst     registry.Instance
}

type ServerOption func(*serverOptions)

type serverOptions struct {
	logger  *slog.Logger
	maxBody uint32
}

func WithServerLogger(l *slog.Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}

// WithMaxBody bounds the request frame body size.
func WithMaxBody(n uint32) ServerOption {
	return func(o *serverOptions) { o.maxBody = n }
}

// NewServer returns a frame server for d. newContext builds the initial
// dispatch context of every request.
func NewServer[M, C any](d *Dispatcher[M, C], newContext func(ctx context.Context, info ConnInfo) (C, error), opts ...ServerOption) *Server[M, C] {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server[M, C]{
		ctx:        ctx,
		cancel:     cancel,
		dispatcher: d,
		newContext: newContext,
		logger:     o.logger,
		maxBody:    o.maxBody,
		conns:      make(map[net.Conn]struct{}),
	}
}

// Listen opens the listening socket. Serve must be called afterwards.
func (s *Server[M, C]) Listen(network, address string) error {
	l, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

// Addr returns the listening address, nil before Listen.
func (s *Server[M, C]) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Register announces the server under service in reg. Shutdown
// deregisters it.
func (s *Server[M, C]) Register(ctx context.Context, reg registry.Registry, service string, inst registry.Instance, ttl time.Duration) error {
	if err := reg.Register(ctx, service, inst, ttl); err != nil {
		return err
	}
	s.mu.Lock()
	s.registry, s.service, s.inst = reg, service, inst
	s.mu.Unlock()
	return nil
}

// Serve accepts connections until Shutdown. It returns nil after a
// Shutdown and the accept error otherwise.
func (s *Server[M, C]) Serve() error {
	if s.listener == nil {
		return errors.New("server: Serve called before Listen")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		go s.serveConn(conn)
	}
}

// ListenAndServe is Listen followed by Serve.
func (s *Server[M, C]) ListenAndServe(network, address string) error {
	if err := s.Listen(network, address); err != nil {
		return err
	}
	return s.Serve()
}

// serveConn reads frames sequentially and handles each request on its own
// goroutine. Responses share the connection's write lock. Requests still
// running when the connection drops see their context cancelled.
func (s *Server[M, C]) serveConn(conn net.Conn) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer func() {
		cancel()
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	r := protocol.NewReader(conn, s.maxBody)
	writeMu := &sync.Mutex{}
	for {
		h, body, err := r.Read()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !s.shutdown.Load() {
				s.logger.Debug("connection closed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}
		if h.Kind == protocol.KindHeartbeat {
			continue
		}
		if h.Kind != protocol.KindRequest {
			s.logger.Warn("unexpected frame kind", "kind", h.Kind.String(), "remote", conn.RemoteAddr().String())
			continue
		}
		if s.shutdown.Load() {
			return
		}
		s.wg.Add(1)
		go s.serveRequest(ctx, conn, writeMu, h, body)
	}
}

func (s *Server[M, C]) serveRequest(ctx context.Context, conn net.Conn, writeMu *sync.Mutex, h protocol.Header, body []byte) {
	defer s.wg.Done()
	start := time.Now()

	c, err := codec.Get(codec.Type(h.Codec))
	if err != nil {
		s.logger.Warn("rejecting frame", "seq", h.Seq, "error", err)
		c, _ = codec.Get(codec.TypeJSON)
		s.reply(conn, writeMu, h, c, message.Fail(&message.Envelope{}, 400, err.Error()))
		return
	}

	var req message.Envelope
	if err := c.Decode(body, &req); err != nil {
		s.reply(conn, writeMu, h, c, message.Fail(&req, 400, "malformed request: "+err.Error()))
		return
	}

	resp := s.handle(ctx, &req, conn.RemoteAddr())
	s.reply(conn, writeMu, h, c, resp)

	attrs := []any{
		"operation", req.Operation,
		"call_id", req.ID,
		"seq", h.Seq,
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if resp.Failed() {
		s.logger.Warn("frame request failed", append(attrs, "status", resp.Status, "error", resp.Error)...)
		return
	}
	s.logger.Info("frame request", attrs...)
}

func (s *Server[M, C]) handle(ctx context.Context, req *message.Envelope, remote net.Addr) (resp *message.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic serving frame request", "operation", req.Operation, "panic", r)
			resp = message.Fail(req, 500, fmt.Sprintf("internal error: %v", r))
		}
	}()

	initial, err := s.newContext(ctx, ConnInfo{Remote: remote, CallID: req.ID})
	if err != nil {
		return message.Fail(req, uint16(api.StatusCode(err)), err.Error())
	}

	var raw any
	if len(req.Payload) > 0 {
		raw = json.RawMessage(req.Payload)
	}
	out, err := s.dispatcher.Dispatch(ctx, req.Operation, initial, raw)
	if err != nil {
		return message.Fail(req, uint16(api.StatusCode(err)), err.Error())
	}
	reply, err := message.Reply(req, out)
	if err != nil {
		return message.Fail(req, 500, err.Error())
	}
	return reply
}

func (s *Server[M, C]) reply(conn net.Conn, writeMu *sync.Mutex, h protocol.Header, c codec.Codec, env *message.Envelope) {
	body, err := c.Encode(env)
	if err != nil {
		s.logger.Error("encode response", "seq", h.Seq, "error", err)
		return
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Write(conn, protocol.Header{Codec: byte(c.Type()), Kind: protocol.KindResponse, Seq: h.Seq}, body); err != nil {
		s.logger.Debug("write response", "seq", h.Seq, "error", err)
	}
}

// Shutdown deregisters the server, stops accepting connections and waits
// for in-flight requests until ctx is done. Idle connections are closed
// once the in-flight requests have finished.
func (s *Server[M, C]) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	reg, service, addr := s.registry, s.service, s.inst.Addr
	s.mu.Unlock()
	if reg != nil {
		if err := reg.Deregister(ctx, service, addr); err != nil {
			s.logger.Warn("deregister failed", "service", service, "addr", addr, "error", err)
		}
	}

	s.shutdown.Store(true)
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("server: waiting for in-flight requests: %w", ctx.Err())
	}
	s.cancel()

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	return err
}
