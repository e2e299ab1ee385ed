// Package transport carries catalog calls over the frame protocol.
//
// A ClientTransport multiplexes concurrent calls over one TCP connection.
// Each request gets a sequence number; a single receive loop reads
// responses and hands each one to the caller waiting on that number.
//
//	goroutine-1 ──Call(seq=1)──┐
//	goroutine-2 ──Call(seq=2)──┼──→ one conn ──→ server
//	goroutine-3 ──Call(seq=3)──┘
//
//	recvLoop: ←── response(seq=2) → pending[2] → goroutine-2 wakes up
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unruly-software/api/codec"
	"github.com/unruly-software/api/message"
	"github.com/unruly-software/api/protocol"
)

// ErrClosed is returned for calls on a transport whose connection is gone.
var ErrClosed = errors.New("transport: connection closed")

const DefaultHeartbeat = 30 * time.Second

type result struct {
	env *message.Envelope
	err error
}

type ClientTransport struct {
	conn    net.Conn
	codec   codec.Codec
	seq     atomic.Uint32
	pending sync.Map // uint32 → chan result
	sending sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewClientTransport takes ownership of conn and starts the receive and
// heartbeat loops. A heartbeat of 0 disables heartbeats.
func NewClientTransport(conn net.Conn, c codec.Codec, heartbeat time.Duration) *ClientTransport {
	t := &ClientTransport{
		conn:  conn,
		codec: c,
		done:  make(chan struct{}),
	}
	go t.recvLoop()
	if heartbeat > 0 {
		go t.heartbeatLoop(heartbeat)
	}
	return t
}

// Call sends env and waits for the matching response or for ctx to be done.
// A cancelled call leaves the connection usable; a late response is dropped.
func (t *ClientTransport) Call(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}

	body, err := t.codec.Encode(env)
	if err != nil {
		return nil, err
	}

	seq := t.seq.Add(1)
	ch := make(chan result, 1)
	t.pending.Store(seq, ch)
	if t.closed.Load() {
		t.pending.Delete(seq)
		return nil, ErrClosed
	}

	t.sending.Lock()
	err = protocol.Write(t.conn, protocol.Header{
		Codec: byte(t.codec.Type()),
		Kind:  protocol.KindRequest,
		Seq:   seq,
	}, body)
	t.sending.Unlock()
	if err != nil {
		t.pending.Delete(seq)
		t.fail(err)
		return nil, fmt.Errorf("transport: write: %w", err)
	}

	select {
	case res := <-ch:
		return res.env, res.err
	case <-ctx.Done():
		t.pending.Delete(seq)
		return nil, ctx.Err()
	}
}

func (t *ClientTransport) recvLoop() {
	r := protocol.NewReader(t.conn, 0)
	for {
		h, body, err := r.Read()
		if err != nil {
			t.fail(err)
			return
		}
		if h.Kind != protocol.KindResponse {
			continue
		}

		v, ok := t.pending.LoadAndDelete(h.Seq)
		if !ok {
			continue
		}
		ch := v.(chan result)

		c, err := codec.Get(codec.Type(h.Codec))
		if err != nil {
			ch <- result{err: err}
			continue
		}
		var env message.Envelope
		if err := c.Decode(body, &env); err != nil {
			ch <- result{err: fmt.Errorf("transport: decode response: %w", err)}
			continue
		}
		ch <- result{env: &env}
	}
}

func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		t.sending.Lock()
		err := protocol.Write(t.conn, protocol.Header{Kind: protocol.KindHeartbeat}, nil)
		t.sending.Unlock()
		if err != nil {
			t.fail(err)
			return
		}
	}
}

// fail marks the transport closed and releases every pending caller.
func (t *ClientTransport) fail(err error) {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)
		t.conn.Close()
	})
	t.pending.Range(func(key, _ any) bool {
		if v, ok := t.pending.LoadAndDelete(key); ok {
			v.(chan result) <- result{err: fmt.Errorf("%w: %v", ErrClosed, err)}
		}
		return true
	})
}

// Closed reports whether the connection has failed or been closed.
func (t *ClientTransport) Closed() bool { return t.closed.Load() }

func (t *ClientTransport) Close() error {
	t.fail(ErrClosed)
	return nil
}

func (t *ClientTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }
