package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unruly-software/api/codec"
)

// Dialer opens a connection to addr.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// Pool keeps Size multiplexed transports per address and spreads calls
// over them round robin. Transports whose connection failed are replaced on
// the next Get.
type Pool struct {
	size      int
	codec     codec.Codec
	heartbeat time.Duration
	dial      Dialer

	mu     sync.Mutex
	slots  map[string]*slot
	closed bool
}

type slot struct {
	mu    sync.Mutex
	next  atomic.Uint64
	conns []*ClientTransport
}

type PoolOption func(*Pool)

func WithDialer(d Dialer) PoolOption {
	return func(p *Pool) { p.dial = d }
}

func WithHeartbeat(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeat = d }
}

func NewPool(size int, c codec.Codec, opts ...PoolOption) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{
		size:      size,
		codec:     c,
		heartbeat: DefaultHeartbeat,
		slots:     make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.dial == nil {
		var d net.Dialer
		p.dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		}
	}
	return p
}

// Get returns a live transport for addr, dialing if needed.
func (p *Pool) Get(ctx context.Context, addr string) (*ClientTransport, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	s, ok := p.slots[addr]
	if !ok {
		s = &slot{conns: make([]*ClientTransport, p.size)}
		p.slots[addr] = s
	}
	p.mu.Unlock()

	i := int(s.next.Add(1) % uint64(p.size))

	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.conns[i]; t != nil && !t.Closed() {
		return t, nil
	}
	conn, err := p.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	t := NewClientTransport(conn, p.codec, p.heartbeat)
	s.conns[i] = t
	return t, nil
}

// Close closes every pooled transport. Get fails afterwards.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for addr, s := range p.slots {
		s.mu.Lock()
		for _, t := range s.conns {
			if t != nil {
				t.Close()
			}
		}
		s.mu.Unlock()
		delete(p.slots, addr)
	}
	return nil
}
