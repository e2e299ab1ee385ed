// Package protocol frames envelopes on a byte stream.
//
// Every frame is a fixed 15-byte header followed by the body:
//
//	0      3  4  5  6  7         11        15
//	┌──────┬──┬──┬──┬──┬─────────┬─────────┬──────────────┐
//	│magic │v │ct│k │fl│   seq   │ bodyLen │    body ...   │
//	│ uap  │02│  │  │  │ uint32  │ uint32  │ bodyLen bytes │
//	└──────┴──┴──┴──┴──┴─────────┴─────────┴──────────────┘
//
// Integers are big-endian. Responses echo the request's sequence number,
// which is how calls are multiplexed over one connection.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	Version    byte = 0x02
	HeaderSize      = 15

	// DefaultMaxBodySize bounds the body a reader accepts before allocating.
	DefaultMaxBodySize uint32 = 4 << 20
)

var magic = [3]byte{'u', 'a', 'p'}

var (
	ErrBadMagic     = errors.New("protocol: bad magic")
	ErrBodyTooLarge = errors.New("protocol: body too large")
)

type Kind byte

const (
	KindRequest   Kind = 0
	KindResponse  Kind = 1
	KindHeartbeat Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindHeartbeat:
		return "heartbeat"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// Flags is reserved for per-frame options; no flag is defined yet and
// readers ignore it.
type Flags byte

type Header struct {
	Codec   byte
	Kind    Kind
	Flags   Flags
	Seq     uint32
	BodyLen uint32
}

// Write writes one frame. Callers sharing w between goroutines must
// serialize calls.
func Write(w io.Writer, h Header, body []byte) error {
	buf := make([]byte, HeaderSize, HeaderSize+len(body))
	copy(buf[0:3], magic[:])
	buf[3] = Version
	buf[4] = h.Codec
	buf[5] = byte(h.Kind)
	buf[6] = byte(h.Flags)
	binary.BigEndian.PutUint32(buf[7:11], h.Seq)
	binary.BigEndian.PutUint32(buf[11:15], uint32(len(body)))
	buf = append(buf, body...)
	_, err := w.Write(buf)
	return err
}

// Reader reads frames from a stream.
type Reader struct {
	r       io.Reader
	maxBody uint32
	header  [HeaderSize]byte
}

func NewReader(r io.Reader, maxBody uint32) *Reader {
	if maxBody == 0 {
		maxBody = DefaultMaxBodySize
	}
	return &Reader{r: r, maxBody: maxBody}
}

// Read returns the next frame. Any error leaves the stream unusable.
func (fr *Reader) Read() (Header, []byte, error) {
	if _, err := io.ReadFull(fr.r, fr.header[:]); err != nil {
		return Header{}, nil, err
	}
	b := fr.header[:]

	if b[0] != magic[0] || b[1] != magic[1] || b[2] != magic[2] {
		return Header{}, nil, fmt.Errorf("%w: %x", ErrBadMagic, b[0:3])
	}
	if b[3] != Version {
		return Header{}, nil, fmt.Errorf("protocol: unsupported version %d", b[3])
	}
	kind := Kind(b[5])
	if kind > KindHeartbeat {
		return Header{}, nil, fmt.Errorf("protocol: unsupported kind %d", b[5])
	}

	h := Header{
		Codec:   b[4],
		Kind:    kind,
		Flags:   Flags(b[6]),
		Seq:     binary.BigEndian.Uint32(b[7:11]),
		BodyLen: binary.BigEndian.Uint32(b[11:15]),
	}
	if h.BodyLen > fr.maxBody {
		return Header{}, nil, fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, h.BodyLen, fr.maxBody)
	}

	body := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return Header{}, nil, err
	}
	return h, body, nil
}

// Read reads a single frame from r with the default body limit.
func Read(r io.Reader) (Header, []byte, error) {
	return NewReader(r, 0).Read()
}
