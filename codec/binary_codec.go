package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/unruly-software/api/message"
)

// BinaryCodec lays an envelope out as length-prefixed fields, big-endian:
//
//	id len(1) id | operation len(2) operation | status(2) |
//	error len(2) error | payload len(4) payload
type BinaryCodec struct{}

var errShort = errors.New("codec: truncated binary envelope")

func (BinaryCodec) Encode(env *message.Envelope) ([]byte, error) {
	if len(env.ID) > 0xff {
		return nil, fmt.Errorf("codec: id too long (%d bytes)", len(env.ID))
	}
	if len(env.Operation) > 0xffff || len(env.Error) > 0xffff {
		return nil, errors.New("codec: operation or error too long")
	}

	buf := make([]byte, 0, 1+len(env.ID)+2+len(env.Operation)+2+2+len(env.Error)+4+len(env.Payload))
	buf = append(buf, byte(len(env.ID)))
	buf = append(buf, env.ID...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(env.Operation)))
	buf = append(buf, env.Operation...)
	buf = binary.BigEndian.AppendUint16(buf, env.Status)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(env.Error)))
	buf = append(buf, env.Error...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(env.Payload)))
	buf = append(buf, env.Payload...)
	return buf, nil
}

func (BinaryCodec) Decode(data []byte, env *message.Envelope) error {
	r := reader{data: data}

	env.ID = string(r.next(int(r.uint8())))
	env.Operation = string(r.next(int(r.uint16())))
	env.Status = r.uint16()
	env.Error = string(r.next(int(r.uint16())))
	if n := int(r.uint32()); n > 0 {
		env.Payload = append([]byte(nil), r.next(n)...)
	} else {
		env.Payload = nil
	}
	return r.err
}

func (BinaryCodec) Type() Type { return TypeBinary }

type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = errShort
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) uint8() uint8 {
	b := r.next(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) uint16() uint16 {
	b := r.next(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) uint32() uint32 {
	b := r.next(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
