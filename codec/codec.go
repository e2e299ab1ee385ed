// Package codec serializes envelopes for the frame transport.
package codec

import (
	"fmt"

	"github.com/unruly-software/api/message"
)

type Type byte

const (
	TypeJSON   Type = 0
	TypeBinary Type = 1
)

func (t Type) String() string {
	switch t {
	case TypeJSON:
		return "json"
	case TypeBinary:
		return "binary"
	}
	return fmt.Sprintf("codec(%d)", byte(t))
}

type Codec interface {
	Encode(env *message.Envelope) ([]byte, error)
	Decode(data []byte, env *message.Envelope) error
	Type() Type
}

// Get returns the codec for t.
func Get(t Type) (Codec, error) {
	switch t {
	case TypeJSON:
		return JSONCodec{}, nil
	case TypeBinary:
		return BinaryCodec{}, nil
	}
	return nil, fmt.Errorf("codec: unsupported type %d", byte(t))
}

// Parse maps a configuration name ("json", "binary") to its Type.
func Parse(name string) (Type, error) {
	switch name {
	case "", "json":
		return TypeJSON, nil
	case "binary":
		return TypeBinary, nil
	}
	return 0, fmt.Errorf("codec: unknown codec %q", name)
}
