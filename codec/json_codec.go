package codec

import (
	"encoding/json"

	"github.com/unruly-software/api/message"
)

// JSONCodec encodes envelopes as JSON objects with the payload inlined.
type JSONCodec struct{}

func (JSONCodec) Encode(env *message.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (JSONCodec) Decode(data []byte, env *message.Envelope) error {
	return json.Unmarshal(data, env)
}

func (JSONCodec) Type() Type { return TypeJSON }
