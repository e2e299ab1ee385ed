package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/client"
	"github.com/unruly-software/api/codec"
	"github.com/unruly-software/api/message"
)

// NewResolver returns a client.Resolver sending each call as a request on
// the operation's subject. Error replies become *api.RemoteError. The
// call's context bounds the wait for a reply.
func NewResolver[M Subject](nc *nats.Conn) client.Resolver[M] {
	c, _ := codec.Get(codec.TypeJSON)
	return func(ctx context.Context, req client.Request[M]) (any, error) {
		msg := nats.NewMsg(req.Definition.Metadata.NATSSubject())
		msg.Header.Set(CallIDHeader, req.CallID)
		if req.Input != nil {
			data, err := json.Marshal(req.Input)
			if err != nil {
				return nil, fmt.Errorf("natsadapter: encode %s: %w", req.Operation, err)
			}
			msg.Data = data
		}

		reply, err := nc.RequestMsgWithContext(ctx, msg)
		if err != nil {
			return nil, err
		}

		var env message.Envelope
		if err := c.Decode(reply.Data, &env); err != nil {
			return nil, fmt.Errorf("natsadapter: decode reply: %w", err)
		}
		if env.Failed() {
			return nil, &api.RemoteError{Status: int(env.Status), Message: env.Error}
		}
		if len(env.Payload) == 0 {
			return nil, nil
		}
		return []byte(env.Payload), nil
	}
}
