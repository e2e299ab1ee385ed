package client

import (
	"context"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/schema"
)

// Do calls op and decodes the validated response into Resp.
func Do[Req, Resp, M any](ctx context.Context, c *Caller[M], op api.Op[Req, Resp], req Req) (Resp, error) {
	out, err := c.Call(ctx, op.Name, req)
	if err != nil {
		var zero Resp
		return zero, err
	}
	return schema.Decode[Resp](out)
}
