package transport

import (
	"context"
	"fmt"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/client"
	"github.com/unruly-software/api/loadbalance"
	"github.com/unruly-software/api/message"
	"github.com/unruly-software/api/registry"
)

// ResolverConfig wires a frame transport resolver. Service is the name the
// servers registered under.
type ResolverConfig struct {
	Service  string
	Registry registry.Registry
	Balancer loadbalance.Balancer
	Pool     *Pool
}

// NewResolver returns a client.Resolver that sends calls to one of the
// service's registered instances. The balancer is keyed by operation name.
// Error envelopes become *api.RemoteError.
func NewResolver[M any](cfg ResolverConfig) client.Resolver[M] {
	if cfg.Balancer == nil {
		cfg.Balancer = &loadbalance.RoundRobin{}
	}
	return func(ctx context.Context, req client.Request[M]) (any, error) {
		instances, err := cfg.Registry.Discover(ctx, cfg.Service)
		if err != nil {
			return nil, err
		}
		if len(instances) == 0 {
			return nil, fmt.Errorf("%w for %s", registry.ErrNoInstances, cfg.Service)
		}
		inst, err := cfg.Balancer.Pick(instances, req.Operation)
		if err != nil {
			return nil, err
		}

		t, err := cfg.Pool.Get(ctx, inst.Addr)
		if err != nil {
			return nil, fmt.Errorf("transport: connect %s: %w", inst.Addr, err)
		}

		env, err := message.Request(req.CallID, req.Operation, req.Input)
		if err != nil {
			return nil, err
		}
		resp, err := t.Call(ctx, env)
		if err != nil {
			return nil, err
		}
		if resp.Failed() {
			return nil, &api.RemoteError{Status: int(resp.Status), Message: resp.Error}
		}
		if len(resp.Payload) == 0 {
			return nil, nil
		}
		return []byte(resp.Payload), nil
	}
}
