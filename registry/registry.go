// Package registry tracks which addresses serve a service.
//
// Frame transport servers register themselves on start and deregister on
// shutdown; resolvers discover the current instances before every call.
package registry

import (
	"context"
	"errors"
	"time"
)

var ErrNoInstances = errors.New("registry: no instances")

type Instance struct {
	Addr    string            `json:"addr"`
	Weight  int               `json:"weight,omitempty"`
	Version string            `json:"version,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type Registry interface {
	// Register announces inst under service. The entry expires after ttl
	// unless the registry keeps it alive.
	Register(ctx context.Context, service string, inst Instance, ttl time.Duration) error
	Deregister(ctx context.Context, service, addr string) error
	Discover(ctx context.Context, service string) ([]Instance, error)
	// Watch emits the full instance list whenever it changes, until ctx is
	// done.
	Watch(ctx context.Context, service string) <-chan []Instance
}
