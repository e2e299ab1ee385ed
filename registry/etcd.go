package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultPrefix is the key prefix instances are stored under:
// {prefix}/{service}/{addr} → JSON Instance.
const DefaultPrefix = "/uapi"

// EtcdRegistry stores instances in etcd under leases. A crashed server's
// lease expires and its entry disappears.
type EtcdRegistry struct {
	client *clientv3.Client
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
}

func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration, logger *slog.Logger) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd registry: %w", err)
	}
	return NewEtcdRegistryFromClient(c, DefaultPrefix, logger), nil
}

func NewEtcdRegistryFromClient(c *clientv3.Client, prefix string, logger *slog.Logger) *EtcdRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &EtcdRegistry{
		client: c,
		prefix: prefix,
		logger: logger,
		leases: make(map[string]clientv3.LeaseID),
	}
}

func (r *EtcdRegistry) servicePrefix(service string) string {
	return r.prefix + "/" + service + "/"
}

// Register puts inst under a lease of ttl and keeps the lease alive in the
// background. The keepalive stops when the entry is deregistered or the
// client is closed.
func (r *EtcdRegistry) Register(ctx context.Context, service string, inst Instance, ttl time.Duration) error {
	secs := int64(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	lease, err := r.client.Grant(ctx, secs)
	if err != nil {
		return fmt.Errorf("etcd registry: grant lease: %w", err)
	}

	val, err := json.Marshal(inst)
	if err != nil {
		return err
	}

	key := r.servicePrefix(service) + inst.Addr
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("etcd registry: put %s: %w", key, err)
	}

	// The keepalive must outlive the registering call's context.
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return fmt.Errorf("etcd registry: keepalive: %w", err)
	}
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive stopped", "key", key)
	}()

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()
	return nil
}

func (r *EtcdRegistry) Deregister(ctx context.Context, service, addr string) error {
	key := r.servicePrefix(service) + addr

	r.mu.Lock()
	id, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("etcd registry: delete %s: %w", key, err)
	}
	if ok {
		if _, err := r.client.Revoke(ctx, id); err != nil {
			r.logger.Warn("revoke lease failed", "key", key, "error", err)
		}
	}
	return nil
}

func (r *EtcdRegistry) Discover(ctx context.Context, service string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, r.servicePrefix(service), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("etcd registry: discover %s: %w", service, err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			r.logger.Warn("skipping malformed instance", "key", string(kv.Key), "error", err)
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch re-reads the instance list on every change under the service
// prefix.
func (r *EtcdRegistry) Watch(ctx context.Context, service string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	go func() {
		defer close(ch)
		wch := r.client.Watch(ctx, r.servicePrefix(service), clientv3.WithPrefix())
		for range wch {
			instances, err := r.Discover(ctx, service)
			if err != nil {
				r.logger.Warn("watch refresh failed", "service", service, "error", err)
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
