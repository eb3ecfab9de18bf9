package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EnvEndpoints names the variable NewClientFromEnv reads.
const EnvEndpoints = "COUNCIL_REGISTRY_ENDPOINTS"

var errClosed = errors.New("registry client is closed")

// Client implements Registry on top of an etcd cluster.
//
// Leases are renewed every TTL/3 to maintain presence.
//
// Thread-safety: All methods are safe for concurrent use.
type Client struct {
	client    *clientv3.Client
	namespace string
	ttl       int

	// Lease tracking for keepalive
	mu         sync.RWMutex
	leases     map[string]clientv3.LeaseID // key: instance ID, value: lease ID
	cancelFns  map[string]context.CancelFunc
	wg         sync.WaitGroup // tracks background goroutines
	closed     bool
	closedChan chan struct{}
}

// NewClient creates a registry client from the provided configuration and
// verifies connectivity with a quick read.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("registry endpoints cannot be empty")
	}
	cfg = cfg.withDefaults()

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	}

	tlsConfig, err := cfg.TLS.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}
	clientCfg.TLS = tlsConfig

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Verify connectivity with a quick health check
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := cli.Get(ctx, "health-check"); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &Client{
		client:     cli,
		namespace:  cfg.Namespace,
		ttl:        cfg.TTL,
		leases:     make(map[string]clientv3.LeaseID),
		cancelFns:  make(map[string]context.CancelFunc),
		closedChan: make(chan struct{}),
	}, nil
}

// NewClientFromEnv creates a registry client from COUNCIL_REGISTRY_ENDPOINTS,
// a comma-separated list of etcd endpoints.
//
// If the variable is not set it returns (nil, nil): the worker runs without
// registry integration.
func NewClientFromEnv(namespace string) (*Client, error) {
	endpoints := ParseEndpoints(os.Getenv(EnvEndpoints))
	if len(endpoints) == 0 {
		return nil, nil
	}

	return NewClient(Config{
		Endpoints: endpoints,
		Namespace: namespace,
	})
}

// ParseEndpoints splits a comma-separated endpoint list, dropping blanks.
func ParseEndpoints(s string) []string {
	var out []string
	for _, ep := range strings.Split(s, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			out = append(out, ep)
		}
	}
	return out
}

// Register adds this service instance to the registry.
//
// A background goroutine renews the lease every TTL/3 seconds. Registering
// an InstanceID again updates the entry and restarts its keepalive.
func (c *Client) Register(ctx context.Context, info ServiceInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClosed
	}

	// Cancel existing keepalive if re-registering
	if cancelFn, exists := c.cancelFns[info.InstanceID]; exists {
		cancelFn()
		delete(c.cancelFns, info.InstanceID)
	}

	leaseResp, err := c.client.Grant(ctx, int64(c.ttl))
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal service info: %w", err)
	}

	key := buildKey(c.namespace, info.Kind, info.Name, info.InstanceID)

	_, err = c.client.Put(ctx, key, string(data), clientv3.WithLease(leaseResp.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	c.leases[info.InstanceID] = leaseResp.ID

	keepaliveCtx, cancel := context.WithCancel(context.Background())
	c.cancelFns[info.InstanceID] = cancel

	c.wg.Add(1)
	go c.keepalive(keepaliveCtx, leaseResp.ID, info.InstanceID)

	return nil
}

// Deregister revokes the instance's lease, which deletes its entry.
func (c *Client) Deregister(ctx context.Context, info ServiceInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClosed
	}

	if cancelFn, exists := c.cancelFns[info.InstanceID]; exists {
		cancelFn()
		delete(c.cancelFns, info.InstanceID)
	}

	leaseID, exists := c.leases[info.InstanceID]
	if !exists {
		return nil
	}

	if _, err := c.client.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}

	delete(c.leases, info.InstanceID)

	return nil
}

// Discover finds all instances of a service by kind and name.
func (c *Client) Discover(ctx context.Context, kind, name string) ([]ServiceInfo, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return nil, errClosed
	}

	all, err := c.list(ctx, servicePrefix(c.namespace, kind, name))
	if err != nil {
		return nil, err
	}
	return filterByName(all, name), nil
}

// filterByName drops entries whose name merely shares the key prefix, which
// happens for model ids containing '/'.
func filterByName(in []ServiceInfo, name string) []ServiceInfo {
	out := in[:0]
	for _, info := range in {
		if info.Name == name {
			out = append(out, info)
		}
	}
	return out
}

// DiscoverAll finds all instances of a given kind.
func (c *Client) DiscoverAll(ctx context.Context, kind string) ([]ServiceInfo, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return nil, errClosed
	}
	return c.list(ctx, kindPrefix(c.namespace, kind))
}

func (c *Client) list(ctx context.Context, prefix string) ([]ServiceInfo, error) {
	resp, err := c.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover services under %s: %w", prefix, err)
	}

	values := make([][]byte, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		values = append(values, kv.Value)
	}
	return decodeServices(values), nil
}

// Watch returns a channel that receives the current instances of kind/name
// whenever they change.
func (c *Client) Watch(ctx context.Context, kind, name string) (<-chan []ServiceInfo, error) {
	ch := make(chan []ServiceInfo, 1)

	// Send initial state
	instances, err := c.Discover(ctx, kind, name)
	if err != nil {
		return nil, err
	}
	ch <- instances

	watchChan := c.client.Watch(ctx, servicePrefix(c.namespace, kind, name), clientv3.WithPrefix())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errClosed
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closedChan:
				return
			case watchResp, ok := <-watchChan:
				if !ok || watchResp.Err() != nil {
					return
				}

				// Fetch current state after any change
				instances, err := c.Discover(ctx, kind, name)
				if err != nil {
					continue
				}

				select {
				case ch <- instances:
				case <-ctx.Done():
					return
				case <-c.closedChan:
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close stops every keepalive and watch, then closes the etcd client.
// Leases are left to expire.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	for _, cancel := range c.cancelFns {
		cancel()
	}
	c.cancelFns = make(map[string]context.CancelFunc)

	close(c.closedChan)
	c.mu.Unlock()

	c.wg.Wait()

	return c.client.Close()
}

// keepalive renews the lease every TTL/3 seconds until cancelled or the
// lease is lost.
func (c *Client) keepalive(ctx context.Context, leaseID clientv3.LeaseID, instanceID string) {
	defer c.wg.Done()

	ticker := time.NewTicker(keepaliveInterval(c.ttl))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closedChan:
			return
		case <-ticker.C:
			if _, err := c.client.KeepAliveOnce(ctx, leaseID); err != nil {
				if ctx.Err() != nil {
					return
				}
				// Lease is invalid, stop keepalive
				c.mu.Lock()
				if c.leases[instanceID] == leaseID {
					delete(c.leases, instanceID)
					delete(c.cancelFns, instanceID)
				}
				c.mu.Unlock()
				return
			}
		}
	}
}

func keepaliveInterval(ttl int) time.Duration {
	interval := time.Duration(ttl) * time.Second / 3
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// buildKey constructs the etcd key for a service instance.
//
// Format: /namespace/kind/name/instance-id
func buildKey(namespace, kind, name, instanceID string) string {
	return fmt.Sprintf("/%s/%s/%s/%s", namespace, kind, name, instanceID)
}

func servicePrefix(namespace, kind, name string) string {
	return fmt.Sprintf("/%s/%s/%s/", namespace, kind, name)
}

func kindPrefix(namespace, kind string) string {
	return fmt.Sprintf("/%s/%s/", namespace, kind)
}

// decodeServices parses stored entries, skipping any that are not valid JSON.
func decodeServices(values [][]byte) []ServiceInfo {
	instances := make([]ServiceInfo, 0, len(values))
	for _, v := range values {
		var info ServiceInfo
		if err := json.Unmarshal(v, &info); err != nil {
			continue
		}
		instances = append(instances, info)
	}
	return instances
}

// Validate checks the fields that make up the registry key.
func (s ServiceInfo) Validate() error {
	switch {
	case s.Kind == "":
		return fmt.Errorf("service kind is required")
	case s.Name == "":
		return fmt.Errorf("service name is required")
	case s.InstanceID == "":
		return fmt.Errorf("service instance id is required")
	case strings.Contains(s.Kind, "/") || strings.Contains(s.InstanceID, "/"):
		return fmt.Errorf("service kind and instance id must not contain '/'")
	}
	return nil
}
