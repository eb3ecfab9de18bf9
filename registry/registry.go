// Package registry provides etcd-backed service discovery for council
// workers and the models they can execute.
//
// Workers register themselves on start-up and keep their entry alive with a
// lease. Models published under kind "model" form a shared catalogue that a
// worker consults when a task names a model it has not loaded locally.
// Entries are stored under /{namespace}/{kind}/{name}/{instance-id} and vanish
// when their lease expires.
package registry

import (
	"context"
	"time"
)

// Service kinds stored in the registry.
const (
	KindWorker = "worker"
	KindModel  = "model"
)

// WorkerServiceName is the name every council worker registers under.
const WorkerServiceName = "council-worker"

// Defaults applied by NewClient.
const (
	DefaultNamespace   = "council"
	DefaultTTL         = 30
	DefaultDialTimeout = 5 * time.Second
)

// ServiceInfo describes a registered service instance.
//
// Multiple instances of the same service can run simultaneously, each with
// a unique InstanceID.
type ServiceInfo struct {
	// Kind identifies the entry type: "worker" or "model"
	Kind string `json:"kind"`

	// Name is the service name (e.g., "council-worker", "gpt-4")
	Name string `json:"name"`

	// Version is the semantic version of the component (e.g., "1.2.3")
	Version string `json:"version"`

	// InstanceID is a unique identifier for this specific instance.
	// Workers use their worker id.
	InstanceID string `json:"instance_id"`

	// Endpoint is the network address where this instance can be reached,
	// such as a worker's health endpoint or a model's provider URL.
	Endpoint string `json:"endpoint"`

	// Metadata contains kind-specific attributes such as:
	//   - models: comma-separated model ids loaded by a worker
	//   - namespace: the broker namespace a worker consumes
	//   - provider: the backend serving a model
	Metadata map[string]string `json:"metadata"`

	// StartedAt is the timestamp when this instance started
	StartedAt time.Time `json:"started_at"`
}

// Registry defines the service registration and discovery interface.
//
// Implementations must be safe for concurrent use. Entries are tied to a
// lease so a crashed instance disappears once its TTL elapses.
type Registry interface {
	// Register adds this service instance to the registry and keeps its
	// lease alive until Deregister or Close. Registering the same InstanceID
	// again replaces the entry.
	Register(ctx context.Context, info ServiceInfo) error

	// Deregister revokes the instance's lease, deleting its entry.
	// Deregistering an unknown instance is a no-op.
	Deregister(ctx context.Context, info ServiceInfo) error

	// Discover finds all instances of a service by kind and name.
	// The returned slice may be empty.
	Discover(ctx context.Context, kind, name string) ([]ServiceInfo, error)

	// DiscoverAll finds all instances of a given kind.
	DiscoverAll(ctx context.Context, kind string) ([]ServiceInfo, error)

	// Watch emits the current instances of kind/name immediately and again
	// after every change. The channel closes when ctx is cancelled or the
	// registry is closed.
	Watch(ctx context.Context, kind, name string) (<-chan []ServiceInfo, error)

	// Close releases registry resources and stops all background goroutines.
	Close() error
}

// Config holds registry connection configuration.
type Config struct {
	// Endpoints is the list of etcd endpoints.
	// Format: ["host1:2379", "host2:2379"]
	Endpoints []string `json:"endpoints" yaml:"endpoints"`

	// Namespace is the etcd key prefix for all council entries.
	// Default: "council"
	Namespace string `json:"namespace" yaml:"namespace"`

	// TTL is the lease time-to-live in seconds.
	// Default: 30
	TTL int `json:"ttl" yaml:"ttl"`

	// DialTimeout bounds connection establishment.
	// Default: 5s
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout"`

	// TLS holds TLS configuration for secure etcd communication.
	// If nil, TLS is disabled.
	TLS *TLSConfig `json:"tls" yaml:"tls"`
}

// withDefaults returns a copy of cfg with defaults filled in.
func (cfg Config) withDefaults() Config {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	return cfg
}

// TLSConfig holds TLS certificate configuration for mutual TLS.
type TLSConfig struct {
	// Enabled determines whether TLS is active.
	// If false, all other fields are ignored.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// CertFile is the path to the client certificate file (PEM format)
	CertFile string `json:"cert_file" yaml:"cert_file"`

	// KeyFile is the path to the client private key file (PEM format)
	KeyFile string `json:"key_file" yaml:"key_file"`

	// CAFile is the path to the certificate authority file (PEM format)
	CAFile string `json:"ca_file" yaml:"ca_file"`
}
