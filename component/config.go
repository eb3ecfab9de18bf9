// Package component provides loading and parsing of council.yaml configuration files.
// A council.yaml describes how producers and workers reach the broker, the
// timings of the worker loop, the optional shared registry and logging.
package component

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	council "github.com/zero-day-ai/council"
	"github.com/zero-day-ai/council/queue"
	"github.com/zero-day-ai/council/registry"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvRedisURL          = "COUNCIL_REDIS_URL"
	EnvNamespace         = "COUNCIL_NAMESPACE"
	EnvRegistryEndpoints = registry.EnvEndpoints
	EnvLogLevel          = "COUNCIL_LOG_LEVEL"
)

// DefaultRedisURL is used when neither the file nor the environment names a broker.
const DefaultRedisURL = "redis://localhost:6379"

// Config file names searched by Load when given a directory.
var configNames = []string{"council.yaml", "council.yml"}

// ErrNotFound is returned when no council.yaml exists where one was searched for.
var ErrNotFound = errors.New("no council.yaml found")

// Config represents a council.yaml configuration file.
type Config struct {
	// Identity, reported in registry entries.
	Name    string `yaml:"name,omitempty"`
	Version string `yaml:"version,omitempty"`

	Redis *RedisConfig `yaml:"redis,omitempty"`

	// Producer configuration (for submitting subtasks)
	Producer *ProducerConfig `yaml:"producer,omitempty"`

	// Worker configuration (for queue-based execution)
	Worker *WorkerConfig `yaml:"worker,omitempty"`

	// Registry enables the shared etcd model registry when endpoints are set.
	Registry *registry.Config `yaml:"registry,omitempty"`

	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// RedisConfig locates the broker. Producers and workers must share a namespace.
type RedisConfig struct {
	URL       string              `yaml:"url,omitempty" validate:"omitempty,url"`
	Namespace string              `yaml:"namespace,omitempty" validate:"omitempty,printascii,excludesall=*?[]\\"`
	TLS       *registry.TLSConfig `yaml:"tls,omitempty"`
}

// ProducerConfig defines producer-side settings.
type ProducerConfig struct {
	// ResponseTimeout bounds the wait for a worker's response.
	// Format: Go duration string (e.g., "120s", "2m")
	// Default: 120s
	ResponseTimeout string `yaml:"response_timeout,omitempty" validate:"omitempty,duration"`
}

// WorkerConfig defines configuration for the worker loop.
type WorkerConfig struct {
	// PollInterval bounds each blocking claim so shutdown is noticed promptly.
	// Default: 5s
	PollInterval string `yaml:"poll_interval,omitempty" validate:"omitempty,duration"`

	// HeartbeatInterval is the interval between liveness heartbeats.
	// Default: 20s
	HeartbeatInterval string `yaml:"heartbeat_interval,omitempty" validate:"omitempty,duration"`

	// HeartbeatTTL is the expiry set on each heartbeat. It must exceed
	// HeartbeatInterval or a live worker will look dead between beats.
	// Default: 60s
	HeartbeatTTL string `yaml:"heartbeat_ttl,omitempty" validate:"omitempty,duration"`

	// ResultTTL is the expiry of a published result list.
	// Default: 300s
	ResultTTL string `yaml:"result_ttl,omitempty" validate:"omitempty,duration"`

	// ShutdownTimeout is the time to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty" validate:"omitempty,duration"`

	// RecoveryInterval enables periodic stale-task recovery in addition to
	// the pass run at start-up. Zero disables it.
	// Default: 0
	RecoveryInterval string `yaml:"recovery_interval,omitempty" validate:"omitempty,duration"`

	// HealthAddr is the listen address of the gRPC health server (e.g., ":8081").
	// Empty disables it.
	HealthAddr string `yaml:"health_addr,omitempty" validate:"omitempty,hostname_port"`

	// Endpoint is advertised in the worker's registry entry.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error. Default: info
	Level string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// Format is json or text. Default: json
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=json text"`
}

// Default returns an empty configuration; every accessor reports its default.
func Default() *Config {
	return &Config{}
}

// GetRedisURL returns the broker URL or the default.
func (c *Config) GetRedisURL() string {
	if c == nil || c.Redis == nil || c.Redis.URL == "" {
		return DefaultRedisURL
	}
	return c.Redis.URL
}

// GetNamespace returns the broker namespace or the default.
func (c *Config) GetNamespace() string {
	if c == nil || c.Redis == nil || c.Redis.Namespace == "" {
		return queue.DefaultNamespace
	}
	return c.Redis.Namespace
}

// GetRedisTLS returns the broker TLS settings, or nil when TLS is not configured.
func (c *Config) GetRedisTLS() *registry.TLSConfig {
	if c == nil || c.Redis == nil {
		return nil
	}
	return c.Redis.TLS
}

// RegistryEnabled reports whether any etcd endpoint is configured.
func (c *Config) RegistryEnabled() bool {
	return c != nil && c.Registry != nil && len(c.Registry.Endpoints) > 0
}

// GetResponseTimeout parses the producer response timeout.
// Returns the default value if not set or invalid.
func (p *ProducerConfig) GetResponseTimeout() time.Duration {
	if p == nil {
		return 120 * time.Second
	}
	return parseDuration(p.ResponseTimeout, 120*time.Second)
}

// GetPollInterval returns the claim timeout.
func (w *WorkerConfig) GetPollInterval() time.Duration {
	if w == nil {
		return 5 * time.Second
	}
	return parseDuration(w.PollInterval, 5*time.Second)
}

// GetHeartbeatInterval parses the heartbeat interval string and returns a duration.
// Returns the default value if not set or invalid.
func (w *WorkerConfig) GetHeartbeatInterval() time.Duration {
	if w == nil {
		return 20 * time.Second
	}
	return parseDuration(w.HeartbeatInterval, 20*time.Second)
}

// GetHeartbeatTTL returns the heartbeat expiry.
func (w *WorkerConfig) GetHeartbeatTTL() time.Duration {
	if w == nil {
		return 60 * time.Second
	}
	return parseDuration(w.HeartbeatTTL, 60*time.Second)
}

// GetResultTTL returns the result list expiry.
func (w *WorkerConfig) GetResultTTL() time.Duration {
	if w == nil {
		return 300 * time.Second
	}
	return parseDuration(w.ResultTTL, 300*time.Second)
}

// GetShutdownTimeout parses the shutdown timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (w *WorkerConfig) GetShutdownTimeout() time.Duration {
	if w == nil {
		return 30 * time.Second
	}
	return parseDuration(w.ShutdownTimeout, 30*time.Second)
}

// GetRecoveryInterval returns the periodic recovery interval; 0 means start-up only.
func (w *WorkerConfig) GetRecoveryInterval() time.Duration {
	if w == nil {
		return 0
	}
	return parseDuration(w.RecoveryInterval, 0)
}

// GetHealthAddr returns the health server address, empty when disabled.
func (w *WorkerConfig) GetHealthAddr() string {
	if w == nil {
		return ""
	}
	return w.HealthAddr
}

// GetEndpoint returns the advertised endpoint, falling back to HealthAddr.
func (w *WorkerConfig) GetEndpoint() string {
	if w == nil {
		return ""
	}
	if w.Endpoint != "" {
		return w.Endpoint
	}
	return w.HealthAddr
}

// GetLevel maps the configured level onto slog. Unknown levels mean info.
func (l *LoggingConfig) GetLevel() slog.Level {
	if l == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the configured slog handler writing to w.
func (l *LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.GetLevel()}
	if l != nil && l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// ApplyEnv overlays the COUNCIL_* environment variables onto c. Unset or
// empty variables leave the file's values alone.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.redis().URL = v
	}
	if v := getenv(EnvNamespace); v != "" {
		c.redis().Namespace = v
	}
	if endpoints := registry.ParseEndpoints(getenv(EnvRegistryEndpoints)); len(endpoints) > 0 {
		if c.Registry == nil {
			c.Registry = &registry.Config{}
		}
		c.Registry.Endpoints = endpoints
	}
	if v := getenv(EnvLogLevel); v != "" {
		if c.Logging == nil {
			c.Logging = &LoggingConfig{}
		}
		c.Logging.Level = strings.ToLower(v)
	}
}

func (c *Config) redis() *RedisConfig {
	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	return c.Redis
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d >= 0
	})
	return v
}

// Validate checks field formats and the relationships between worker timings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return council.NewConfigurationError("Config.Validate", err)
	}
	if w := c.Worker; w != nil && w.GetHeartbeatTTL() <= w.GetHeartbeatInterval() {
		return council.NewConfigurationError("Config.Validate",
			fmt.Errorf("worker.heartbeat_ttl (%s) must exceed worker.heartbeat_interval (%s)",
				w.GetHeartbeatTTL(), w.GetHeartbeatInterval()))
	}
	if tls := c.GetRedisTLS(); tls != nil {
		if err := tls.Validate(); err != nil {
			return council.NewConfigurationError("Config.Validate", fmt.Errorf("redis.tls: %w", err))
		}
	}
	return nil
}

// Parse decodes council.yaml content, applies the environment and validates.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.ApplyEnv(os.Getenv)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Load reads and parses a council.yaml file from the given path.
// If the path is a directory, it looks for council.yaml or council.yml in that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range configNames {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("%w in %s", ErrNotFound, path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadFromDir searches for council.yaml starting from the given directory
// and walking up to parent directories until found or root is reached.
// A file that exists but fails to parse stops the search.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		config, err := Load(absDir)
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("%w in %s or parent directories", ErrNotFound, dir)
		}
		absDir = parent
	}
}

// LoadFromCurrentDir loads council.yaml from the current working directory.
func LoadFromCurrentDir() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return LoadFromDir(cwd)
}

// LoadOrDefault loads path, or searches from the working directory when path
// is empty. A missing file yields the defaults with the environment applied.
func LoadOrDefault(path string) (*Config, error) {
	var (
		config *Config
		err    error
	)
	if path != "" {
		config, err = Load(path)
	} else {
		config, err = LoadFromCurrentDir()
	}
	if errors.Is(err, ErrNotFound) {
		config = Default()
		config.ApplyEnv(os.Getenv)
		return config, config.Validate()
	}
	return config, err
}
