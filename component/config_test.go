package component

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	council "github.com/zero-day-ai/council"
	"github.com/zero-day-ai/council/registry"
)

// clearEnv isolates a test from COUNCIL_* variables set on the host.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvRedisURL, EnvNamespace, EnvRegistryEndpoints, EnvLogLevel} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const fullConfig = `
name: echo-worker
version: 1.0.0
redis:
  url: redis://broker:6379/2
  namespace: staging
producer:
  response_timeout: 45s
worker:
  poll_interval: 2s
  heartbeat_interval: 10s
  heartbeat_ttl: 30s
  result_ttl: 10m
  shutdown_timeout: 15s
  recovery_interval: 1m
  health_addr: ":8081"
registry:
  endpoints: ["etcd-1:2379", "etcd-2:2379"]
  namespace: council
  ttl: 15
logging:
  level: debug
  format: text
`

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), "council.yaml", fullConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "echo-worker", cfg.Name)
	assert.Equal(t, "redis://broker:6379/2", cfg.GetRedisURL())
	assert.Equal(t, "staging", cfg.GetNamespace())
	assert.Equal(t, 45*time.Second, cfg.Producer.GetResponseTimeout())
	assert.Equal(t, 2*time.Second, cfg.Worker.GetPollInterval())
	assert.Equal(t, 10*time.Second, cfg.Worker.GetHeartbeatInterval())
	assert.Equal(t, 30*time.Second, cfg.Worker.GetHeartbeatTTL())
	assert.Equal(t, 10*time.Minute, cfg.Worker.GetResultTTL())
	assert.Equal(t, 15*time.Second, cfg.Worker.GetShutdownTimeout())
	assert.Equal(t, time.Minute, cfg.Worker.GetRecoveryInterval())
	assert.Equal(t, ":8081", cfg.Worker.GetHealthAddr())
	assert.Equal(t, ":8081", cfg.Worker.GetEndpoint())
	assert.True(t, cfg.RegistryEnabled())
	assert.Equal(t, []string{"etcd-1:2379", "etcd-2:2379"}, cfg.Registry.Endpoints)
	assert.Equal(t, 15, cfg.Registry.TTL)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.GetLevel())
}

func TestLoad_DirectoryPrefersYaml(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, "council.yml", "redis:\n  namespace: from-yml\n")
	writeConfig(t, dir, "council.yaml", "redis:\n  namespace: from-yaml\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.GetNamespace())
}

func TestLoad_DirectoryWithYml(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, "council.yml", "redis:\n  namespace: from-yml\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-yml", cfg.GetNamespace())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), "council.yaml", "redis: [unterminated")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFromDir_WalksUp(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeConfig(t, root, "council.yaml", "redis:\n  namespace: parent\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := LoadFromDir(nested)
	require.NoError(t, err)
	assert.Equal(t, "parent", cfg.GetNamespace())
}

func TestLoadFromDir_StopsOnBrokenFile(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeConfig(t, root, "council.yaml", "redis:\n  namespace: parent\n")
	nested := filepath.Join(root, "child")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeConfig(t, nested, "council.yaml", "worker:\n  poll_interval: soon\n")

	_, err := LoadFromDir(nested)
	require.Error(t, err)
	assert.ErrorIs(t, err, council.ErrInvalidConfig)
}

func TestDefaults(t *testing.T) {
	var cfg *Config
	assert.Equal(t, DefaultRedisURL, cfg.GetRedisURL())
	assert.Equal(t, "ai_council", cfg.GetNamespace())
	assert.False(t, cfg.RegistryEnabled())
	assert.Nil(t, cfg.GetRedisTLS())

	var p *ProducerConfig
	assert.Equal(t, 120*time.Second, p.GetResponseTimeout())

	var w *WorkerConfig
	assert.Equal(t, 5*time.Second, w.GetPollInterval())
	assert.Equal(t, 20*time.Second, w.GetHeartbeatInterval())
	assert.Equal(t, 60*time.Second, w.GetHeartbeatTTL())
	assert.Equal(t, 300*time.Second, w.GetResultTTL())
	assert.Equal(t, 30*time.Second, w.GetShutdownTimeout())
	assert.Zero(t, w.GetRecoveryInterval())
	assert.Empty(t, w.GetHealthAddr())

	var l *LoggingConfig
	assert.Equal(t, slog.LevelInfo, l.GetLevel())
}

func TestWorkerConfig_InvalidDurationFallsBack(t *testing.T) {
	w := &WorkerConfig{PollInterval: "soon", HeartbeatTTL: "-5s"}
	assert.Equal(t, 5*time.Second, w.GetPollInterval())
	assert.Equal(t, 60*time.Second, w.GetHeartbeatTTL())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvRedisURL:          "redis://env:6379",
		EnvNamespace:         "from-env",
		EnvRegistryEndpoints: "etcd-a:2379, ,etcd-b:2379",
		EnvLogLevel:          "WARN",
	}
	cfg := &Config{Redis: &RedisConfig{URL: "redis://file:6379", Namespace: "from-file"}}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "redis://env:6379", cfg.GetRedisURL())
	assert.Equal(t, "from-env", cfg.GetNamespace())
	assert.Equal(t, []string{"etcd-a:2379", "etcd-b:2379"}, cfg.Registry.Endpoints)
	assert.Equal(t, slog.LevelWarn, cfg.Logging.GetLevel())
}

func TestApplyEnv_EmptyKeepsFile(t *testing.T) {
	cfg := &Config{Redis: &RedisConfig{Namespace: "from-file"}}
	cfg.ApplyEnv(func(string) string { return "" })

	assert.Equal(t, "from-file", cfg.GetNamespace())
	assert.Nil(t, cfg.Registry)
	assert.Nil(t, cfg.Logging)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "empty config is valid",
			config: Config{},
		},
		{
			name:    "bad redis url",
			config:  Config{Redis: &RedisConfig{URL: "not a url"}},
			wantErr: "URL",
		},
		{
			name:    "bad duration",
			config:  Config{Worker: &WorkerConfig{ResultTTL: "five minutes"}},
			wantErr: "ResultTTL",
		},
		{
			name:    "namespace with glob bracket",
			config:  Config{Redis: &RedisConfig{Namespace: "team[a]"}},
			wantErr: "Namespace",
		},
		{
			name:    "namespace with backslash",
			config:  Config{Redis: &RedisConfig{Namespace: `svc\x`}},
			wantErr: "Namespace",
		},
		{
			name:   "namespace with separators",
			config: Config{Redis: &RedisConfig{Namespace: "team-a.prod_1"}},
		},
		{
			name:    "bad log level",
			config:  Config{Logging: &LoggingConfig{Level: "verbose"}},
			wantErr: "Level",
		},
		{
			name:    "bad health addr",
			config:  Config{Worker: &WorkerConfig{HealthAddr: "8081"}},
			wantErr: "HealthAddr",
		},
		{
			name:    "ttl not above interval",
			config:  Config{Worker: &WorkerConfig{HeartbeatInterval: "30s", HeartbeatTTL: "30s"}},
			wantErr: "heartbeat_ttl",
		},
		{
			name: "tls missing files",
			config: Config{Redis: &RedisConfig{
				URL: "rediss://broker:6380",
				TLS: &registry.TLSConfig{Enabled: true},
			}},
			wantErr: "redis.tls",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, council.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvNamespace, "env-only")

	cfg, err := LoadOrDefault(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.GetNamespace())
	assert.Equal(t, DefaultRedisURL, cfg.GetRedisURL())
}

func TestLoggingConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := (&LoggingConfig{Level: "error"}).NewLogger(&buf)
	logger.Info("dropped")
	logger.Error("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}
