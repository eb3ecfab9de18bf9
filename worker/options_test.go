package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zero-day-ai/council/component"
)

func TestApplyConfig_NilConfigUsesDefaults(t *testing.T) {
	opts := applyConfig(Options{}, nil)

	assert.Equal(t, component.DefaultRedisURL, opts.RedisURL)
	assert.Equal(t, "ai_council", opts.Namespace)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 20*time.Second, opts.HeartbeatInterval)
	assert.Equal(t, 60*time.Second, opts.HeartbeatTTL)
	assert.Equal(t, 300*time.Second, opts.ResultTTL)
	assert.Equal(t, 30*time.Second, opts.ShutdownTimeout)
	assert.Zero(t, opts.RecoveryInterval)
	assert.Empty(t, opts.HealthAddr)
}

func TestApplyConfig_FileValues(t *testing.T) {
	cfg := &component.Config{
		Version: "2.0.0",
		Redis:   &component.RedisConfig{URL: "redis://broker:6379", Namespace: "prod"},
		Worker: &component.WorkerConfig{
			PollInterval:      "2s",
			HeartbeatInterval: "10s",
			HeartbeatTTL:      "45s",
			ResultTTL:         "1m",
			ShutdownTimeout:   "5s",
			RecoveryInterval:  "30s",
			HealthAddr:        ":9090",
		},
	}

	opts := applyConfig(Options{}, cfg)

	assert.Equal(t, "redis://broker:6379", opts.RedisURL)
	assert.Equal(t, "prod", opts.Namespace)
	assert.Equal(t, 2*time.Second, opts.PollInterval)
	assert.Equal(t, 10*time.Second, opts.HeartbeatInterval)
	assert.Equal(t, 45*time.Second, opts.HeartbeatTTL)
	assert.Equal(t, time.Minute, opts.ResultTTL)
	assert.Equal(t, 5*time.Second, opts.ShutdownTimeout)
	assert.Equal(t, 30*time.Second, opts.RecoveryInterval)
	assert.Equal(t, ":9090", opts.HealthAddr)
	assert.Equal(t, ":9090", opts.Endpoint)
	assert.Equal(t, "2.0.0", opts.Version)
}

func TestApplyConfig_ExplicitOptionsWin(t *testing.T) {
	cfg := &component.Config{
		Redis:  &component.RedisConfig{URL: "redis://file:6379", Namespace: "file"},
		Worker: &component.WorkerConfig{PollInterval: "2s", HealthAddr: ":9090"},
	}

	opts := applyConfig(Options{
		RedisURL:     "redis://explicit:6379",
		Namespace:    "explicit",
		PollInterval: 3 * time.Second,
		HealthAddr:   ":7070",
	}, cfg)

	assert.Equal(t, "redis://explicit:6379", opts.RedisURL)
	assert.Equal(t, "explicit", opts.Namespace)
	assert.Equal(t, 3*time.Second, opts.PollInterval)
	assert.Equal(t, ":7070", opts.HealthAddr)
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{RecoveryInterval: -time.Second, ResultTTL: time.Minute}.withDefaults()

	assert.Equal(t, DefaultPollInterval, opts.PollInterval)
	assert.Equal(t, time.Minute, opts.ResultTTL)
	assert.Zero(t, opts.RecoveryInterval)
}

func TestOptions_WithDefaultsRaisesShortHeartbeatTTL(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		interval time.Duration
		ttl      time.Duration
	}{
		{
			name:     "ttl below interval",
			opts:     Options{HeartbeatInterval: 30 * time.Second, HeartbeatTTL: 10 * time.Second},
			interval: 30 * time.Second,
			ttl:      90 * time.Second,
		},
		{
			name:     "ttl equal to interval",
			opts:     Options{HeartbeatInterval: 20 * time.Second, HeartbeatTTL: 20 * time.Second},
			interval: 20 * time.Second,
			ttl:      60 * time.Second,
		},
		{
			name:     "long interval against default ttl",
			opts:     Options{HeartbeatInterval: 90 * time.Second},
			interval: 90 * time.Second,
			ttl:      270 * time.Second,
		},
		{
			name:     "ttl already longer",
			opts:     Options{HeartbeatInterval: 5 * time.Second, HeartbeatTTL: 6 * time.Second},
			interval: 5 * time.Second,
			ttl:      6 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts.withDefaults()

			assert.Equal(t, tt.interval, opts.HeartbeatInterval)
			assert.Equal(t, tt.ttl, opts.HeartbeatTTL)
			assert.Greater(t, opts.HeartbeatTTL, opts.HeartbeatInterval)
		})
	}
}

func TestNew_FileHeartbeatTTLBelowExplicitInterval(t *testing.T) {
	cfg := &component.Config{
		Worker: &component.WorkerConfig{HeartbeatTTL: "60s"},
	}

	w := New(nil, nil, nil, applyConfig(Options{HeartbeatInterval: 90 * time.Second}, cfg))

	assert.Equal(t, 90*time.Second, w.opts.HeartbeatInterval)
	assert.Equal(t, 270*time.Second, w.opts.HeartbeatTTL)
}
