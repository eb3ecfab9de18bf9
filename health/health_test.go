package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/zero-day-ai/council/queue"
	"github.com/zero-day-ai/council/registry"
	"github.com/zero-day-ai/council/types"
)

func setupClient(t *testing.T) (*queue.RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := queue.NewRedisClient(queue.RedisOptions{
		URL:       fmt.Sprintf("redis://%s", mr.Addr()),
		Namespace: "test",
	})
	if err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestBrokerCheck(t *testing.T) {
	client, _ := setupClient(t)

	status := BrokerCheck(context.Background(), client)
	if !status.IsHealthy() {
		t.Fatalf("expected healthy status, got %s: %s", status.Status, status.Message)
	}
	if _, ok := status.Details["latency_ms"]; !ok {
		t.Error("expected latency_ms detail")
	}
}

func TestBrokerCheckFailures(t *testing.T) {
	tests := []struct {
		name   string
		pinger Pinger
	}{
		{name: "nil pinger", pinger: nil},
		{
			name:   "ping error",
			pinger: pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
		},
		{
			name: "ping respects deadline",
			pinger: pingerFunc(func(ctx context.Context) error {
				if _, ok := ctx.Deadline(); !ok {
					return errors.New("no deadline")
				}
				return ctx.Err()
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			if tt.name == "ping respects deadline" {
				cancel()
			} else {
				defer cancel()
			}

			status := BrokerCheck(ctx, tt.pinger)
			if !status.IsUnhealthy() {
				t.Errorf("expected unhealthy status, got %s: %s", status.Status, status.Message)
			}
		})
	}
}

func TestBrokerCheckAfterBrokerStops(t *testing.T) {
	client, mr := setupClient(t)
	mr.Close()

	status := BrokerCheck(context.Background(), client)
	if !status.IsUnhealthy() {
		t.Fatalf("expected unhealthy status, got %s", status.Status)
	}
	if _, ok := status.Details["error"]; !ok {
		t.Error("expected error detail")
	}
}

func TestBacklogCheck(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := client.Enqueue(ctx, fmt.Sprintf("task-%d", i)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	tests := []struct {
		name      string
		threshold int64
		expect    string
	}{
		{name: "under threshold", threshold: 10, expect: types.StatusHealthy},
		{name: "at threshold", threshold: 3, expect: types.StatusHealthy},
		{name: "over threshold", threshold: 2, expect: types.StatusDegraded},
		{name: "no threshold", threshold: 0, expect: types.StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := BacklogCheck(ctx, client, tt.threshold)
			if status.Status != tt.expect {
				t.Errorf("expected %s, got %s: %s", tt.expect, status.Status, status.Message)
			}
		})
	}
}

func TestWorkerCheck(t *testing.T) {
	client, mr := setupClient(t)
	ctx := context.Background()
	keys := client.Keys()

	if err := client.Heartbeat(ctx, "live", time.Minute); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if _, err := mr.Push(keys.Processing("dead"), "task"); err != nil {
		t.Fatalf("push: %v", err)
	}

	tests := []struct {
		name     string
		workerID string
		expect   string
	}{
		{name: "live worker", workerID: "live", expect: types.StatusHealthy},
		{name: "dead worker holding tasks", workerID: "dead", expect: types.StatusUnhealthy},
		{name: "unknown worker", workerID: "gone", expect: types.StatusDegraded},
		{name: "empty id", workerID: "", expect: types.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := WorkerCheck(ctx, client, tt.workerID)
			if status.Status != tt.expect {
				t.Errorf("expected %s, got %s: %s", tt.expect, status.Status, status.Message)
			}
		})
	}
}

// stubRegistry returns fixed discovery results.
type stubRegistry struct {
	registry.Registry
	workers []registry.ServiceInfo
	err     error
}

func (s stubRegistry) DiscoverAll(context.Context, string) ([]registry.ServiceInfo, error) {
	return s.workers, s.err
}

func TestRegistryCheck(t *testing.T) {
	tests := []struct {
		name   string
		reg    registry.Registry
		expect string
	}{
		{name: "not configured", reg: nil, expect: types.StatusDegraded},
		{name: "unreachable", reg: stubRegistry{err: errors.New("etcd down")}, expect: types.StatusUnhealthy},
		{name: "no workers", reg: stubRegistry{}, expect: types.StatusDegraded},
		{
			name:   "workers registered",
			reg:    stubRegistry{workers: []registry.ServiceInfo{{Kind: registry.KindWorker, Name: registry.WorkerServiceName}}},
			expect: types.StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := RegistryCheck(context.Background(), tt.reg)
			if status.Status != tt.expect {
				t.Errorf("expected %s, got %s: %s", tt.expect, status.Status, status.Message)
			}
		})
	}
}

func TestNetworkCheck(t *testing.T) {
	// Start a test TCP server
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start test server: %v", err)
	}
	defer listener.Close()

	// Get the port
	addr := listener.Addr().(*net.TCPAddr)
	testPort := addr.Port

	// Accept connections in background
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	tests := []struct {
		name           string
		host           string
		port           int
		timeout        time.Duration
		expectHealthy  bool
		expectDegraded bool
	}{
		{
			name:          "successful connection to test server",
			host:          "127.0.0.1",
			port:          testPort,
			timeout:       2 * time.Second,
			expectHealthy: true,
		},
		{
			name:          "connection to non-existent port",
			host:          "127.0.0.1",
			port:          65000, // unlikely to be in use
			timeout:       1 * time.Second,
			expectHealthy: false,
		},
		{
			name:          "invalid port number negative",
			host:          "127.0.0.1",
			port:          -1,
			timeout:       1 * time.Second,
			expectHealthy: false,
		},
		{
			name:          "invalid port number too large",
			host:          "127.0.0.1",
			port:          70000,
			timeout:       1 * time.Second,
			expectHealthy: false,
		},
		{
			name:          "empty host",
			host:          "",
			port:          80,
			timeout:       1 * time.Second,
			expectHealthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			status := NetworkCheck(ctx, tt.host, tt.port)

			if tt.expectHealthy && !status.IsHealthy() {
				t.Errorf("expected healthy status, got %s: %s", status.Status, status.Message)
			}

			if !tt.expectHealthy && status.IsHealthy() {
				t.Errorf("expected unhealthy status, got %s: %s", status.Status, status.Message)
			}

			if status.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestNetworkCheckWithNilContext(t *testing.T) {
	// Test that NetworkCheck handles nil context gracefully
	status := NetworkCheck(nil, "127.0.0.1", 65000)
	if status.IsHealthy() {
		t.Error("expected unhealthy status for unreachable port")
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name           string
		checks         []types.HealthStatus
		expectStatus   string
		expectDegraded bool
	}{
		{
			name: "all healthy",
			checks: []types.HealthStatus{
				types.NewHealthyStatus("check 1"),
				types.NewHealthyStatus("check 2"),
				types.NewHealthyStatus("check 3"),
			},
			expectStatus: types.StatusHealthy,
		},
		{
			name: "one unhealthy",
			checks: []types.HealthStatus{
				types.NewHealthyStatus("check 1"),
				types.NewUnhealthyStatus("check 2 failed", nil),
				types.NewHealthyStatus("check 3"),
			},
			expectStatus: types.StatusUnhealthy,
		},
		{
			name: "one degraded",
			checks: []types.HealthStatus{
				types.NewHealthyStatus("check 1"),
				types.NewDegradedStatus("check 2 degraded", nil),
				types.NewHealthyStatus("check 3"),
			},
			expectStatus:   types.StatusDegraded,
			expectDegraded: true,
		},
		{
			name: "unhealthy and degraded",
			checks: []types.HealthStatus{
				types.NewHealthyStatus("check 1"),
				types.NewDegradedStatus("check 2 degraded", nil),
				types.NewUnhealthyStatus("check 3 failed", nil),
			},
			expectStatus: types.StatusUnhealthy, // unhealthy takes precedence
		},
		{
			name: "multiple unhealthy",
			checks: []types.HealthStatus{
				types.NewUnhealthyStatus("check 1 failed", nil),
				types.NewUnhealthyStatus("check 2 failed", nil),
				types.NewHealthyStatus("check 3"),
			},
			expectStatus: types.StatusUnhealthy,
		},
		{
			name:         "no checks",
			checks:       []types.HealthStatus{},
			expectStatus: types.StatusHealthy,
		},
		{
			name:         "nil checks",
			checks:       nil,
			expectStatus: types.StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Combine(tt.checks...)

			if status.Status != tt.expectStatus {
				t.Errorf("expected status %s, got %s: %s", tt.expectStatus, status.Status, status.Message)
			}

			if status.Message == "" {
				t.Error("expected non-empty message")
			}

			// Check that details are populated when checks fail
			if status.Status != types.StatusHealthy && status.Details == nil {
				t.Error("expected details for non-healthy status")
			}
		})
	}
}

func TestCombineRealChecks(t *testing.T) {
	client, _ := setupClient(t)
	ctx := context.Background()

	status := Combine(
		BrokerCheck(ctx, client),
		BacklogCheck(ctx, client, 100),
		WorkerCheck(ctx, client, "missing"),
	)
	if status.Status != types.StatusDegraded {
		t.Errorf("expected degraded, got %s: %s", status.Status, status.Message)
	}
}
