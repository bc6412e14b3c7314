package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/givehub-core/internal/infrastructure/config"
	"github.com/nerrad567/givehub-core/internal/infrastructure/logging"
	"github.com/nerrad567/givehub-core/internal/session"
)

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func testConfig(dbPath string, port int) string {
	return fmt.Sprintf(`
database:
  path: %q
  wal_mode: true
  busy_timeout: 5

api:
  host: "127.0.0.1"
  port: %d

session:
  driver: memory

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stdout
`, dbPath, port)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GIVEHUB_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies config validation stops startup.
func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("GIVEHUB_CONFIG", writeConfig(t, testConfig("", 8080)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_RedisUnavailable verifies a configured but unreachable session store is fatal.
func TestRun_RedisUnavailable(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(filepath.Join(dir, "test.db"), freePort(t)) + `
redis:
  addr: "127.0.0.1:1"
`
	t.Setenv("GIVEHUB_CONFIG", writeConfig(t, cfg))
	t.Setenv("GIVEHUB_SESSION_DRIVER", "redis")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when redis cannot be reached")
	}
}

// TestRun_SuccessfulStartupAndShutdown starts the service, waits for
// /health and shuts it down through the context.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	port := freePort(t)
	t.Setenv("GIVEHUB_CONFIG", writeConfig(t, testConfig(filepath.Join(dir, "test.db"), port)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	deadline := time.Now().Add(10 * time.Second)
	healthy := false
	for time.Now().Before(deadline) {
		resp, err := http.Get(url) //nolint:gosec,noctx // test-only local URL
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				healthy = true
				break
			}
		}
		select {
		case err := <-done:
			t.Fatalf("run() exited early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
	if !healthy {
		t.Fatal("service never became healthy")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("GIVEHUB_CONFIG", "")

	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("GIVEHUB_CONFIG", "/custom/path/config.yaml")

	if got := getConfigPath(); got != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want /custom/path/config.yaml", got)
	}
}

func TestOpenSessionStore_Memory(t *testing.T) {
	cfg := &config.Config{Session: config.SessionConfig{Driver: "memory"}}

	store, mem, err := openSessionStore(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openSessionStore() error = %v", err)
	}
	if mem == nil {
		t.Fatal("memory driver should return the store for sweeping")
	}
	if _, ok := store.(*session.MemoryStore); !ok {
		t.Errorf("store = %T, want *session.MemoryStore", store)
	}
}

func TestPruneInterval(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{0, time.Hour},
		{-5, time.Hour},
		{30, 30 * time.Second},
	}
	for _, tt := range tests {
		cfg := &config.Config{}
		cfg.Security.Tokens.PruneInterval = tt.seconds
		if got := pruneInterval(cfg); got != tt.want {
			t.Errorf("pruneInterval(%d) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}
