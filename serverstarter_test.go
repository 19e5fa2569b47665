package serverstarter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smoothcloud/serverstarter/internal/supervisor"
)

func TestNewIDIsUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == "" || b == "" || a == b {
		t.Fatalf("expected two distinct non-empty ids, got %q and %q", a, b)
	}
}

func TestFacadeUnknownServer(t *testing.T) {
	s := New()
	defer s.Shutdown()

	if _, err := s.Status("ghost"); !errors.Is(err, supervisor.ErrUnknownServer) {
		t.Fatalf("expected ErrUnknownServer, got %v", err)
	}
	if _, err := s.Logs("ghost"); !errors.Is(err, supervisor.ErrNoLogs) {
		t.Fatalf("expected ErrNoLogs, got %v", err)
	}
	if err := s.Execute("ghost", "say hi"); err != nil {
		t.Fatalf("Execute on unknown id: %v", err)
	}
	s.Stop("ghost")
	if got := len(s.StatusAll()); got != 0 {
		t.Fatalf("expected empty status list, got %d entries", got)
	}
}

func TestLoadConfigFacade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[http]
listen = ":9999"

[[servers]]
name = "lobby"
min_memory_mb = 512
max_memory_mb = 1024
server_software = "paper.jar"
port = 25565
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTP.Listen != ":9999" || len(cfg.Servers) != 1 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestNewHistorySinkSQLite(t *testing.T) {
	sink, err := NewHistorySink(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistorySink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRegisterMetricsCustomRegistry(t *testing.T) {
	if err := RegisterMetrics(prometheus.NewRegistry()); err != nil {
		t.Fatalf("RegisterMetrics: %v", err)
	}
}
