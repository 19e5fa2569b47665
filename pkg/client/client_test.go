package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smoothcloud/serverstarter/internal/instance"
	"github.com/smoothcloud/serverstarter/internal/server"
	"github.com/smoothcloud/serverstarter/internal/supervisor"
)

func newTestDaemon(t *testing.T) (*Client, *supervisor.Supervisor) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh on Unix-like systems")
	}
	gin.SetMode(gin.TestMode)
	sup := supervisor.New()
	sup.SetArgvBuilder(func(*instance.Server) []string {
		return []string{"/bin/sh", "-c", `echo booted; while read l; do [ "$l" = "stop" ] && exit 0; done`}
	})
	t.Cleanup(sup.Shutdown)

	r := server.NewRouter(sup, "/api")
	ts := httptest.NewServer(r.Handler())
	t.Cleanup(ts.Close)

	c := New(Config{BaseURL: ts.URL + "/api", Timeout: 5 * time.Second})
	return c, sup
}

func testDescriptor() instance.Server {
	return instance.Server{
		Name:           "lobby",
		MinMemoryMB:    512,
		MaxMemoryMB:    1024,
		ServerSoftware: "paper.jar",
		Port:           25565,
	}
}

func TestClientLifecycle(t *testing.T) {
	c, _ := newTestDaemon(t)
	ctx := context.Background()

	if !c.IsReachable(ctx) {
		t.Fatalf("daemon should be reachable")
	}

	if err := c.Start(ctx, "id-1", testDescriptor()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		st, err := c.Status(ctx, "id-1")
		if err == nil && st.Running {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	st, err := c.Status(ctx, "id-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running || st.Name != "lobby" {
		t.Fatalf("unexpected status: %+v", st)
	}

	all, err := c.StatusAll(ctx)
	if err != nil {
		t.Fatalf("StatusAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 status, got %d", len(all))
	}

	if err := c.Execute(ctx, "id-1", "say hello"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	deadline = time.Now().Add(3 * time.Second)
	var lines []string
	for time.Now().Before(deadline) {
		lines, err = c.Logs(ctx, "id-1")
		if err == nil && len(lines) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if len(lines) == 0 || lines[0] != "[lobby]booted" {
		t.Fatalf("unexpected log lines: %v", lines)
	}

	if err := c.Stop(ctx, "id-1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestClientStartValidationError(t *testing.T) {
	c, _ := newTestDaemon(t)
	srv := testDescriptor()
	srv.Port = 0
	err := c.Start(context.Background(), "id-1", srv)
	if err == nil || !strings.Contains(err.Error(), "API error") {
		t.Fatalf("expected API error for invalid descriptor, got %v", err)
	}
}

func TestClientLogsUnknownID(t *testing.T) {
	c, _ := newTestDaemon(t)
	if _, err := c.Logs(context.Background(), "ghost"); err == nil {
		t.Fatalf("expected error for unknown id")
	}
}

func TestClientUnreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1/api", Timeout: 500 * time.Millisecond})
	ctx := context.Background()
	if c.IsReachable(ctx) {
		t.Fatalf("nothing should be listening on port 1")
	}
	if err := c.Stop(ctx, "id"); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestClientDefaults(t *testing.T) {
	c := New(Config{})
	if c.baseURL != "http://localhost:8080/api" {
		t.Fatalf("default base URL = %q", c.baseURL)
	}
	if c.client.Timeout != 10*time.Second {
		t.Fatalf("default timeout = %v", c.client.Timeout)
	}

	if _, err := http.NewRequest(http.MethodGet, c.baseURL, nil); err != nil {
		t.Fatalf("default base URL not parseable: %v", err)
	}
}
