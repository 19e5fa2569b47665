package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/smoothcloud/serverstarter/internal/history"
)

// setupClickHouseContainer starts a ClickHouse container for testing
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	clickHouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	host, err := clickHouseContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	addr := host + ":" + port.Port()
	return clickHouseContainer, addr
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, addr := setupClickHouseContainer(ctx, t)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	sink, err := New(addr, "server_history_test")
	if err != nil {
		t.Fatalf("Failed to create ClickHouse sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	events := []history.Event{
		{Type: history.EventStarted, OccurredAt: time.Now().UTC(), ServerID: "id-1", ServerName: "lobby", PID: 12345, Port: 25565},
		{Type: history.EventKilled, OccurredAt: time.Now().UTC(), ServerID: "id-1", ServerName: "lobby", PID: 12345, Port: 25565, Detail: "timeout"},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send %s event: %v", e.Type, err)
		}
	}

	var count uint64
	row := sink.conn.QueryRow(ctx, "SELECT COUNT(*) FROM server_history_test WHERE server_id = ?", "id-1")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 events in history, got %d", count)
	}
}
