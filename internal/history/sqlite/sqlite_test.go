package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/smoothcloud/serverstarter/internal/history"
)

func TestSinkSendAndQueryBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sink, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	events := []history.Event{
		{Type: history.EventStarted, OccurredAt: time.Now().UTC(), ServerID: "id-1", ServerName: "lobby", PID: 100, Port: 25565},
		{Type: history.EventStopped, OccurredAt: time.Now().UTC(), ServerID: "id-1", ServerName: "lobby", PID: 100, Port: 25565, Detail: "exited"},
		{Type: history.EventKilled, OccurredAt: time.Now().UTC(), ServerID: "id-2", ServerName: "proxy", PID: 101, Port: 25577, Proxy: true},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Send(%s): %v", e.Type, err)
		}
	}

	var count int
	if err := sink.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM server_history WHERE server_id = ?`, "id-1").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows for id-1, got %d", count)
	}

	var event string
	var proxy int
	if err := sink.db.QueryRowContext(ctx, `SELECT event, proxy FROM server_history WHERE server_id = ?`, "id-2").Scan(&event, &proxy); err != nil {
		t.Fatalf("row query: %v", err)
	}
	if event != string(history.EventKilled) || proxy != 1 {
		t.Fatalf("unexpected row: event=%q proxy=%d", event, proxy)
	}
}

func TestNewAcceptsDSNPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sink, err := New("sqlite://" + path)
	if err != nil {
		t.Fatalf("New with prefix: %v", err)
	}
	_ = sink.Close()
}

func TestNewInMemory(t *testing.T) {
	sink, err := New(":memory:")
	if err != nil {
		t.Fatalf("New in-memory: %v", err)
	}
	defer func() { _ = sink.Close() }()
	if err := sink.Send(context.Background(), history.Event{Type: history.EventStarted, OccurredAt: time.Now().UTC(), ServerID: "id", ServerName: "s"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestNewRejectsEmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}
