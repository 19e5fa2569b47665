package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/smoothcloud/serverstarter/internal/history"
)

// Sink sends lifecycle events to ClickHouse using the official Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

func New(addr, table string) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	return &Sink{conn: conn, table: table}, nil
}

// EnsureSchema creates the event table when it does not exist yet.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		occurred_at DateTime64(3),
		event String,
		server_id String,
		server_name String,
		pid Int32,
		port Int32,
		proxy UInt8,
		detail String
	) ENGINE = MergeTree() ORDER BY (server_id, occurred_at)`, s.table)
	return s.conn.Exec(ctx, stmt)
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (occurred_at, event, server_id, server_name, pid, port, proxy, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	proxy := uint8(0)
	if e.Proxy {
		proxy = 1
	}
	if err := s.conn.Exec(ctx, query,
		e.OccurredAt,
		string(e.Type),
		e.ServerID,
		e.ServerName,
		int32(e.PID),
		int32(e.Port),
		proxy,
		e.Detail,
	); err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
