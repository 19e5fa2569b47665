package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStarted EventType = "started"
	EventStopped EventType = "stopped"
	EventKilled  EventType = "killed"
)

// Event records one supervisor lifecycle transition for a server instance.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ServerID   string    `json:"server_id"`
	ServerName string    `json:"server_name"`
	PID        int       `json:"pid"`
	Port       int       `json:"port"`
	Proxy      bool      `json:"proxy"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for lifecycle events (audit/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
