package serverstarter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/smoothcloud/serverstarter/internal/config"
	"github.com/smoothcloud/serverstarter/internal/history"
	"github.com/smoothcloud/serverstarter/internal/history/factory"
	"github.com/smoothcloud/serverstarter/internal/instance"
	"github.com/smoothcloud/serverstarter/internal/logger"
	"github.com/smoothcloud/serverstarter/internal/metrics"
	iapi "github.com/smoothcloud/serverstarter/internal/server"
	"github.com/smoothcloud/serverstarter/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Server = instance.Server

type Status = supervisor.Status

type HistorySink = history.Sink

type LogConfig = logger.Config

type Config = cfg.Config

// Supervisor is a thin facade over internal/supervisor.Supervisor.
// It provides a stable public API for embedding.

type Supervisor struct{ inner *supervisor.Supervisor }

func New() *Supervisor { return &Supervisor{inner: supervisor.New()} }

// NewID generates a fresh opaque server id.
func NewID() string { return uuid.NewString() }

func (s *Supervisor) SetLogger(l *slog.Logger)             { s.inner.SetLogger(l) }
func (s *Supervisor) SetHistorySinks(sinks ...HistorySink) { s.inner.SetHistorySinks(sinks...) }
func (s *Supervisor) SetConsoleLog(c LogConfig)            { s.inner.SetConsoleLog(c) }
func (s *Supervisor) Start(id string, srv *Server)         { s.inner.Start(id, srv) }
func (s *Supervisor) Stop(id string)                       { s.inner.Stop(id) }
func (s *Supervisor) Execute(id, command string) error     { return s.inner.Execute(id, command) }
func (s *Supervisor) Logs(id string) ([]string, error)     { return s.inner.Logs(id) }
func (s *Supervisor) Status(id string) (Status, error)     { return s.inner.Status(id) }
func (s *Supervisor) StatusAll() []Status                  { return s.inner.StatusAll() }
func (s *Supervisor) Shutdown()                            { s.inner.Shutdown() }

// LoadConfig parses the daemon TOML configuration.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewHistorySink creates a lifecycle-event sink from a DSN
// (sqlite://, postgres://, clickhouse://).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// NewHTTPServer starts an HTTP server exposing the supervisor API.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, s.inner)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It runs in the caller goroutine and returns any listen
// error.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
