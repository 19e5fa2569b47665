package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serverStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serverstarter",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of successful server process spawns.",
		}, []string{"name"},
	)
	gracefulStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serverstarter",
			Subsystem: "server",
			Name:      "graceful_stops_total",
			Help:      "Number of servers that exited within the stop timeout.",
		}, []string{"name"},
	)
	kills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serverstarter",
			Subsystem: "server",
			Name:      "kills_total",
			Help:      "Number of forced terminations after the stop timeout.",
		}, []string{"name"},
	)
	linesCaptured = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serverstarter",
			Subsystem: "server",
			Name:      "console_lines_total",
			Help:      "Console lines captured from server stdout.",
		}, []string{"name"},
	)
	runningServers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "serverstarter",
			Subsystem: "server",
			Name:      "running",
			Help:      "Current number of supervised server processes.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serverStarts, gracefulStops, kills, linesCaptured, runningServers}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(name string) {
	if regOK.Load() {
		serverStarts.WithLabelValues(name).Inc()
	}
}

func IncGracefulStop(name string) {
	if regOK.Load() {
		gracefulStops.WithLabelValues(name).Inc()
	}
}

func IncKill(name string) {
	if regOK.Load() {
		kills.WithLabelValues(name).Inc()
	}
}

func AddConsoleLines(name string, n int) {
	if regOK.Load() {
		linesCaptured.WithLabelValues(name).Add(float64(n))
	}
}

func SetRunning(n int) {
	if regOK.Load() {
		runningServers.Set(float64(n))
	}
}
