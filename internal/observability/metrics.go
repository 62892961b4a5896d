// Package observability exposes the receiver's Prometheus metrics and the
// HTTP endpoint serving them.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	configuredLogger "github.com/fleetgrid/tracker-receiver/internal/logger"
)

var (
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "receiver_tcp_connections_total",
		Help: "TCP connections accepted",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "receiver_active_sessions",
		Help: "Currently open device sessions",
	})
	PacketsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receiver_packets_decoded_total",
		Help: "Complete frames decoded, by dialect",
	}, []string{"dialect"})
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receiver_decode_errors_total",
		Help: "Frames rejected by a decoder, by dialect",
	}, []string{"dialect"})
	EventsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receiver_events_persisted_total",
		Help: "Events handed to the event store, by dialect",
	}, []string{"dialect"})
	BytesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "receiver_bytes_discarded_total",
		Help: "Bytes dropped while hunting for a frame start",
	})
)

// StartMetricsServer serves /metrics and /healthz on addr. It blocks, so
// callers run it on its own goroutine.
func StartMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if err := http.ListenAndServe(addr, mux); err != nil {
		configuredLogger.Logger.Error("metrics server stopped", zap.Error(err))
	}
}
