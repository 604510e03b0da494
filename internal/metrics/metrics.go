// Package metrics provides Prometheus instrumentation for the
// simulation engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts simulation ticks, partitioned by mode
	// (sandbox, lab, scenario).
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coincademy_ticks_total",
		Help: "Total simulation ticks executed",
	}, []string{"mode"})

	// TradesTotal counts executed sandbox trades by mode and side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coincademy_trades_total",
		Help: "Total sandbox trades executed",
	}, []string{"mode", "side"})

	// TradeRejections counts trades rejected by validation.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coincademy_trade_rejections_total",
		Help: "Trades rejected by portfolio validation",
	}, []string{"mode"})

	// ReplaySessions counts started replay sessions.
	ReplaySessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coincademy_replay_sessions_total",
		Help: "Replay sessions started",
	})

	// ScenarioRuns counts finished scenario runs by stars earned.
	ScenarioRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coincademy_scenario_runs_total",
		Help: "Scenario runs finished, by star rating",
	}, []string{"stars"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coincademy_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coincademy_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coincademy_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small and
		// parameterized only by asset symbol.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
