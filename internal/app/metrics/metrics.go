// Package metrics exposes Prometheus collectors for the relay layer.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "relay_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relay_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	messagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay_layer",
			Subsystem: "relay",
			Name:      "messages_sent_total",
			Help:      "Total number of outbound messages accepted.",
		},
	)

	messagesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay_layer",
			Subsystem: "relay",
			Name:      "messages_received_total",
			Help:      "Total number of inbound deliveries accepted.",
		},
	)

	replaysRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay_layer",
			Subsystem: "relay",
			Name:      "replays_rejected_total",
			Help:      "Total number of deliveries rejected as already processed.",
		},
	)

	messagesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relay_layer",
			Subsystem: "relay",
			Name:      "messages_expired_total",
			Help:      "Total number of pending messages marked failed on expiry.",
		},
	)

	relayFee = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "relay_layer",
			Subsystem: "relay",
			Name:      "fee",
			Help:      "Current relay fee charged per outbound message.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		messagesSent,
		messagesReceived,
		replaysRejected,
		messagesExpired,
		relayFee,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Websocket upgrades need the raw ResponseWriter (Hijacker).
		if r.URL.Path == "/metrics" || r.URL.Path == "/v1/events/ws" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordMessageSent counts an accepted outbound message.
func RecordMessageSent() { messagesSent.Inc() }

// RecordMessageReceived counts an accepted inbound delivery.
func RecordMessageReceived() { messagesReceived.Inc() }

// RecordReplayRejected counts a delivery rejected as already processed.
func RecordReplayRejected() { replaysRejected.Inc() }

// RecordExpired counts pending messages failed by the expiry sweeper.
func RecordExpired(n int) { messagesExpired.Add(float64(n)) }

// SetRelayFee publishes the current fee.
func SetRelayFee(amount uint64) { relayFee.Set(float64(amount)) }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// canonicalPath collapses identifier segments so metric cardinality stays
// bounded.
func canonicalPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if isIdentifier(part, i, parts) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isIdentifier(part string, index int, parts []string) bool {
	if index == 0 {
		return false
	}
	switch part {
	case "send", "receive":
		return false
	}
	switch parts[index-1] {
	case "messages", "chains", "accounts", "deliveries":
		return true
	}
	// the nonce segment of /deliveries/{chain}/{nonce}
	if index >= 2 && parts[index-2] == "deliveries" {
		return true
	}
	return false
}
