package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	linesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "econctl",
			Subsystem: "engine",
			Name:      "lines_received_total",
			Help:      "Inbound lines parsed into messages; empty lines are not counted.",
		},
	)
	bytesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "econctl",
			Subsystem: "engine",
			Name:      "bytes_read_total",
			Help:      "Raw bytes read from the console socket.",
		},
	)
	commandsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "econctl",
			Subsystem: "engine",
			Name:      "commands_sent_total",
			Help:      "Command lines written to the console socket.",
		},
	)
	faults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econctl",
			Subsystem: "engine",
			Name:      "faults_total",
			Help:      "Pump faults that closed an engine.",
		},
		[]string{"reason"},
	)
	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "econctl",
			Subsystem: "engine",
			Name:      "auth_total",
			Help:      "Handshake outcomes.",
		},
		[]string{"outcome"},
	)
	authDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "econctl",
			Subsystem: "engine",
			Name:      "auth_duration_seconds",
			Help:      "Time from dial to handshake verdict.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "econctl",
			Subsystem: "engine",
			Name:      "sessions_active",
			Help:      "Engines currently running.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(linesReceived, bytesRead, commandsSent, faults, authAttempts, authDuration, activeSessions)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// RecordRead counts one socket read and the messages it produced.
func RecordRead(bytes, messages int) {
	RegisterMetrics()
	bytesRead.Add(float64(bytes))
	linesReceived.Add(float64(messages))
}

func RecordCommandSent() {
	RegisterMetrics()
	commandsSent.Inc()
}

func RecordFault(reason string) {
	RegisterMetrics()
	faults.WithLabelValues(reason).Inc()
}

func RecordAuth(outcome string, duration time.Duration) {
	RegisterMetrics()
	authAttempts.WithLabelValues(outcome).Inc()
	authDuration.Observe(duration.Seconds())
}

func SessionStarted() {
	RegisterMetrics()
	activeSessions.Inc()
}

func SessionEnded() {
	RegisterMetrics()
	activeSessions.Dec()
}
