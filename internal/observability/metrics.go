package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	registerOnce sync.Once

	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genradio",
			Subsystem: "sync",
			Name:      "messages_sent_total",
			Help:      "Messages sent to the peer tracker.",
		},
		[]string{"action"},
	)
	messagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "genradio",
			Subsystem: "sync",
			Name:      "messages_received_total",
			Help:      "Messages received from the peer tracker.",
		},
		[]string{"action"},
	)
	pollErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "genradio",
			Subsystem: "sync",
			Name:      "poll_errors_total",
			Help:      "Inbound poll attempts that failed the session.",
		},
	)
	sourcesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "genradio",
			Subsystem: "registry",
			Name:      "sources_active",
			Help:      "Sources currently held in the local registry.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(messagesSent, messagesReceived, pollErrors, sourcesActive)
	})
}

func RecordMessageSent(action string) {
	RegisterMetrics()
	messagesSent.WithLabelValues(action).Inc()
}

func RecordMessageReceived(action string) {
	RegisterMetrics()
	messagesReceived.WithLabelValues(action).Inc()
}

func RecordPollError() {
	RegisterMetrics()
	pollErrors.Inc()
}

func SetActiveSources(n int) {
	RegisterMetrics()
	sourcesActive.Set(float64(n))
}

// StartMetricsServer serves /metrics on addr in the background. The
// returned server should be closed on shutdown.
func StartMetricsServer(addr string) *http.Server {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Msgf("metrics server stopped addr=%q err=%v", addr, err)
		}
	}()
	return srv
}
