package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_messages_submitted_total",
		Help: "Messages committed, by kind and conversation kind",
	}, []string{"kind", "conversation"})

	SubmitFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_submit_failures_total",
		Help: "Rejected or failed submissions, by error code",
	}, []string{"code"})

	BroadcastFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_broadcast_failures_total",
		Help: "Realtime publishes that failed, by event type",
	}, []string{"event"})

	NotificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parley_call_notification_failures_total",
		Help: "Call notifications that could not be sent",
	})

	PreviewDegraded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_thread_preview_degraded_total",
		Help: "Thread previews that fell back to null or untranslated text",
	}, []string{"reason"})

	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parley_ws_active_connections",
		Help: "Active websocket connections",
	})
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call twice.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MessagesSubmitted,
			SubmitFailures,
			BroadcastFailures,
			NotificationFailures,
			PreviewDegraded,
			Connections,
		)
	})
}

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
