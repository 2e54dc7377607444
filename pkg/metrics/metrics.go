// Package metrics holds the Prometheus collectors of the chat layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Connections       prometheus.Gauge
	Rooms             prometheus.Gauge
	MessagesPersisted *prometheus.CounterVec
	SendFailures      *prometheus.CounterVec
	FanoutDeliveries  prometheus.Counter
	FanoutEvictions   prometheus.Counter
	AuthFailures      prometheus.Counter
	ActivityRecorded  prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// binaries so that promhttp.Handler exposes them.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections",
			Help: "Open websocket connections.",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "chat_rooms",
			Help: "Rooms with at least one joined connection.",
		}),
		MessagesPersisted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages stored, by conversation kind.",
		}, []string{"kind"}),
		SendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_send_failures_total",
			Help: "Rejected or failed sends, by reason.",
		}, []string{"reason"}),
		FanoutDeliveries: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_fanout_deliveries_total",
			Help: "Frames queued to joined connections.",
		}),
		FanoutEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_fanout_evictions_total",
			Help: "Connections closed because their send buffer was full.",
		}),
		AuthFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_auth_failures_total",
			Help: "Rejected connection or request tokens.",
		}),
		ActivityRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "chat_activity_recorded_total",
			Help: "Conversation activity updates written by the indexer.",
		}),
	}
}

// NewUnregistered returns collectors bound to a private registry, for tests
// and tools that do not expose /metrics.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
