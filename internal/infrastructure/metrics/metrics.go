package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the relay's Prometheus instruments.
type Metrics struct {
	ConnectedClients  prometheus.Gauge
	ActiveCanvasRooms prometheus.Gauge
	ActiveTypingRooms prometheus.Gauge

	EventsRelayed  *prometheus.CounterVec
	SignalsRelayed *prometheus.CounterVec
	EventsDropped  prometheus.Counter
	FlagsRaised    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ConnectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "sketchdash",
			Name:      "connected_clients",
			Help:      "Number of live websocket connections.",
		}),
		ActiveCanvasRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "sketchdash",
			Name:      "active_canvas_rooms",
			Help:      "Canvas rooms with at least one bound connection.",
		}),
		ActiveTypingRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "sketchdash",
			Name:      "active_typing_rooms",
			Help:      "Typing rooms currently held in memory.",
		}),
		EventsRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sketchdash",
			Name:      "events_relayed_total",
			Help:      "Events multicast to room members, by event type.",
		}, []string{"type"}),
		SignalsRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sketchdash",
			Name:      "voice_signals_relayed_total",
			Help:      "Voice signaling payloads forwarded between peers, by scope.",
		}, []string{"scope"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sketchdash",
			Name:      "events_dropped_total",
			Help:      "Events dropped because a client send buffer was full.",
		}),
		FlagsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sketchdash",
			Name:      "anticheat_flags_total",
			Help:      "Anti-cheat flags raised, by kind.",
		}, []string{"kind"}),
	}
}
