// Package metrics defines the Prometheus collectors of the room service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector. Each instance owns its registry so tests
// can build as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	// Connections tracks live websocket connections by namespace.
	Connections *prometheus.GaugeVec

	// RoomOperations counts coordinator operations by op and result.
	// result is "ok" or the error kind.
	RoomOperations *prometheus.CounterVec

	// Signaling counts relayed signaling messages by event and outcome
	// (delivered, dropped).
	Signaling *prometheus.CounterVec

	// OccupancyClamps counts occupancy writes that had to be clamped.
	OccupancyClamps prometheus.Counter

	// FanoutPublishes counts bus publishes by scope and status.
	FanoutPublishes *prometheus.CounterVec

	// RateLimited counts events rejected by the chat limiter.
	RateLimited prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		Connections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rooms_connections",
				Help: "Live websocket connections by namespace",
			},
			[]string{"namespace"},
		),

		RoomOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rooms_operations_total",
				Help: "Room coordinator operations by operation and result",
			},
			[]string{"op", "result"},
		),

		Signaling: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rooms_signaling_messages_total",
				Help: "Relayed signaling messages by event and outcome",
			},
			[]string{"event", "outcome"},
		),

		OccupancyClamps: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rooms_occupancy_clamps_total",
				Help: "Occupancy writes clamped to the valid range",
			},
		),

		FanoutPublishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rooms_fanout_publishes_total",
				Help: "Fan-out bus publishes by scope and status",
			},
			[]string{"scope", "status"},
		),

		RateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rooms_rate_limited_total",
				Help: "Events rejected by the per-connection rate limiter",
			},
		),
	}
}

// ObservePublish records one fan-out publish.
func (m *Metrics) ObservePublish(scope string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.FanoutPublishes.WithLabelValues(scope, status).Inc()
}
