package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transport_connections_active",
		Help: "Open WebSocket connections",
	})

	gaugeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transport_rooms_active",
		Help: "Rooms with at least one member",
	})

	metricFramesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transport_frames_in_total",
		Help: "Inbound frames by outcome (ok, malformed)",
	}, []string{"outcome"})

	metricFramesOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transport_frames_out_total",
		Help: "Outbound frames queued to a connection",
	})

	metricDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transport_send_drops_total",
		Help: "Outbound frames dropped because the connection outbox was full",
	})
)
