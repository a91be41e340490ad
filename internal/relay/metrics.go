package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_total",
		Help: "Inbound events handled, by event name and outcome",
	}, []string{"event", "outcome"})

	metricJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_joins_total",
		Help: "join-code attempts by result (success, failed)",
	}, []string{"result"})

	metricSessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_sessions_ended_total",
		Help: "Rooms notified with session-ended after owner disconnect",
	})

	metricFanout = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_fanout_recipients",
		Help:    "Recipients per relayed signaling/drawing message",
		Buckets: []float64{0, 1, 2, 4, 8, 16},
	})
)
