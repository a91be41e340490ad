package codes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gaugeLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_codes_live",
		Help: "Codes currently bound to a connected owner",
	})

	metricAllocated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_codes_allocated_total",
		Help: "Total codes handed out",
	})

	metricReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_codes_released_total",
		Help: "Total codes released on owner disconnect",
	})

	metricExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_code_exhausted_total",
		Help: "Allocations that found no free code",
	})

	// draws per successful allocation; climbs as the space fills up
	metricDraws = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_code_allocation_draws",
		Help:    "Candidates examined per successful allocation",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

func observeAllocation(draws, live int) {
	metricAllocated.Inc()
	metricDraws.Observe(float64(draws))
	gaugeLive.Set(float64(live))
}
