package vagkoll

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricLiveMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vagkoll",
		Name:      "live_events_total",
		Help:      "Live stream records by merge outcome",
	}, []string{"result"})

	metricPagesLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vagkoll",
		Name:      "pages_loaded_total",
		Help:      "REST snapshot pages merged into the store",
	})

	metricEventsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vagkoll",
		Name:      "events_expired_total",
		Help:      "Events removed by the expiry sweeper",
	})

	metricStoreSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vagkoll",
		Name:      "store_size",
		Help:      "Events currently held in the canonical store",
	})
)
