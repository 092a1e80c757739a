package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// CacheHit labels queries served from the result cache.
	CacheHit = "hit"
	// CacheMiss labels queries that were computed.
	CacheMiss = "miss"

	// OutcomeSuccess labels refreshes that published a new generation.
	OutcomeSuccess = "success"
	// OutcomeUnavailable labels refreshes whose source failed or timed out.
	OutcomeUnavailable = "unavailable"
	// OutcomeRejected labels refreshes whose records failed validation.
	OutcomeRejected = "rejected"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "press_radar",
			Name:      "queries_total",
			Help:      "Total number of analytics queries, partitioned by cache outcome.",
		},
		[]string{"cache"},
	)

	querySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "press_radar",
			Name:      "query_seconds",
			Help:      "Analytics query latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	refreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "press_radar",
			Name:      "refreshes_total",
			Help:      "Total number of record store refreshes, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	storeRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "press_radar",
			Name:      "store_records",
			Help:      "Number of records in the published store.",
		},
	)

	storeGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "press_radar",
			Name:      "store_generation",
			Help:      "Generation counter of the published store.",
		},
	)
)

// Register attaches press-radar collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		queriesTotal,
		querySeconds,
		refreshesTotal,
		storeRecords,
		storeGeneration,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveQuery records a query duration and whether it hit the cache.
func ObserveQuery(duration time.Duration, cached bool) {
	label := CacheMiss
	if cached {
		label = CacheHit
	}
	queriesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	querySeconds.Observe(duration.Seconds())
}

// ObserveRefresh counts a refresh attempt by outcome.
func ObserveRefresh(outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeUnavailable, OutcomeRejected:
	default:
		outcome = OutcomeRejected
	}
	refreshesTotal.WithLabelValues(outcome).Inc()
}

// SetStoreSize publishes the size and generation of the current store.
func SetStoreSize(records int, generation uint64) {
	storeRecords.Set(float64(records))
	storeGeneration.Set(float64(generation))
}
