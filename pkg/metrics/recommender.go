package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Latency of the recommendations HTTP handlers
	RecommendLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommend_latency_seconds",
		Help:    "Latency of the recommendations handlers",
		Buckets: prometheus.DefBuckets,
	})

	// Total number of recommendation requests served, by segment and source
	RecommendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests by segment and result source.",
		},
		[]string{"segment", "source"},
	)

	// Cache outcomes on the recommendation path
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_cache_requests_total",
			Help: "Result cache lookups by outcome (hit, miss, invalidated).",
		},
		[]string{"outcome"},
	)

	// Scorers that reported unavailable and had their weight redistributed
	ScorerUnavailable = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_scorer_unavailable_total",
			Help: "Count of scorer-unavailable degradations by scorer.",
		},
		[]string{"scorer"},
	)

	// Version of the model snapshot currently serving requests
	SnapshotVersion = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "recommend_model_snapshot_version",
		Help: "Version of the published model snapshot.",
	})

	// Offers written by the offer generator
	OffersGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "offers_generated_total",
		Help: "Total number of personalized offers generated.",
	})

	// Per-variant experiment outcomes (impressions, clicks, purchases)
	ExperimentEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_experiment_events_total",
			Help: "Experiment outcome events by experiment, variant, and event type.",
		},
		[]string{"experiment", "variant", "event"},
	)
)

func Init() {
	prometheus.MustRegister(
		RecommendLatency,
		RecommendRequests,
		CacheRequests,
		ScorerUnavailable,
		SnapshotVersion,
		OffersGenerated,
		ExperimentEvents,
	)
}
