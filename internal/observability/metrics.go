package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JourneysStarted    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "pmv_rental", Name: "journeys_started_total", Help: "Total vehicle pairings"})
	JourneysCompleted  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "pmv_rental", Name: "journeys_completed_total", Help: "Total journeys unpaired and archived"})
	BroadcastsReceived = promauto.NewCounter(prometheus.CounterOpts{Namespace: "pmv_rental", Name: "station_broadcasts_received_total", Help: "Station broadcasts delivered to coordinators"})

	Payments = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pmv_rental", Name: "payments_total", Help: "Payment attempts by method and outcome"},
		[]string{"method", "outcome"},
	)

	FareEuros = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pmv_rental",
		Name:      "fare_euros",
		Help:      "Fare distribution of completed journeys",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 250, 500, 1000},
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pmv_rental", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pmv_rental",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
