package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingestion metrics
	BatchesIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "uxtrace_batches_ingested_total",
			Help: "Total number of accepted ingestion batches",
		},
	)

	EventsStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uxtrace_events_stored_total",
			Help: "Total number of stored records by kind",
		},
		[]string{"kind"},
	)

	IngestFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "uxtrace_ingest_failures_total",
			Help: "Total number of ingestion requests that failed to persist",
		},
	)

	IngestBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "uxtrace_ingest_bytes_total",
			Help: "Total ingested request body bytes",
		},
	)

	// Feed metrics
	FeedRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "uxtrace_feed_requests_total",
			Help: "Total number of /events-json reads",
		},
	)
)

func init() {
	prometheus.MustRegister(BatchesIngested)
	prometheus.MustRegister(EventsStored)
	prometheus.MustRegister(IngestFailures)
	prometheus.MustRegister(IngestBytes)
	prometheus.MustRegister(FeedRequests)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
