package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Publish metrics
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_events_published_total",
			Help: "Total number of events published by topic",
		},
		[]string{"tenant", "namespace", "topic"},
	)

	PublishFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_publish_failures_total",
			Help: "Total number of failed publish requests by error code",
		},
		[]string{"code"},
	)

	PublishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_publish_duration_seconds",
			Help:    "Publish pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Delivery metrics
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_deliveries_total",
			Help: "Total number of webhook delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	DeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_delivery_duration_seconds",
			Help:    "Webhook delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ConsumersRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_consumers_removed_total",
			Help: "Total number of consumers removed after retry exhaustion",
		},
	)

	// Dispatcher metrics
	DispatchersRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_dispatchers_running",
			Help: "Number of per-topic dispatchers currently running",
		},
	)

	DispatcherWakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_dispatcher_wakes_total",
			Help: "Total number of dispatcher wakes by cause",
		},
		[]string{"cause"},
	)

	// Registry metrics
	ConsumersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_consumers_total",
			Help: "Total number of registered consumers",
		},
	)

	// Projection metrics
	ProjectionEventsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_projection_events_applied_total",
			Help: "Total number of control-plane events folded by topic",
		},
		[]string{"topic"},
	)

	ProjectionRebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_projection_rebuild_duration_seconds",
			Help:    "Projection replay duration on startup in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(PublishFailuresTotal)
	prometheus.MustRegister(PublishDuration)
	prometheus.MustRegister(DeliveriesTotal)
	prometheus.MustRegister(DeliveryDuration)
	prometheus.MustRegister(ConsumersRemovedTotal)
	prometheus.MustRegister(DispatchersRunning)
	prometheus.MustRegister(DispatcherWakesTotal)
	prometheus.MustRegister(ConsumersTotal)
	prometheus.MustRegister(ProjectionEventsAppliedTotal)
	prometheus.MustRegister(ProjectionRebuildDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
