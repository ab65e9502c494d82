// Package metrics registers the fern Prometheus collectors. Every collector lives in the
// "fern" namespace and is served by the /metrics route.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fern"

var (
	latencyBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	fastBuckets    = []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.25}
)

var (
	// BackendRequests counts calls made to the ticketing backend
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "requests_total",
		Help:      "Calls made to the ticketing backend by method and status",
	}, []string{"method", "status_code"})

	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "backend",
		Name:      "request_seconds",
		Help:      "Latency of calls to the ticketing backend",
		Buckets:   latencyBuckets,
	}, []string{"method"})

	// ServedRequests counts requests handled by the fern API
	ServedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Requests handled by the API by method, route and status",
	}, []string{"method", "route", "status_code"})

	ServedLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "request_seconds",
		Help:      "Latency of requests handled by the API",
		Buckets:   latencyBuckets,
	}, []string{"route"})

	// ReconcileActions counts ensure decisions. check_mode separates dry runs.
	ReconcileActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reconcile",
		Name:      "actions_total",
		Help:      "Reconcile decisions by table, action and check mode",
	}, []string{"table", "action", "check_mode"})

	QueryParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "parse_failures_total",
		Help:      "Queries rejected because a condition did not parse",
	})

	PolledRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "records_total",
		Help:      "Changed records picked up by the poller",
	}, []string{"table"})

	PollFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "failures_total",
		Help:      "Poll cycles that ended in an error",
	}, []string{"table"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Record event batches written to Kafka by topic and outcome",
	}, []string{"topic", "status"})

	EventPublishLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "publish_seconds",
		Help:      "Latency of Kafka batch writes",
		Buckets:   latencyBuckets,
	})

	RedisLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "redis",
		Name:      "command_seconds",
		Help:      "Latency of redis commands by command",
		Buckets:   fastBuckets,
	}, []string{"command"})
)

// RecordHTTPRequest observes one call to the backend. statusCode is "error" when no response came back.
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	BackendRequests.WithLabelValues(method, statusCode).Inc()
	BackendLatency.WithLabelValues(method).Observe(durationSeconds)
}

// RecordServedRequest observes one request handled by the API
func RecordServedRequest(method, route string, status int, durationSeconds float64) {
	if route == "" {
		route = "unmatched"
	}
	ServedRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	ServedLatency.WithLabelValues(route).Observe(durationSeconds)
}

func RecordReconcile(table, action string, checkMode bool) {
	ReconcileActions.WithLabelValues(table, action, strconv.FormatBool(checkMode)).Inc()
}

// RecordPoll counts the records of a successful cycle or one failure
func RecordPoll(table string, observed int, err error) {
	if err != nil {
		PollFailures.WithLabelValues(table).Inc()
		return
	}
	PolledRecords.WithLabelValues(table).Add(float64(observed))
}

func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	EventsPublished.WithLabelValues(topic, status).Inc()
	EventPublishLatency.Observe(durationSeconds)
}
