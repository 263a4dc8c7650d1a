// Package metrics provides Prometheus metrics for the typing-practice service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Core business metrics
	sessionsRecorded prometheus.Counter
	validationErrors prometheus.Counter
	aggregateFolds   prometheus.Counter

	// Live session metrics
	liveConnections prometheus.Gauge
	progressEvents  prometheus.Counter
	metricsUpdates  prometheus.Counter
	broadcasts      *prometheus.CounterVec
	droppedSends    prometheus.Counter

	// Cache metrics
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheInvalidations prometheus.Counter

	// Store metrics
	storeLatency *prometheus.HistogramVec

	// Queue metrics
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueErrors      prometheus.Counter
	queueDrops       prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Population gauge
	totalUsers prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "typetrack",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.sessionsRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_recorded_total",
		Help: "Total number of completed typing sessions persisted",
	})
	m.validationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "validation_errors_total",
		Help: "Total number of session submissions rejected by validation",
	})
	m.aggregateFolds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "aggregate_folds_total",
		Help: "Total number of sessions folded into user aggregates",
	})

	m.liveConnections = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "live_connections",
		Help: "Number of currently connected live typing sessions",
	})
	m.progressEvents = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "progress_events_total",
		Help: "Total number of raw typing progress events received",
	})
	m.metricsUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "metrics_updates_total",
		Help: "Total number of metrics_update events sent to typists",
	})
	m.broadcasts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcasts_total",
		Help: "Total number of hub broadcasts by event type",
	}, []string{"event"})
	m.droppedSends = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dropped_sends_total",
		Help: "Total number of messages dropped on full or closed connections",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cache_hits_total",
		Help: "Total number of leaderboard cache hits",
	})
	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cache_misses_total",
		Help: "Total number of leaderboard cache misses",
	})
	m.cacheInvalidations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cache_invalidations_total",
		Help: "Total number of leaderboard cache invalidations",
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_latency_milliseconds",
		Help:    "Histogram of persistence operation latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"operation"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_size",
		Help: "Current number of queued session events",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_capacity",
		Help: "Configured capacity of the session event queue",
	})
	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_utilization",
		Help: "Fraction of queue capacity in use",
	})
	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_enqueues_total",
		Help: "Total number of events enqueued",
	})
	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_dequeues_total",
		Help: "Total number of events dequeued",
	})
	m.queueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_errors_total",
		Help: "Total number of failed enqueue attempts",
	})
	m.queueDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_drops_total",
		Help: "Total number of dequeued events dropped before delivery",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_count",
		Help: "Number of broadcast workers",
	})
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "worker_processing_latency_milliseconds",
		Help:    "Histogram of event processing latency in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_errors_total",
		Help: "Total number of worker processing failures",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "Histogram of HTTP request latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.totalUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "total_users",
		Help: "Number of users with a folded aggregate",
	})
}

// GetRegistry returns the registry metrics are collected on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level recording helpers on the global manager.

func RecordSessionRecorded() { globalManager.sessionsRecorded.Inc() }
func RecordValidationError() { globalManager.validationErrors.Inc() }
func RecordFold()            { globalManager.aggregateFolds.Inc() }

func IncLiveConnections()   { globalManager.liveConnections.Inc() }
func DecLiveConnections()   { globalManager.liveConnections.Dec() }
func RecordProgressEvent()  { globalManager.progressEvents.Inc() }
func RecordMetricsUpdate()  { globalManager.metricsUpdates.Inc() }
func RecordDroppedSend()    { globalManager.droppedSends.Inc() }
func RecordBroadcast(event string) {
	globalManager.broadcasts.WithLabelValues(event).Inc()
}

func RecordCacheHit()          { globalManager.cacheHits.Inc() }
func RecordCacheMiss()         { globalManager.cacheMisses.Inc() }
func RecordCacheInvalidation() { globalManager.cacheInvalidations.Inc() }

func RecordStoreLatency(operation string, ms float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(ms)
}

func UpdateQueueSize(n int)             { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int)         { globalManager.queueCapacity.Set(float64(n)) }
func UpdateQueueUtilization(f float64)  { globalManager.queueUtilization.Set(f) }
func RecordQueueEnqueue()               { globalManager.queueEnqueues.Inc() }
func RecordQueueDequeue()               { globalManager.queueDequeues.Inc() }
func RecordQueueEnqueueError()          { globalManager.queueErrors.Inc() }
func RecordQueueDrop()                  { globalManager.queueDrops.Inc() }
func UpdateWorkerCount(n int)           { globalManager.workerCount.Set(float64(n)) }
func RecordWorkerProcessingLatency(ms float64) {
	globalManager.workerProcessingLatency.Observe(ms)
}
func RecordWorkerError() { globalManager.workerErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

func UpdateTotalUsers(n int) { globalManager.totalUsers.Set(float64(n)) }
