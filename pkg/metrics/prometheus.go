// Package metrics provides Prometheus metrics for the usercf recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Ingestion
	ratingsSubmitted prometheus.Counter
	ratingsDuplicate prometheus.Counter
	ratingsApplied   prometheus.Counter

	// Recommendation engine
	similarityComputations   *prometheus.CounterVec
	operationLatency         *prometheus.HistogramVec
	operationErrors          *prometheus.CounterVec
	recommendationsExhausted *prometheus.CounterVec
	recommendedItems         prometheus.Histogram

	// Store
	totalUsers           prometheus.Gauge
	totalRatings         prometheus.Gauge
	storeUpdateLatency   prometheus.Histogram
	storeSnapshotLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec
	errorLatency      *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "usercf",
		subsystem:      "recommender",
		latencyBuckets: DefaultLatencyBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.latencyBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.latencyBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.ratingsSubmitted = m.counter("ratings_submitted_total", "Ratings accepted for asynchronous ingestion")
	m.ratingsDuplicate = m.counter("ratings_duplicate_total", "Rating submissions rejected as duplicates")
	m.ratingsApplied = m.counter("ratings_applied_total", "Ratings written to the rating store")

	m.similarityComputations = m.counterVec("similarity_computations_total",
		"Pairwise user similarity computations by kernel", "kernel")
	m.operationLatency = m.histogramVec("operation_latency_milliseconds",
		"Latency of recommendation operations in milliseconds", "operation", "kernel")
	m.operationErrors = m.counterVec("operation_errors_total",
		"Failed recommendation operations by reason", "operation", "reason")
	m.recommendationsExhausted = m.counterVec("recommendations_exhausted_total",
		"Recommendation requests that had no unseen items to offer", "kernel")
	m.recommendedItems = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "recommended_items",
		Help:    "Number of items returned per recommendation request",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.totalUsers = m.gauge("users", "Users present in the rating store")
	m.totalRatings = m.gauge("ratings", "Ratings present in the rating store")
	m.storeUpdateLatency = m.histogram("store_update_latency_milliseconds", "Rating store write latency")
	m.storeSnapshotLatency = m.histogram("store_snapshot_latency_milliseconds", "Rating store snapshot latency")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Ratings waiting in the ingestion queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the ingestion queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Ratings enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Ratings dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Failed enqueue attempts")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency")

	m.workerCount = m.gauge("worker_count", "Running ingestion workers")
	m.workerMessagesPerSecond = m.gauge("worker_messages_per_second", "Ratings applied per second")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to apply one rating")
	m.workerErrors = m.counter("worker_errors_total", "Ratings the workers failed to apply")

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total",
		"Errors by type and severity", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by endpoint, method and type", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds",
		"Latency of operations that ended in an error", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time")
}

// Ingestion.

// RecordRatingSubmitted increments the accepted submissions counter.
func RecordRatingSubmitted() { globalManager.ratingsSubmitted.Inc() }

// RecordRatingDuplicate increments the duplicate submissions counter.
func RecordRatingDuplicate() { globalManager.ratingsDuplicate.Inc() }

// RecordRatingApplied increments the applied ratings counter.
func RecordRatingApplied() { globalManager.ratingsApplied.Inc() }

// Recommendation engine.

// RecordSimilarityComputations adds n pairwise computations for kernel.
func RecordSimilarityComputations(kernel string, n int) {
	globalManager.similarityComputations.WithLabelValues(kernel).Add(float64(n))
}

// RecordOperationLatency records how long an engine operation took.
func RecordOperationLatency(operation, kernel string, latencyMs float64) {
	globalManager.operationLatency.WithLabelValues(operation, kernel).Observe(latencyMs)
}

// RecordOperationError counts a failed engine operation.
func RecordOperationError(operation, reason string) {
	globalManager.operationErrors.WithLabelValues(operation, reason).Inc()
}

// RecordRecommendationsExhausted counts a "no recommendations possible" outcome.
func RecordRecommendationsExhausted(kernel string) {
	globalManager.recommendationsExhausted.WithLabelValues(kernel).Inc()
}

// RecordRecommendedItems observes the length of a recommendation list.
func RecordRecommendedItems(n int) { globalManager.recommendedItems.Observe(float64(n)) }

// Store.

// UpdateTotalUsers sets the number of users in the store.
func UpdateTotalUsers(count int) { globalManager.totalUsers.Set(float64(count)) }

// UpdateTotalRatings sets the number of ratings in the store.
func UpdateTotalRatings(count int) { globalManager.totalRatings.Set(float64(count)) }

// RecordStoreUpdateLatency records a store write.
func RecordStoreUpdateLatency(latencyMs float64) { globalManager.storeUpdateLatency.Observe(latencyMs) }

// RecordStoreSnapshotLatency records a store snapshot.
func RecordStoreSnapshotLatency(latencyMs float64) {
	globalManager.storeSnapshotLatency.Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Workers.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerMessagesPerSecond sets the ingestion throughput.
func UpdateWorkerMessagesPerSecond(rate float64) { globalManager.workerMessagesPerSecond.Set(rate) }

// RecordWorkerProcessingLatency records the time taken to apply one rating.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
