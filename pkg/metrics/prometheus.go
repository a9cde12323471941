// Package metrics provides Prometheus metrics for the pbspread service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Derivation
	recomputes        prometheus.Counter
	recomputeLatency  prometheus.Histogram
	recomputeErrors   prometheus.Counter
	athletesTotal     prometheus.Gauge
	sessionsAveraged  prometheus.Gauge
	paceCells         *prometheus.CounterVec
	rankedResults     *prometheus.GaugeVec
	staleJobsDropped  prometheus.Counter
	duplicateSheets   prometheus.Counter
	snapshotVersion   prometheus.Gauge
	snapshotLastUnix  prometheus.Gauge
	sheetFetches      *prometheus.CounterVec
	sheetFetchLatency prometheus.Histogram
	sheetRows         prometheus.Gauge

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var (
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry
	globalManager  *Manager                   //nolint:gochecknoglobals // process-wide metrics
)

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pbspread",
		subsystem:        "squad",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	m.recomputes = m.counter("recomputes_total", "Total number of completed full recomputes")
	m.recomputeLatency = m.histogram("recompute_duration_milliseconds", "Duration of a full recompute in milliseconds", m.histogramBuckets)
	m.recomputeErrors = m.counter("recompute_errors_total", "Total number of recomputes that did not publish")
	m.athletesTotal = m.gauge("athletes", "Number of athletes in the published snapshot")
	m.sessionsAveraged = m.gauge("sessions_with_average", "Number of events with a defined squad average")
	m.paceCells = m.counterVec("pace_cells_total", "Pace cells seen while building athletes, by outcome", "outcome")
	m.rankedResults = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "ranked_results",
		Help: "Number of ranked athletes per event in the published snapshot", ConstLabels: m.constLabels,
	}, []string{"event"})
	m.staleJobsDropped = m.counter("stale_jobs_dropped_total", "Recompute jobs discarded because a newer snapshot was already published")
	m.duplicateSheets = m.counter("duplicate_sheets_total", "Sheet payloads skipped because their content was already computed")
	m.snapshotVersion = m.gauge("snapshot_version", "Sequence number of the published snapshot")
	m.snapshotLastUnix = m.gauge("snapshot_last_unix", "Unix timestamp of the last snapshot publish")
	m.sheetFetches = m.counterVec("sheet_fetches_total", "Sheet fetch attempts by source and outcome", "source", "outcome")
	m.sheetFetchLatency = m.histogram("sheet_fetch_duration_milliseconds", "Sheet fetch and parse duration in milliseconds", m.histogramBuckets)
	m.sheetRows = m.gauge("sheet_rows", "Rows in the most recently fetched sheet")

	m.queueSize = m.gauge("queue_size", "Current number of pending recompute jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of pending recompute jobs")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Total number of recompute jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Total number of recompute jobs dequeued")
	m.queueEnqueueErrs = m.counter("queue_enqueue_errors_total", "Total number of rejected recompute jobs")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Pace cell outcomes.
const (
	PaceParsed    = "parsed"
	PaceAbsent    = "absent"
	PaceMalformed = "malformed"
)

// RecordRecompute records a completed recompute and its duration.
func RecordRecompute(latencyMs float64) {
	globalManager.recomputes.Inc()
	globalManager.recomputeLatency.Observe(latencyMs)
}

// RecordRecomputeError increments the failed recompute counter.
func RecordRecomputeError() {
	globalManager.recomputeErrors.Inc()
}

// UpdateAthletes sets the athlete count of the published snapshot.
func UpdateAthletes(count int) {
	globalManager.athletesTotal.Set(float64(count))
}

// UpdateSessionsWithAverage sets the number of events holding a defined average.
func UpdateSessionsWithAverage(count int) {
	globalManager.sessionsAveraged.Set(float64(count))
}

// RecordPaceCells adds n cells with the given outcome.
func RecordPaceCells(outcome string, n int) {
	if n <= 0 {
		return
	}
	globalManager.paceCells.WithLabelValues(outcome).Add(float64(n))
}

// UpdateRankedResults sets the ranked athlete count for one event.
func UpdateRankedResults(event string, count int) {
	globalManager.rankedResults.WithLabelValues(event).Set(float64(count))
}

// RecordStaleJobDropped increments the stale job counter.
func RecordStaleJobDropped() {
	globalManager.staleJobsDropped.Inc()
}

// RecordDuplicateSheet increments the unchanged-sheet counter.
func RecordDuplicateSheet() {
	globalManager.duplicateSheets.Inc()
}

// RecordSnapshotPublished records the sequence and time of a publish.
func RecordSnapshotPublished(seq uint64, unix int64) {
	globalManager.snapshotVersion.Set(float64(seq))
	globalManager.snapshotLastUnix.Set(float64(unix))
}

// RecordSheetFetch records one fetch attempt.
func RecordSheetFetch(source, outcome string, latencyMs float64, rows int) {
	globalManager.sheetFetches.WithLabelValues(source, outcome).Inc()
	globalManager.sheetFetchLatency.Observe(latencyMs)
	if outcome == "ok" {
		globalManager.sheetRows.Set(float64(rows))
	}
}

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
