// Package metrics provides Prometheus metrics for the G-Cart service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Team formation
	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	projectSelected *prometheus.CounterVec
	offers          *prometheus.CounterVec
	bids            *prometheus.CounterVec

	// Partner directory
	directoryRefreshes   *prometheus.CounterVec
	directoryFetchTime   prometheus.Histogram
	directoryPartners    prometheus.Gauge
	directoryQuarantined prometheus.Counter

	// Offer notifications
	notifyQueueSize   prometheus.Gauge
	notifyDropped     prometheus.Counter
	notifyDelivered   prometheus.Counter
	notifySubscribers prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gcart",
		subsystem:        "marketplace",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval reports how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.sessionsActive = m.gauge("sessions_active", "Number of live browsing/team-building sessions")
	m.sessionsCreated = m.counter("sessions_created_total", "Total number of sessions created")
	m.projectSelected = m.counterVec("project_selected_total", "Project selections by solo verdict", "solo")
	m.offers = m.counterVec("offers_total", "Partner offers by outcome", "outcome")
	m.bids = m.counterVec("bids_total", "Bid confirmations by outcome", "outcome")

	m.directoryRefreshes = m.counterVec("directory_refresh_total", "Partner directory refreshes by snapshot origin", "origin")
	m.directoryFetchTime = m.histogram("directory_fetch_latency_milliseconds", "Latency of partner sheet fetches", m.histogramBuckets)
	m.directoryPartners = m.gauge("directory_partners", "Partners in the current directory snapshot")
	m.directoryQuarantined = m.counter("directory_quarantined_rows_total", "Sheet rows rejected by validation")

	m.notifyQueueSize = m.gauge("notify_queue_size", "Pending offer notifications")
	m.notifyDropped = m.counter("notify_dropped_total", "Notifications dropped on backpressure")
	m.notifyDelivered = m.counter("notify_delivered_total", "Notifications handed to subscribers")
	m.notifySubscribers = m.gauge("notify_subscribers", "Open notification streams")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// UpdateSessionsActive sets the live session gauge.
func UpdateSessionsActive(count int) {
	globalManager.sessionsActive.Set(float64(count))
}

// RecordSessionCreated increments the created sessions counter.
func RecordSessionCreated() {
	globalManager.sessionsCreated.Inc()
}

// RecordProjectSelected counts a project selection, split by whether the
// owner could bid alone.
func RecordProjectSelected(solo bool) {
	label := "false"
	if solo {
		label = "true"
	}
	globalManager.projectSelected.WithLabelValues(label).Inc()
}

// RecordOffer counts an offer outcome: added, duplicate, stale, not_eligible.
func RecordOffer(outcome string) {
	globalManager.offers.WithLabelValues(outcome).Inc()
}

// RecordBid counts a bid outcome: confirmed or rejected.
func RecordBid(outcome string) {
	globalManager.bids.WithLabelValues(outcome).Inc()
}

// RecordDirectoryRefresh counts a directory snapshot by origin.
func RecordDirectoryRefresh(origin string) {
	globalManager.directoryRefreshes.WithLabelValues(origin).Inc()
}

// RecordDirectoryFetchLatency records a sheet fetch latency in milliseconds.
func RecordDirectoryFetchLatency(latencyMs float64) {
	globalManager.directoryFetchTime.Observe(latencyMs)
}

// UpdateDirectoryPartners sets the partner count of the current snapshot.
func UpdateDirectoryPartners(count int) {
	globalManager.directoryPartners.Set(float64(count))
}

// RecordDirectoryQuarantined adds rejected sheet rows.
func RecordDirectoryQuarantined(rows int) {
	if rows > 0 {
		globalManager.directoryQuarantined.Add(float64(rows))
	}
}

// UpdateNotifyQueueSize sets the pending notification gauge.
func UpdateNotifyQueueSize(size int) {
	globalManager.notifyQueueSize.Set(float64(size))
}

// RecordNotifyDropped counts a dropped notification.
func RecordNotifyDropped() {
	globalManager.notifyDropped.Inc()
}

// RecordNotifyDelivered counts a delivered notification.
func RecordNotifyDelivered() {
	globalManager.notifyDelivered.Inc()
}

// UpdateNotifySubscribers sets the open stream gauge.
func UpdateNotifySubscribers(count int) {
	globalManager.notifySubscribers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error raised by an internal component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error returned from an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records an average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
