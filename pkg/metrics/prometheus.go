package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the escrow service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Escrow business metrics
	poolsInitialized prometheus.Counter
	roundsCreated    prometheus.Counter
	roundsFinished   prometheus.Counter
	depositsAccepted prometheus.Counter
	depositsRejected *prometheus.CounterVec
	feeLamports      prometheus.Counter
	vaultLamports    prometheus.Counter
	airdropLamports  prometheus.Counter

	// Escrow state gauges, refreshed on a schedule
	openRounds     prometheus.Gauge
	ledgerAccounts prometheus.Gauge

	// Operation latency
	operationLatency *prometheus.HistogramVec

	// Ledger metrics
	ledgerUpdateLatency prometheus.Histogram
	ledgerConflicts     prometheus.Counter

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "wagerpool",
		subsystem:        "escrow",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.poolsInitialized = m.counter("pools_initialized_total", "Total number of pools initialized")
	m.roundsCreated = m.counter("rounds_created_total", "Total number of rounds opened")
	m.roundsFinished = m.counter("rounds_finished_total", "Total number of rounds that reached capacity")
	m.depositsAccepted = m.counter("deposits_accepted_total", "Total number of deposits committed")
	m.depositsRejected = m.counterVec("deposits_rejected_total", "Deposits rejected by reason", "reason")
	m.feeLamports = m.counter("fee_lamports_total", "Lamports paid to fee receivers")
	m.vaultLamports = m.counter("vault_lamports_total", "Lamports locked into round vaults")
	m.airdropLamports = m.counter("airdrop_lamports_total", "Lamports minted by the faucet")

	m.openRounds = m.gauge("open_rounds", "Rounds created in this process that are still accepting deposits")
	m.ledgerAccounts = m.gauge("ledger_accounts", "Number of accounts held by the ledger")

	m.operationLatency = m.histogramVec("operation_latency_milliseconds",
		"Latency of escrow operations in milliseconds", "operation", "outcome")

	m.ledgerUpdateLatency = m.histogram("ledger_update_latency_milliseconds",
		"Latency of ledger read-write transactions in milliseconds", m.histogramBuckets)
	m.ledgerConflicts = m.counter("ledger_conflicts_total",
		"Ledger transactions replayed after a concurrent write")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordPoolInitialized increments the pools initialized counter.
func RecordPoolInitialized() {
	globalManager.poolsInitialized.Inc()
}

// RecordRoundCreated increments the rounds created counter and the open rounds gauge.
func RecordRoundCreated() {
	globalManager.roundsCreated.Inc()
	globalManager.openRounds.Inc()
}

// RecordRoundFinished increments the rounds finished counter and decrements open rounds.
func RecordRoundFinished() {
	globalManager.roundsFinished.Inc()
	globalManager.openRounds.Dec()
}

// RecordDepositAccepted counts a committed deposit and the value it moved.
func RecordDepositAccepted(fee, vault uint64) {
	globalManager.depositsAccepted.Inc()
	globalManager.feeLamports.Add(float64(fee))
	globalManager.vaultLamports.Add(float64(vault))
}

// RecordDepositRejected counts a deposit rejected for reason.
func RecordDepositRejected(reason string) {
	globalManager.depositsRejected.WithLabelValues(reason).Inc()
}

// RecordAirdrop counts lamports minted by the faucet.
func RecordAirdrop(amount uint64) {
	globalManager.airdropLamports.Add(float64(amount))
}

// UpdateOpenRounds sets the open rounds gauge.
func UpdateOpenRounds(count int) {
	globalManager.openRounds.Set(float64(count))
}

// UpdateLedgerAccounts sets the ledger account gauge.
func UpdateLedgerAccounts(count int) {
	globalManager.ledgerAccounts.Set(float64(count))
}

// RecordOperationLatency records the latency of an escrow operation.
func RecordOperationLatency(operation, outcome string, latencyMs float64) {
	globalManager.operationLatency.WithLabelValues(operation, outcome).Observe(latencyMs)
}

// RecordLedgerUpdateLatency records ledger transaction latency.
func RecordLedgerUpdateLatency(latencyMs float64) {
	globalManager.ledgerUpdateLatency.Observe(latencyMs)
}

// RecordLedgerConflict increments the ledger conflict counter.
func RecordLedgerConflict() {
	globalManager.ledgerConflicts.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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
