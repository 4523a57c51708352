// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Simulation metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	TradesSimulated prometheus.Counter
	StrategyErrors  prometheus.Counter
	OrdersDiscarded prometheus.Counter

	// Batch metrics
	BatchesTotal  *prometheus.CounterVec
	BatchDuration prometheus.Histogram

	// Data loading metrics
	UniverseLoads  *prometheus.CounterVec
	BenchmarkLoads *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Reporting metrics
	ReportsGenerated prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "portfolio_backtest_lab"
	}

	return &Metrics{
		// Simulation metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Duration of one simulation run in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades produced by simulation runs",
		}),
		StrategyErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "strategy_errors_total",
			Help:      "Total number of strategy evaluations degraded to HOLD",
		}),
		OrdersDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "orders_discarded_total",
			Help:      "Total number of pending orders dropped by rounding or capital limits",
		}),

		// Batch metrics
		BatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harness",
			Name:      "batches_total",
			Help:      "Total number of evaluation batches by status",
		}, []string{"status"}),
		BatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "harness",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one evaluation batch in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		// Data loading metrics
		UniverseLoads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harness",
			Name:      "universe_loads_total",
			Help:      "Universe loads by cache result",
		}, []string{"result"}),
		BenchmarkLoads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "harness",
			Name:      "benchmark_loads_total",
			Help:      "Benchmark loads by cache result",
		}, []string{"result"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration by database and operation",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Database query errors by database and operation",
		}, []string{"database", "operation"}),

		// Reporting metrics
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records one finished simulation run.
func RecordRun(failed bool, durationSeconds float64) {
	status := "ok"
	if failed {
		status = "failed"
	}
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordRunOutput accumulates a run's trade and error counters.
func RecordRunOutput(trades, strategyErrors, discardedOrders int) {
	DefaultMetrics.TradesSimulated.Add(float64(trades))
	DefaultMetrics.StrategyErrors.Add(float64(strategyErrors))
	DefaultMetrics.OrdersDiscarded.Add(float64(discardedOrders))
}

// RecordBatch records one finished evaluation batch.
func RecordBatch(hadErrors bool, durationSeconds float64) {
	status := "ok"
	if hadErrors {
		status = "degraded"
	}
	DefaultMetrics.BatchesTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BatchDuration.Observe(durationSeconds)
}

// RecordUniverseLoad records a universe cache lookup.
func RecordUniverseLoad(cached bool) {
	DefaultMetrics.UniverseLoads.WithLabelValues(cacheResult(cached)).Inc()
}

// RecordBenchmarkLoad records a benchmark cache lookup.
func RecordBenchmarkLoad(cached bool) {
	DefaultMetrics.BenchmarkLoads.WithLabelValues(cacheResult(cached)).Inc()
}

func cacheResult(cached bool) string {
	if cached {
		return "hit"
	}
	return "miss"
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordReportGenerated increments the reports generated counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}
