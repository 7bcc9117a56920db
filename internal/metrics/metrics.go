package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the recommendation service.
type Metrics struct {
	registry prometheus.Gatherer

	// Strategy
	RecommendationsTotal *prometheus.CounterVec // labels: signal
	BlockedTotal         *prometheus.CounterVec // labels: reason_type

	// Backtests
	BacktestRuns        *prometheus.CounterVec // labels: source=cache|engine
	BacktestDuration    prometheus.Histogram
	BacktestTradesTotal prometheus.Counter

	// Ingestion
	CandlesFetched  *prometheus.CounterVec // labels: symbol, interval
	IngestionErrors *prometheus.CounterVec // labels: symbol, interval
	CandleAgeHours  *prometheus.GaugeVec   // labels: symbol, interval

	// Snapshot cache
	CacheInvalidations *prometheus.CounterVec // labels: kind, cause=stale|inconsistent|missing

	// HTTP
	HTTPRequests *prometheus.CounterVec // labels: route, status
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates every collector and registers it with reg. A nil reg
// gets a private registry so tests and multiple servers never collide.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,

		RecommendationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warren_recommendations_total",
			Help: "Recommendations served, by final signal",
		}, []string{"signal"}),
		BlockedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warren_recommendations_blocked_total",
			Help: "Recommendations forced to HOLD by the risk policy",
		}, []string{"reason_type"}),

		BacktestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warren_backtest_runs_total",
			Help: "Backtest results served, by source",
		}, []string{"source"}),
		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warren_backtest_duration_seconds",
			Help:    "Wall time of one full backtest run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		BacktestTradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warren_backtest_trades_total",
			Help: "Trades produced by backtest runs",
		}),

		CandlesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warren_ingestion_candles_fetched_total",
			Help: "Candles downloaded from the exchange",
		}, []string{"symbol", "interval"}),
		IngestionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warren_ingestion_errors_total",
			Help: "Failed refresh runs",
		}, []string{"symbol", "interval"}),
		CandleAgeHours: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "warren_candle_age_hours",
			Help: "Age of the latest stored candle at the last freshness check",
		}, []string{"symbol", "interval"}),

		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warren_snapshot_cache_invalidations_total",
			Help: "Cached snapshots that had to be recomputed",
		}, []string{"kind", "cause"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warren_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warren_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.RecommendationsTotal,
		m.BlockedTotal,
		m.BacktestRuns,
		m.BacktestDuration,
		m.BacktestTradesTotal,
		m.CandlesFetched,
		m.IngestionErrors,
		m.CandleAgeHours,
		m.CacheInvalidations,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// ObserveBacktest records one engine run.
func (m *Metrics) ObserveBacktest(started time.Time, trades int) {
	m.BacktestRuns.WithLabelValues("engine").Inc()
	m.BacktestDuration.Observe(time.Since(started).Seconds())
	m.BacktestTradesTotal.Add(float64(trades))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
