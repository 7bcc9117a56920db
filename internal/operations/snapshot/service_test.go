package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"WarrenBot/internal/logger"
	"WarrenBot/internal/metrics"
	"WarrenBot/internal/models"
	"WarrenBot/internal/operations/backtest"
	"WarrenBot/internal/operations/price"
	"WarrenBot/internal/repositories"
	"WarrenBot/internal/services/policy"
	"WarrenBot/internal/services/strategy"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var t0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func trendCandles(n int, start, step float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		c := start + step*float64(i)
		out[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * 24 * time.Hour),
			Open:      c - step,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

// fakeIngester stores a fixed series, or fails.
type fakeIngester struct {
	repo    *repositories.CandleRepository
	candles []models.Candle
	err     error
}

func (f *fakeIngester) Refresh(ctx context.Context, symbol, interval string, _ int) (*price.RefreshResult, error) {
	res := &price.RefreshResult{Symbol: symbol, Interval: interval, Warnings: []string{}}
	if f.err != nil {
		res.Error = f.err.Error()
		return res, f.err
	}
	meta, err := f.repo.Save(ctx, symbol, interval, f.candles, true)
	if err != nil {
		return res, err
	}
	res.Success = true
	res.RowsFetched = len(f.candles)
	res.TotalAfterMerge = meta.Rows
	res.Metadata = &meta
	return res, nil
}

type fixture struct {
	svc      *Service
	candles  *repositories.CandleRepository
	ingester *fakeIngester
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "candles.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Candle{}))

	backtests, err := repositories.NewFileStore(filepath.Join(t.TempDir(), "backtests"))
	require.NoError(t, err)
	risk, err := repositories.NewFileStore(filepath.Join(t.TempDir(), "risk"))
	require.NoError(t, err)

	log := logger.Discard()
	candleRepo := repositories.NewCandleRepository(db, 48, log)
	engine := strategy.NewStrategyEngine()
	m := metrics.NewMetrics(nil)
	ingester := &fakeIngester{repo: candleRepo, candles: trendCandles(60, 100, 1)}

	svc := NewService(Config{
		DefaultSymbol:     "BTCUSDT",
		DefaultInterval:   "1d",
		MinDataWindowDays: 730,
		StaleCandleHours:  48,
	}, Deps{
		Candles:   candleRepo,
		Backtests: repositories.NewBacktestRepository(backtests, 48, log),
		Risk: repositories.NewRiskRepository(risk, repositories.RiskRepositoryConfig{
			MinTradesForReliability: 30,
			MinWindowDays:           730,
			MinDataWindowDays:       730,
			StaleCandleHours:        48,
		}, log),
		Strategy: engine,
		Engine:   backtest.NewEngine(engine, backtest.NewConfig()),
		Policy:   policy.NewRiskPolicy(policy.NewConfig()),
		Ingester: ingester,
		Metrics:  m,
		Log:      log,
	})
	svc.now = func() time.Time { return t0.Add(59*24*time.Hour + time.Hour) }

	return &fixture{svc: svc, candles: candleRepo, ingester: ingester, metrics: m}
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	_, err := f.candles.Save(context.Background(), "BTCUSDT", "1d", f.ingester.candles, false)
	require.NoError(t, err)
}

func TestResolve(t *testing.T) {
	f := newFixture(t)

	symbol, interval, err := f.svc.Resolve("", "")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)
	assert.Equal(t, "1d", interval)

	_, _, err = f.svc.Resolve("ETHUSDT", "3d")
	var dataErr *DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "Unsupported interval: 3d", dataErr.Message)
}

func TestReadsWithoutCandlesReportMissingData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Recommendation(ctx, "", "")
	assert.ErrorIs(t, err, ErrDataMissing)
	assert.EqualError(t, err, "No candle data found for BTCUSDT 1d. Please run /refresh first.")

	_, err = f.svc.LatestBacktest(ctx, "", "", false)
	assert.ErrorIs(t, err, ErrDataMissing)
	_, err = f.svc.Candles(ctx, "", "")
	assert.ErrorIs(t, err, ErrDataMissing)
	_, err = f.svc.RiskMetrics(ctx, "", "")
	assert.ErrorIs(t, err, ErrDataMissing)
}

func TestRecommendationWithoutRiskSnapshotIsBlocked(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	resp, err := f.svc.Recommendation(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, strategy.SignalHold, resp.Signal)
	require.NotNil(t, resp.OriginalSignal)
	assert.Equal(t, strategy.SignalBuy, *resp.OriginalSignal)
	assert.True(t, resp.IsBlocked)
	assert.Equal(t, policy.ReasonNoMetrics, *resp.BlockReason)
	assert.Nil(t, resp.EntryPrice)
	assert.Contains(t, resp.Rationale, policy.ReasonNoMetrics)
	assert.False(t, resp.DataFreshness.IsStale)
	assert.Len(t, resp.CandlesHash, 64)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RecommendationsTotal.WithLabelValues("HOLD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BlockedTotal.WithLabelValues("no_metrics")))
	assert.Zero(t, testutil.ToFloat64(f.metrics.BlockedTotal.WithLabelValues("cache")))
}

func TestBlockCause(t *testing.T) {
	noMetrics := policy.ReasonNoMetrics
	mismatch := "Candles changed since snapshot"
	tests := []struct {
		name string
		eval policy.RiskEvaluation
		want string
	}{
		{name: "stale", eval: policy.RiskEvaluation{IsBlocked: true, IsStale: true}, want: "stale"},
		{name: "violation", eval: policy.RiskEvaluation{
			IsBlocked:  true,
			Violations: []policy.PolicyViolation{{Type: policy.ViolationHighDrawdown}},
		}, want: "high_drawdown"},
		{name: "no metrics", eval: policy.RiskEvaluation{IsBlocked: true, BlockReason: &noMetrics}, want: "no_metrics"},
		{name: "inconsistent cache", eval: policy.RiskEvaluation{IsBlocked: true, BlockReason: &mismatch}, want: "cache"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, blockCause(tt.eval))
		})
	}
}

func TestRecommendationBlockedByMetricViolations(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.svc.RunBacktest(ctx, "", "")
	require.NoError(t, err)

	resp, err := f.svc.Recommendation(ctx, "", "")
	require.NoError(t, err)
	require.NotNil(t, resp.CacheValidation)
	assert.True(t, resp.CacheValidation.IsValid())
	assert.True(t, resp.IsBlocked)
	assert.NotEmpty(t, resp.Violations)
	assert.Equal(t, policy.ViolationInsufficientTrades, resp.Violations[0].Type)
	assert.Equal(t, strategy.SignalHold, resp.Signal)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BlockedTotal.WithLabelValues("insufficient_trades")))
}

func TestLatestBacktestCaching(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	first, err := f.svc.LatestBacktest(ctx, "", "", false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Len(t, first.Metadata.BacktestHash, 16)
	assert.NotEmpty(t, first.Metadata.RunID)

	second, err := f.svc.LatestBacktest(ctx, "", "", false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	require.NotNil(t, second.CacheValidation)
	assert.True(t, second.CacheValidation.IsValid())
	assert.Equal(t, first.Metrics.TotalTrades, second.Metrics.TotalTrades)

	forced, err := f.svc.LatestBacktest(ctx, "", "", true)
	require.NoError(t, err)
	assert.False(t, forced.Cached)

	// new candles invalidate the cached snapshot
	more := trendCandles(61, 100, 1)
	_, err = f.candles.Save(ctx, "BTCUSDT", "1d", more[60:], true)
	require.NoError(t, err)

	third, err := f.svc.LatestBacktest(ctx, "", "", false)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheInvalidations.WithLabelValues("backtest", "inconsistent")))
}

func TestBacktestOnShortSeriesWarnsNoTrades(t *testing.T) {
	f := newFixture(t)
	_, err := f.candles.Save(context.Background(), "BTCUSDT", "1d", trendCandles(10, 100, 1), false)
	require.NoError(t, err)

	resp, err := f.svc.RunBacktest(context.Background(), "", "")
	require.NoError(t, err)
	assert.Empty(t, resp.Trades)
	assert.Equal(t, WarningNoTrades, resp.Warning)
	assert.False(t, resp.Metrics.IsReliable)
}

func TestCandles(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	resp, err := f.svc.Candles(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, resp.Candles, 60)
	assert.Equal(t, 60, resp.Metadata.Rows)
	assert.True(t, resp.Metadata.LatestCandleTimestamp.Equal(t0.Add(59*24*time.Hour)))
	assert.Equal(t, "Data is fresh", resp.Metadata.Freshness.Reason)
	assert.Empty(t, resp.Warnings)

	f.svc.now = func() time.Time { return t0.Add(65 * 24 * time.Hour) }
	resp, err = f.svc.Candles(context.Background(), "", "")
	require.NoError(t, err)
	assert.True(t, resp.Metadata.Freshness.IsStale)
	assert.Equal(t, []string{"Data is 144.0 hours old"}, resp.Warnings)
}

func TestRiskMetricsRecomputesOnDemand(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	first, err := f.svc.RiskMetrics(ctx, "", "")
	require.NoError(t, err)
	assert.True(t, first.CacheInfo.Computed)
	assert.False(t, first.CacheInfo.WasRecomputed)
	assert.Equal(t, StatusDegraded, first.Status)
	require.NotNil(t, first.Reason)
	assert.Contains(t, *first.Reason, "Insufficient data window: 59 days < 730 minimum required")

	second, err := f.svc.RiskMetrics(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, second.CacheInfo.Computed)

	more := trendCandles(61, 100, 1)
	_, err = f.candles.Save(ctx, "BTCUSDT", "1d", more[60:], true)
	require.NoError(t, err)

	third, err := f.svc.RiskMetrics(ctx, "", "")
	require.NoError(t, err)
	assert.True(t, third.CacheInfo.Computed)
	assert.True(t, third.CacheInfo.WasRecomputed)
	require.NotNil(t, third.CacheValidation)
	assert.True(t, third.CacheValidation.IsValid())
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Refresh(context.Background(), "", "")
	require.NoError(t, err)
	assert.Nil(t, resp.Errors)
	assert.True(t, resp.Refresh.Success)
	assert.Len(t, resp.Refresh.CandlesHash, 64)
	require.NotNil(t, resp.Refresh.Timestamp)
	assert.True(t, resp.Refresh.Timestamp.Equal(t0.Add(59*24*time.Hour)))

	require.NotNil(t, resp.Snapshots.Backtest)
	require.NotNil(t, resp.Snapshots.Candles)
	require.NotNil(t, resp.Snapshots.Recommendation)
	require.NotNil(t, resp.Snapshots.Risk)
	// the risk snapshot was written by the backtest stage
	assert.False(t, resp.Snapshots.Risk.CacheInfo.Computed)
	assert.NotEqual(t, policy.ReasonNoMetrics, *resp.Snapshots.Recommendation.BlockReason)
}

func TestRefreshIngestionFailure(t *testing.T) {
	f := newFixture(t)
	f.ingester.err = errors.New("exchange down")

	_, err := f.svc.Refresh(context.Background(), "", "")
	var refreshErr *RefreshFailedError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, "exchange down", refreshErr.Error())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report := f.svc.Health(ctx)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "Missing candle data for BTCUSDT 1d. Run /refresh first.", report.Message)
	assert.Nil(t, report.Freshness)

	f.seed(t)
	report = f.svc.Health(ctx)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "Missing backtest data. Run /backtest/run first.", report.Message)
	assert.True(t, report.Checks.DataFresh)

	_, err := f.svc.RunBacktest(ctx, "", "")
	require.NoError(t, err)
	report = f.svc.Health(ctx)
	assert.Equal(t, StatusOK, report.Status)
	assert.Equal(t, "All systems operational", report.Message)

	f.svc.now = func() time.Time { return t0.Add(65 * 24 * time.Hour) }
	report = f.svc.Health(ctx)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "Data is stale: Data is 144.0 hours old", report.Message)
}
