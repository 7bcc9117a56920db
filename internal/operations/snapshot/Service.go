package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"WarrenBot/internal/logger"
	"WarrenBot/internal/metrics"
	"WarrenBot/internal/models"
	"WarrenBot/internal/operations/backtest"
	"WarrenBot/internal/operations/price"
	"WarrenBot/internal/repositories"
	"WarrenBot/internal/services/policy"
	"WarrenBot/internal/services/strategy"

	"golang.org/x/sync/errgroup"
)

// Ingester brings the stored candle series up to date.
type Ingester interface {
	Refresh(ctx context.Context, symbol, interval string, minWindowDays int) (*price.RefreshResult, error)
}

type Config struct {
	DefaultSymbol     string
	DefaultInterval   string
	MinDataWindowDays int
	StaleCandleHours  float64
}

// Deps are the collaborators a Service composes.
type Deps struct {
	Candles   *repositories.CandleRepository
	Backtests *repositories.BacktestRepository
	Risk      *repositories.RiskRepository
	Strategy  *strategy.StrategyEngine
	Engine    *backtest.Engine
	Policy    *policy.RiskPolicy
	Ingester  Ingester
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

// Service answers every read and refresh request for a symbol/interval
// series, rebuilding cached snapshots when they no longer match the candles.
type Service struct {
	cfg       Config
	candles   *repositories.CandleRepository
	backtests *repositories.BacktestRepository
	risk      *repositories.RiskRepository
	strategy  *strategy.StrategyEngine
	engine    *backtest.Engine
	policy    *policy.RiskPolicy
	ingester  Ingester
	metrics   *metrics.Metrics
	log       *slog.Logger
	now       func() time.Time
}

func NewService(cfg Config, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	return &Service{
		cfg:       cfg,
		candles:   deps.Candles,
		backtests: deps.Backtests,
		risk:      deps.Risk,
		strategy:  deps.Strategy,
		engine:    deps.Engine,
		policy:    deps.Policy,
		ingester:  deps.Ingester,
		metrics:   m,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Resolve fills in the default series and rejects unknown intervals.
func (s *Service) Resolve(symbol, interval string) (string, string, error) {
	if symbol == "" {
		symbol = s.cfg.DefaultSymbol
	}
	if interval == "" {
		interval = s.cfg.DefaultInterval
	}
	if !models.IsKnownInterval(interval) {
		return "", "", &DataError{Message: fmt.Sprintf("Unsupported interval: %s", interval)}
	}
	return symbol, interval, nil
}

// loadCandles reads the series or reports it missing.
func (s *Service) loadCandles(ctx context.Context, symbol, interval string) ([]models.Candle, repositories.CandleMetadata, error) {
	candles, meta, err := s.candles.Load(ctx, symbol, interval)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, meta, &DataMissingError{Resource: "candle", Symbol: symbol, Interval: interval, Hint: "/refresh"}
	}
	return candles, meta, err
}

// Recommendation evaluates the strategy on the stored series and forces HOLD
// when the risk policy blocks the signal.
func (s *Service) Recommendation(ctx context.Context, symbol, interval string) (*RecommendationResponse, error) {
	symbol, interval, err := s.Resolve(symbol, interval)
	if err != nil {
		return nil, err
	}
	candles, meta, err := s.loadCandles(ctx, symbol, interval)
	if err != nil {
		return nil, err
	}

	rec := s.strategy.GenerateRecommendation(candles)

	var (
		riskMetrics *backtest.MetricsReport
		riskValid   *models.RiskValidation
		cache       *models.CacheValidation
	)
	snap, cv, err := s.risk.Load(ctx, symbol, interval, meta.SourceFileHash, meta.AsOf)
	switch {
	case err == nil:
		riskMetrics, riskValid, cache = &snap.Metrics, &snap.Validation, &cv
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("load risk snapshot: %w", err)
	}

	windowDays := meta.WindowDays()
	eval := s.policy.EvaluateRiskForSignal(riskMetrics, riskValid, cache, &windowDays)

	resp := &RecommendationResponse{
		AsOf:            meta.AsOf,
		DataFreshness:   repositories.FreshnessAt(meta.AsOf, s.now(), s.cfg.StaleCandleHours),
		CandlesHash:     meta.SourceFileHash,
		CacheValidation: cache,
		RiskEvaluation:  eval,
	}

	if eval.IsBlocked && rec.Signal.IsTrade() {
		original := rec.Signal
		resp.OriginalSignal = &original
		rec = rec.Hold(fmt.Sprintf("Blocked by risk policy: %s", *eval.BlockReason))
		s.metrics.BlockedTotal.WithLabelValues(blockCause(eval)).Inc()
		s.log.Info("signal blocked",
			"symbol", symbol,
			"interval", interval,
			"signal", original.String(),
			"reason", *eval.BlockReason)
	}
	resp.Recommendation = *rec
	s.metrics.RecommendationsTotal.WithLabelValues(rec.Signal.String()).Inc()
	return resp, nil
}

func blockCause(eval policy.RiskEvaluation) string {
	switch {
	case eval.IsStale:
		return "stale"
	case len(eval.Violations) > 0:
		return string(eval.Violations[0].Type)
	case eval.BlockReason != nil && *eval.BlockReason == policy.ReasonNoMetrics:
		return "no_metrics"
	default:
		return "cache"
	}
}

// LatestBacktest serves the cached backtest while it matches the stored
// candles, and runs the engine otherwise or when force is set.
func (s *Service) LatestBacktest(ctx context.Context, symbol, interval string, force bool) (*BacktestResponse, error) {
	symbol, interval, err := s.Resolve(symbol, interval)
	if err != nil {
		return nil, err
	}
	candles, meta, err := s.loadCandles(ctx, symbol, interval)
	if err != nil {
		return nil, err
	}

	if !force {
		snap, cv, err := s.backtests.Load(ctx, symbol, interval, meta.SourceFileHash, meta.AsOf)
		switch {
		case err == nil && cv.IsValid():
			s.metrics.BacktestRuns.WithLabelValues("cache").Inc()
			return &BacktestResponse{
				Cached:          true,
				BacktestResult:  snap.BacktestResult,
				Metadata:        snap.Metadata,
				CacheValidation: &cv,
				Warning:         noTradesWarning(&snap.BacktestResult),
			}, nil
		case err == nil:
			s.invalidated("backtest", cv)
		case errors.Is(err, repositories.ErrNotFound):
			s.metrics.CacheInvalidations.WithLabelValues("backtest", "missing").Inc()
		default:
			s.log.Warn("backtest snapshot unreadable, recomputing", "symbol", symbol, "interval", interval, "error", err)
		}
	}

	result, snapMeta, err := s.runBacktest(ctx, symbol, interval, candles, meta)
	if err != nil {
		return nil, err
	}
	return &BacktestResponse{
		BacktestResult: *result,
		Metadata:       snapMeta,
		Warning:        noTradesWarning(result),
	}, nil
}

// RunBacktest always runs the engine.
func (s *Service) RunBacktest(ctx context.Context, symbol, interval string) (*BacktestResponse, error) {
	return s.LatestBacktest(ctx, symbol, interval, true)
}

func noTradesWarning(result *backtest.BacktestResult) string {
	if len(result.Trades) == 0 {
		return WarningNoTrades
	}
	return ""
}

// runBacktest runs the engine and stores both the backtest and the risk
// snapshot derived from its metrics.
func (s *Service) runBacktest(
	ctx context.Context,
	symbol, interval string,
	candles []models.Candle,
	meta repositories.CandleMetadata,
) (*backtest.BacktestResult, repositories.SnapshotMetadata, error) {
	if logger.RunID(ctx) == "" {
		ctx = logger.WithRunID(ctx, logger.NewRunID())
	}

	started := time.Now()
	result := s.engine.Run(candles)
	s.metrics.ObserveBacktest(started, len(result.Trades))

	snapMeta, err := s.backtests.Save(ctx, symbol, interval, result, meta.SourceFileHash, meta.AsOf)
	if err != nil {
		return nil, repositories.SnapshotMetadata{}, err
	}
	if _, err := s.risk.Save(ctx, symbol, interval, result.Metrics, result.Metrics.TotalTrades,
		meta.WindowDays(), meta.SourceFileHash, meta.AsOf); err != nil {
		return nil, repositories.SnapshotMetadata{}, err
	}

	s.log.Info("backtest complete",
		append(logger.LogWithRun(ctx),
			"symbol", symbol,
			"interval", interval,
			"trades", len(result.Trades),
			"total_return", result.Metrics.TotalReturn,
			"is_reliable", result.Metrics.IsReliable,
			"duration", time.Since(started).String())...)
	return result, snapMeta, nil
}

func (s *Service) invalidated(kind string, cv models.CacheValidation) {
	cause := "inconsistent"
	if cv.IsStale {
		cause = "stale"
	}
	s.metrics.CacheInvalidations.WithLabelValues(kind, cause).Inc()
	s.log.Info("cached snapshot invalid, recomputing", "kind", kind, "reason", cv.Reason)
}

// Candles returns the stored series with freshness information.
func (s *Service) Candles(ctx context.Context, symbol, interval string) (*CandlesResponse, error) {
	symbol, interval, err := s.Resolve(symbol, interval)
	if err != nil {
		return nil, err
	}
	candles, meta, err := s.loadCandles(ctx, symbol, interval)
	if err != nil {
		return nil, err
	}

	freshness := repositories.FreshnessAt(meta.AsOf, s.now(), s.cfg.StaleCandleHours)
	if freshness.HoursOld != nil {
		s.metrics.CandleAgeHours.WithLabelValues(symbol, interval).Set(*freshness.HoursOld)
	}
	warnings := []string{}
	if freshness.IsStale {
		warnings = append(warnings, freshness.Reason)
	}

	return &CandlesResponse{
		Candles: candles,
		Metadata: CandlesMetadata{
			CandleMetadata:        meta,
			Freshness:             freshness,
			LatestCandleTimestamp: candles[len(candles)-1].Timestamp,
			CandlesHash:           meta.SourceFileHash,
		},
		Warnings: warnings,
	}, nil
}

// RiskMetrics serves the cached risk snapshot, recomputing it from a fresh
// backtest when it is missing, stale or inconsistent.
func (s *Service) RiskMetrics(ctx context.Context, symbol, interval string) (*RiskResponse, error) {
	symbol, interval, err := s.Resolve(symbol, interval)
	if err != nil {
		return nil, err
	}
	candles, meta, err := s.loadCandles(ctx, symbol, interval)
	if err != nil {
		return nil, err
	}

	info := CacheInfo{}
	snap, cv, err := s.risk.Load(ctx, symbol, interval, meta.SourceFileHash, meta.AsOf)
	switch {
	case err == nil && cv.IsValid():
	case err == nil:
		s.invalidated("risk", cv)
		info.WasRecomputed = true
	case errors.Is(err, repositories.ErrNotFound):
		s.metrics.CacheInvalidations.WithLabelValues("risk", "missing").Inc()
	default:
		return nil, fmt.Errorf("load risk snapshot: %w", err)
	}

	var cache *models.CacheValidation
	if err == nil {
		cache = &cv
	}
	if err != nil || !cv.IsValid() {
		if _, _, err := s.runBacktest(ctx, symbol, interval, candles, meta); err != nil {
			return nil, err
		}
		if snap, cv, err = s.risk.Load(ctx, symbol, interval, meta.SourceFileHash, meta.AsOf); err != nil {
			return nil, fmt.Errorf("reload risk snapshot: %w", err)
		}
		cache = &cv
		info.Computed = true
	}

	resp := &RiskResponse{
		Metrics:         snap.Metrics,
		Validation:      snap.Validation,
		Status:          StatusOK,
		CacheInfo:       info,
		CacheValidation: cache,
	}
	if !snap.Validation.IsReliable {
		resp.Status = StatusDegraded
		reason := "Insufficient data"
		if snap.Validation.Reason != nil {
			reason = *snap.Validation.Reason
		}
		resp.Reason = &reason
	}
	return resp, nil
}

// Refresh ingests new candles and rebuilds every snapshot. Snapshot failures
// are collected, not fatal, unless all of them fail.
func (s *Service) Refresh(ctx context.Context, symbol, interval string) (*RefreshResponse, error) {
	symbol, interval, err := s.Resolve(symbol, interval)
	if err != nil {
		return nil, err
	}
	if logger.RunID(ctx) == "" {
		ctx = logger.WithRunID(ctx, logger.NewRunID())
	}

	result, err := s.ingester.Refresh(ctx, symbol, interval, s.cfg.MinDataWindowDays)
	if err != nil {
		return nil, &RefreshFailedError{Result: result}
	}

	var (
		mu        sync.Mutex
		snapshots Snapshots
		errs      = map[string]string{}
	)
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		errs[name] = err.Error()
		s.log.Error("snapshot refresh failed",
			append(logger.LogWithRun(ctx), "snapshot", name, "symbol", symbol, "interval", interval, "error", err)...)
	}

	// The backtest also writes the risk snapshot, so it runs before the
	// readers that gate on it.
	stage1, gctx := errgroup.WithContext(ctx)
	stage1.Go(func() error {
		bt, err := s.RunBacktest(gctx, symbol, interval)
		if err != nil {
			record("backtest", err)
			return nil
		}
		snapshots.Backtest = bt
		return nil
	})
	stage1.Go(func() error {
		c, err := s.Candles(gctx, symbol, interval)
		if err != nil {
			record("candles", err)
			return nil
		}
		snapshots.Candles = c
		return nil
	})
	_ = stage1.Wait()

	stage2, gctx := errgroup.WithContext(ctx)
	stage2.Go(func() error {
		rec, err := s.Recommendation(gctx, symbol, interval)
		if err != nil {
			record("recommendation", err)
			return nil
		}
		snapshots.Recommendation = rec
		return nil
	})
	stage2.Go(func() error {
		risk, err := s.RiskMetrics(gctx, symbol, interval)
		if err != nil {
			record("risk", err)
			return nil
		}
		snapshots.Risk = risk
		return nil
	})
	_ = stage2.Wait()

	if len(errs) == 4 {
		return nil, &SnapshotsFailedError{Errors: errs, Refresh: result}
	}

	summary := RefreshSummary{RefreshResult: result}
	if result.Metadata != nil {
		asOf := result.Metadata.AsOf
		summary.Timestamp = &asOf
		summary.LastUpdated = &asOf
		summary.CandlesHash = result.Metadata.SourceFileHash
	}

	resp := &RefreshResponse{Refresh: summary, Snapshots: snapshots}
	if len(errs) > 0 {
		resp.Errors = errs
	}
	return resp, nil
}

// RefreshSeries adapts Refresh to price.RefreshFunc for scheduled runs.
func (s *Service) RefreshSeries(ctx context.Context, symbol, interval string) error {
	_, err := s.Refresh(ctx, symbol, interval)
	return err
}

// Health reports whether the default series is present, fresh and backtested.
func (s *Service) Health(ctx context.Context) *HealthReport {
	symbol, interval := s.cfg.DefaultSymbol, s.cfg.DefaultInterval
	report := &HealthReport{
		Timestamp: s.now(),
		Symbol:    symbol,
		Interval:  interval,
	}

	candlesExist, err := s.candles.Exists(ctx, symbol, interval)
	if err != nil {
		s.log.Warn("health: candle check failed", "error", err)
	}
	backtestExists, err := s.backtests.Exists(ctx, symbol, interval)
	if err != nil {
		s.log.Warn("health: backtest check failed", "error", err)
	}

	if candlesExist {
		f := s.candles.GetFreshness(ctx, symbol, interval, s.now())
		report.Freshness = &f
		report.Checks.DataFresh = !f.IsStale
	}
	report.Checks.CandlesExist = candlesExist
	report.Checks.BacktestExists = backtestExists

	report.Status = StatusDegraded
	switch {
	case !candlesExist:
		report.Message = fmt.Sprintf("Missing candle data for %s %s. Run /refresh first.", symbol, interval)
	case !report.Checks.DataFresh:
		report.Message = fmt.Sprintf("Data is stale: %s", report.Freshness.Reason)
	case !backtestExists:
		report.Message = "Missing backtest data. Run /backtest/run first."
	default:
		report.Status = StatusOK
		report.Message = "All systems operational"
	}
	return report
}
