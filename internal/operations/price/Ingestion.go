package price

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"WarrenBot/internal/logger"
	"WarrenBot/internal/metrics"
	"WarrenBot/internal/models"
	"WarrenBot/internal/repositories"
	"WarrenBot/internal/services/validation"
)

// Extra history fetched beyond the required window.
const windowMarginDays = 30

var ErrNoCandles = errors.New("no candles received from Binance")

// CandleStore is the persistence the worker merges into.
type CandleStore interface {
	Save(ctx context.Context, symbol, interval string, candles []models.Candle, merge bool) (repositories.CandleMetadata, error)
	Load(ctx context.Context, symbol, interval string) ([]models.Candle, repositories.CandleMetadata, error)
}

// RefreshResult reports one ingestion run.
type RefreshResult struct {
	Success         bool                         `json:"success"`
	Symbol          string                       `json:"symbol"`
	Interval        string                       `json:"interval"`
	RowsFetched     int                          `json:"rows_fetched"`
	TotalAfterMerge int                          `json:"total_after_merge"`
	Metadata        *repositories.CandleMetadata `json:"metadata,omitempty"`
	Validation      validation.QualityReport     `json:"validation"`
	Warnings        []string                     `json:"warnings"`
	Error           string                       `json:"error,omitempty"`
}

type Worker struct {
	fetcher    *PriceFetcher
	store      CandleStore
	maxGapDays int
	metrics    *metrics.Metrics
	log        *slog.Logger
	now        func() time.Time
}

func NewWorker(fetcher *PriceFetcher, store CandleStore, maxGapDays int, m *metrics.Metrics, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		fetcher:    fetcher,
		store:      store,
		maxGapDays: maxGapDays,
		metrics:    m,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Refresh brings the stored series up to date. It backfills history when the
// stored window is shorter than minWindowDays, fetches candles from one
// interval before the newest stored candle, merges them and validates the
// merged series. The returned result is always populated; err is non-nil
// exactly when Success is false.
func (w *Worker) Refresh(ctx context.Context, symbol, interval string, minWindowDays int) (*RefreshResult, error) {
	result, err := w.refresh(ctx, symbol, interval, minWindowDays)
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		result.Validation = validation.QualityReport{
			Status:   validation.StatusError,
			Errors:   []string{err.Error()},
			Warnings: []string{},
		}
		if w.metrics != nil {
			w.metrics.IngestionErrors.WithLabelValues(symbol, interval).Inc()
		}
		w.log.Error("refresh failed",
			append(logger.LogWithRun(ctx), "symbol", symbol, "interval", interval, "error", err)...)
		return result, err
	}
	if w.metrics != nil {
		w.metrics.CandlesFetched.WithLabelValues(symbol, interval).Add(float64(result.RowsFetched))
	}
	w.log.Info("refresh complete",
		append(logger.LogWithRun(ctx),
			"symbol", symbol,
			"interval", interval,
			"rows_fetched", result.RowsFetched,
			"total", result.TotalAfterMerge,
			"status", result.Validation.Status)...)
	return result, nil
}

func (w *Worker) refresh(ctx context.Context, symbol, interval string, minWindowDays int) (*RefreshResult, error) {
	result := &RefreshResult{Symbol: symbol, Interval: interval, Warnings: []string{}}

	end := w.now()
	start := end.AddDate(0, 0, -(minWindowDays + windowMarginDays))

	existing, existingMeta, err := w.store.Load(ctx, symbol, interval)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return result, fmt.Errorf("load existing candles: %w", err)
	}

	fetchStart := start
	if len(existing) > 0 {
		if existingMeta.WindowDays() < minWindowDays && start.Before(existingMeta.From) {
			history, err := w.fetcher.FetchPaginated(ctx, symbol, interval, start, existingMeta.From)
			if err != nil {
				return result, fmt.Errorf("fetch history: %w", err)
			}
			if len(history) > 0 {
				if _, err := w.store.Save(ctx, symbol, interval, history, true); err != nil {
					return result, err
				}
				result.RowsFetched += len(history)
			}
		}
		fetchStart = existingMeta.To.Add(-models.IntervalDuration(interval))
	}

	candles, err := w.fetcher.FetchPaginated(ctx, symbol, interval, fetchStart, end)
	if err != nil {
		return result, err
	}
	if len(candles) == 0 {
		return result, ErrNoCandles
	}
	result.RowsFetched += len(candles)

	meta, err := w.store.Save(ctx, symbol, interval, candles, true)
	if err != nil {
		return result, err
	}
	merged, _, err := w.store.Load(ctx, symbol, interval)
	if err != nil {
		return result, fmt.Errorf("reload merged candles: %w", err)
	}

	result.Success = true
	result.Metadata = &meta
	result.TotalAfterMerge = len(merged)
	result.Validation = validation.ValidateDataQuality(merged, interval, minWindowDays, w.maxGapDays)
	result.Warnings = append(result.Warnings, result.Validation.Warnings...)
	if days := meta.WindowDays(); days < minWindowDays {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Window is %d days (minimum: %d days)", days, minWindowDays))
	}
	return result, nil
}
