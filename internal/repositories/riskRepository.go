package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"WarrenBot/internal/models"
	"WarrenBot/internal/operations/backtest"
)

// RiskSnapshot is the stored risk verdict for one series.
type RiskSnapshot struct {
	Symbol     string                 `json:"symbol"`
	Interval   string                 `json:"interval"`
	Metrics    backtest.MetricsReport `json:"metrics"`
	Validation models.RiskValidation  `json:"validation"`
	Metadata   SnapshotMetadata       `json:"metadata"`
	SavedAt    time.Time              `json:"saved_at"`
}

// RiskRepositoryConfig carries the thresholds written into each validation.
type RiskRepositoryConfig struct {
	MinTradesForReliability int
	MinWindowDays           int
	MinDataWindowDays       int
	StaleCandleHours        float64
}

type RiskRepository struct {
	store BlobStore
	cfg   RiskRepositoryConfig
	log   *slog.Logger
}

func NewRiskRepository(store BlobStore, cfg RiskRepositoryConfig, log *slog.Logger) *RiskRepository {
	if log == nil {
		log = slog.Default()
	}
	return &RiskRepository{store: store, cfg: cfg, log: log}
}

// Save stores metrics with their data-sufficiency validation. The snapshot is
// reliable only when the metrics are and the window covers MinDataWindowDays.
func (r *RiskRepository) Save(
	ctx context.Context,
	symbol, interval string,
	metrics backtest.MetricsReport,
	tradeCount, windowDays int,
	candlesHash string,
	candlesAsOf time.Time,
) (*RiskSnapshot, error) {
	snapshot := &RiskSnapshot{
		Symbol:     symbol,
		Interval:   interval,
		Metrics:    metrics,
		Validation: r.validate(metrics, tradeCount, windowDays),
		Metadata:   newSnapshotMetadata(ctx, symbol, interval, candlesHash, candlesAsOf),
	}
	snapshot.SavedAt = snapshot.Metadata.SavedAt

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode risk snapshot: %w", err)
	}
	if err := r.store.Put(ctx, SnapshotKey(symbol, interval), data); err != nil {
		return nil, fmt.Errorf("save risk snapshot: %w", err)
	}

	r.log.Info("risk snapshot saved",
		"symbol", symbol,
		"interval", interval,
		"trade_count", tradeCount,
		"window_days", windowDays,
		"is_reliable", snapshot.Validation.IsReliable)
	return snapshot, nil
}

// Load mirrors BacktestRepository.Load.
func (r *RiskRepository) Load(
	ctx context.Context,
	symbol, interval string,
	currentHash string,
	currentAsOf time.Time,
) (*RiskSnapshot, models.CacheValidation, error) {
	var snapshot RiskSnapshot
	if err := loadSnapshot(ctx, r.store, SnapshotKey(symbol, interval), &snapshot, r.log); err != nil {
		return nil, models.CacheValidation{}, err
	}

	validation := ValidateCache(
		snapshot.Metadata.CandlesHash,
		snapshot.Metadata.CandlesTimestamp,
		currentHash,
		currentAsOf,
		r.cfg.StaleCandleHours,
	)
	return &snapshot, validation, nil
}

func (r *RiskRepository) Exists(ctx context.Context, symbol, interval string) (bool, error) {
	return r.store.Exists(ctx, SnapshotKey(symbol, interval))
}

func (r *RiskRepository) validate(metrics backtest.MetricsReport, tradeCount, windowDays int) models.RiskValidation {
	v := models.RiskValidation{
		TradeCount:        tradeCount,
		WindowDays:        windowDays,
		MinTradesRequired: r.cfg.MinTradesForReliability,
		MinWindowDays:     r.cfg.MinWindowDays,
	}

	var reasons []string
	if !metrics.IsReliable {
		reasons = append(reasons, metrics.Reasons...)
		if len(metrics.Reasons) == 0 && metrics.Reason != nil {
			reasons = append(reasons, *metrics.Reason)
		}
	}
	if windowDays < r.cfg.MinDataWindowDays {
		reasons = append(reasons, fmt.Sprintf("Insufficient data window: %d days < %d minimum required",
			windowDays, r.cfg.MinDataWindowDays))
	}

	v.IsReliable = metrics.IsReliable && windowDays >= r.cfg.MinDataWindowDays
	if !v.IsReliable {
		reason := "Insufficient data"
		if len(reasons) > 0 {
			reason = strings.Join(reasons, "; ")
		}
		v.Reason = &reason
	}
	return v
}
