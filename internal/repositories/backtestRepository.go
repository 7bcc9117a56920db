package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"WarrenBot/internal/logger"
	"WarrenBot/internal/models"
	"WarrenBot/internal/operations/backtest"
)

// SnapshotMetadata ties a stored snapshot to the candle series it was
// computed from.
type SnapshotMetadata struct {
	Symbol           string     `json:"symbol"`
	Interval         string     `json:"interval"`
	SavedAt          time.Time  `json:"saved_at"`
	CandlesHash      string     `json:"candles_hash"`
	CandlesTimestamp *time.Time `json:"candles_timestamp"`
	BacktestHash     string     `json:"backtest_hash,omitempty"`
	RunID            string     `json:"run_id,omitempty"`
}

// BacktestSnapshot is a stored backtest result.
type BacktestSnapshot struct {
	backtest.BacktestResult
	Metadata SnapshotMetadata `json:"metadata"`
}

type BacktestRepository struct {
	store      BlobStore
	staleHours float64
	log        *slog.Logger
}

func NewBacktestRepository(store BlobStore, staleHours float64, log *slog.Logger) *BacktestRepository {
	if log == nil {
		log = slog.Default()
	}
	return &BacktestRepository{store: store, staleHours: staleHours, log: log}
}

// Save stores result for symbol/interval, replacing any previous snapshot.
func (r *BacktestRepository) Save(
	ctx context.Context,
	symbol, interval string,
	result *backtest.BacktestResult,
	candlesHash string,
	candlesAsOf time.Time,
) (SnapshotMetadata, error) {
	if result == nil {
		return SnapshotMetadata{}, errors.New("backtest result cannot be nil")
	}

	meta := newSnapshotMetadata(ctx, symbol, interval, candlesHash, candlesAsOf)
	meta.BacktestHash = backtestHash(candlesHash, candlesAsOf)

	snapshot := BacktestSnapshot{BacktestResult: *result, Metadata: meta}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return SnapshotMetadata{}, fmt.Errorf("encode backtest snapshot: %w", err)
	}
	if err := r.store.Put(ctx, SnapshotKey(symbol, interval), data); err != nil {
		return SnapshotMetadata{}, fmt.Errorf("save backtest snapshot: %w", err)
	}

	r.log.Info("backtest snapshot saved",
		append(logger.LogWithRun(ctx),
			"symbol", symbol,
			"interval", interval,
			"backtest_hash", meta.BacktestHash,
			"trades", len(result.Trades))...)
	return meta, nil
}

// Load returns the stored snapshot and whether it still matches the current
// candle series. A missing or corrupt snapshot is ErrNotFound.
func (r *BacktestRepository) Load(
	ctx context.Context,
	symbol, interval string,
	currentHash string,
	currentAsOf time.Time,
) (*BacktestSnapshot, models.CacheValidation, error) {
	var snapshot BacktestSnapshot
	if err := loadSnapshot(ctx, r.store, SnapshotKey(symbol, interval), &snapshot, r.log); err != nil {
		return nil, models.CacheValidation{}, err
	}

	validation := ValidateCache(
		snapshot.Metadata.CandlesHash,
		snapshot.Metadata.CandlesTimestamp,
		currentHash,
		currentAsOf,
		r.staleHours,
	)
	return &snapshot, validation, nil
}

func (r *BacktestRepository) Exists(ctx context.Context, symbol, interval string) (bool, error) {
	return r.store.Exists(ctx, SnapshotKey(symbol, interval))
}

func newSnapshotMetadata(ctx context.Context, symbol, interval, candlesHash string, candlesAsOf time.Time) SnapshotMetadata {
	meta := SnapshotMetadata{
		Symbol:      symbol,
		Interval:    interval,
		SavedAt:     time.Now().UTC(),
		CandlesHash: candlesHash,
		RunID:       logger.RunID(ctx),
	}
	if !candlesAsOf.IsZero() {
		asOf := candlesAsOf.UTC()
		meta.CandlesTimestamp = &asOf
	}
	return meta
}

// loadSnapshot decodes the blob at key into dst. Undecodable blobs are
// deleted so the next run can regenerate them.
func loadSnapshot(ctx context.Context, store BlobStore, key string, dst any, log *slog.Logger) error {
	data, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Warn("snapshot is corrupt, deleting", "key", key, "error", err)
		if delErr := store.Delete(ctx, key); delErr != nil {
			log.Error("failed to delete corrupt snapshot", "key", key, "error", delErr)
		}
		return fmt.Errorf("%s: %w: %w", key, ErrNotFound, ErrCorrupt)
	}
	return nil
}
