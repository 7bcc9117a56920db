package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"WarrenBot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("not found")
	ErrCorrupt  = errors.New("corrupt snapshot")
)

// Rows per INSERT batch; keeps sqlite under its bound-variable limit.
const saveBatchSize = 500

// CandleMetadata summarizes a stored candle series.
type CandleMetadata struct {
	AsOf           time.Time `json:"as_of"`
	Rows           int       `json:"rows"`
	SourceFileHash string    `json:"source_file_hash"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
}

// WindowDays is the whole-day span between the first and last candle.
func (m CandleMetadata) WindowDays() int {
	return int(m.To.Sub(m.From).Hours() / 24)
}

// Freshness reports how old the newest stored candle is.
type Freshness struct {
	AsOf     *time.Time `json:"as_of"`
	IsStale  bool       `json:"is_stale"`
	HoursOld *float64   `json:"hours_old"`
	Reason   string     `json:"reason"`
}

type CandleRepository struct {
	db         *gorm.DB
	staleHours float64
	log        *slog.Logger
}

// NewCandleRepository creates a new instance of CandleRepository
func NewCandleRepository(db *gorm.DB, staleHours float64, log *slog.Logger) *CandleRepository {
	if log == nil {
		log = slog.Default()
	}
	return &CandleRepository{db: db, staleHours: staleHours, log: log}
}

// Save stores candles for symbol/interval. With merge the rows are upserted
// into the existing series, new values winning on equal timestamps; without
// merge the stored series is replaced. The returned metadata describes the
// whole stored series after the write.
func (r *CandleRepository) Save(ctx context.Context, symbol, interval string, candles []models.Candle, merge bool) (CandleMetadata, error) {
	if len(candles) == 0 {
		return CandleMetadata{}, errors.New("cannot save empty candles")
	}

	rows := normalize(symbol, interval, candles)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !merge {
			if err := tx.Where(seriesKey(symbol, interval)).
				Delete(&models.Candle{}).Error; err != nil {
				return fmt.Errorf("clear candles: %w", err)
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}, {Name: "interval"}, {Name: "timestamp"}},
			DoUpdates: clause.AssignmentColumns([]string{
				models.ColumnOpen, models.ColumnHigh, models.ColumnLow, models.ColumnClose, models.ColumnVolume,
			}),
		}).CreateInBatches(&rows, saveBatchSize).Error
	})
	if err != nil {
		return CandleMetadata{}, fmt.Errorf("save candles %s %s: %w", symbol, interval, err)
	}

	_, meta, err := r.Load(ctx, symbol, interval)
	if err != nil {
		return CandleMetadata{}, err
	}
	r.log.Info("candles saved",
		"symbol", symbol,
		"interval", interval,
		"written", len(rows),
		"rows", meta.Rows,
		"as_of", meta.AsOf)
	return meta, nil
}

// Load returns the stored series sorted ascending by timestamp.
func (r *CandleRepository) Load(ctx context.Context, symbol, interval string) ([]models.Candle, CandleMetadata, error) {
	var candles []models.Candle
	err := r.db.WithContext(ctx).
		Where(seriesKey(symbol, interval)).
		Order("timestamp ASC").
		Find(&candles).Error
	if err != nil {
		return nil, CandleMetadata{}, fmt.Errorf("load candles %s %s: %w", symbol, interval, err)
	}
	if len(candles) == 0 {
		return nil, CandleMetadata{}, fmt.Errorf("candles %s %s: %w", symbol, interval, ErrNotFound)
	}
	for i := range candles {
		candles[i].Timestamp = candles[i].Timestamp.UTC()
	}
	return candles, BuildMetadata(candles), nil
}

// Exists reports whether any candle is stored for symbol/interval.
func (r *CandleRepository) Exists(ctx context.Context, symbol, interval string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Candle{}).
		Where(seriesKey(symbol, interval)).
		Count(&count).Error
	return count > 0, err
}

// Latest returns the newest stored candle, or ErrNotFound.
func (r *CandleRepository) Latest(ctx context.Context, symbol, interval string) (*models.Candle, error) {
	var candle models.Candle
	err := r.db.WithContext(ctx).
		Where(seriesKey(symbol, interval)).
		Order("timestamp DESC").
		First(&candle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("candles %s %s: %w", symbol, interval, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	candle.Timestamp = candle.Timestamp.UTC()
	return &candle, nil
}

// GetFreshness compares the newest candle against now.
func (r *CandleRepository) GetFreshness(ctx context.Context, symbol, interval string, now time.Time) Freshness {
	latest, err := r.Latest(ctx, symbol, interval)
	if errors.Is(err, ErrNotFound) {
		return Freshness{IsStale: true, Reason: "No data available"}
	}
	if err != nil {
		return Freshness{IsStale: true, Reason: fmt.Sprintf("Error checking freshness: %v", err)}
	}
	return FreshnessAt(latest.Timestamp, now, r.staleHours)
}

// FreshnessAt classifies a series whose newest candle is asOf.
func FreshnessAt(asOf, now time.Time, staleHours float64) Freshness {
	hours := now.Sub(asOf).Hours()
	rounded := round2(hours)
	f := Freshness{
		AsOf:     &asOf,
		IsStale:  hours > staleHours,
		HoursOld: &rounded,
		Reason:   "Data is fresh",
	}
	if f.IsStale {
		f.Reason = fmt.Sprintf("Data is %.1f hours old", hours)
	}
	return f
}

// BuildMetadata describes an ascending, deduplicated series.
func BuildMetadata(candles []models.Candle) CandleMetadata {
	if len(candles) == 0 {
		return CandleMetadata{}
	}
	first, last := candles[0].Timestamp.UTC(), candles[len(candles)-1].Timestamp.UTC()
	return CandleMetadata{
		AsOf:           last,
		Rows:           len(candles),
		SourceFileHash: CandlesHash(candles),
		From:           first,
		To:             last,
	}
}

// seriesKey matches one symbol/interval series. Map conditions get quoted
// column names, which postgres needs for "interval".
func seriesKey(symbol, interval string) map[string]any {
	return map[string]any{"symbol": symbol, "interval": interval}
}

// normalize stamps the key columns, sorts ascending and keeps the last
// occurrence of each timestamp.
func normalize(symbol, interval string, candles []models.Candle) []models.Candle {
	byTime := make(map[int64]models.Candle, len(candles))
	for _, c := range candles {
		c.ID = 0
		c.Symbol = symbol
		c.Interval = interval
		c.Timestamp = c.Timestamp.UTC()
		byTime[c.Timestamp.UnixNano()] = c
	}

	rows := make([]models.Candle, 0, len(byTime))
	for _, c := range byTime {
		rows = append(rows, c)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	return rows
}
