package price

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"WarrenBot/internal/models"
	"WarrenBot/internal/operations/binance"
)

// CandleSource serves one page of candles for [start, end].
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]models.Candle, error)
}

type PriceFetcher struct {
	source    CandleSource
	pageSize  int
	pageDelay time.Duration
	log       *slog.Logger
}

func NewPriceFetcher(source CandleSource, log *slog.Logger) *PriceFetcher {
	if log == nil {
		log = slog.Default()
	}
	return &PriceFetcher{
		source:    source,
		pageSize:  binance.MaxKlinesLimit,
		pageDelay: 100 * time.Millisecond,
		log:       log,
	}
}

// FetchPaginated downloads every candle in [start, end] walking backwards
// from end one page at a time. A zero start walks until the exchange runs
// out of history; a zero end means now. The result is deduplicated and
// sorted ascending.
func (f *PriceFetcher) FetchPaginated(ctx context.Context, symbol, interval string, start, end time.Time) ([]models.Candle, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	span := models.IntervalDuration(interval) * time.Duration(f.pageSize)

	var all []models.Candle
	currentEnd := end
	for {
		// (currentEnd-span, currentEnd] holds at most one page of opens
		chunkStart := currentEnd.Add(-span).Add(time.Millisecond)
		if !start.IsZero() && chunkStart.Before(start) {
			chunkStart = start
		}

		page, err := f.source.GetCandles(ctx, symbol, interval, chunkStart, currentEnd, f.pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		f.log.Debug("fetched candle page",
			"symbol", symbol,
			"interval", interval,
			"rows", len(page),
			"from", chunkStart.Format(time.RFC3339),
			"to", currentEnd.Format(time.RFC3339))

		// A short page means the exchange has nothing older.
		if len(page) < f.pageSize {
			break
		}

		currentEnd = earliest(page).Add(-time.Millisecond)
		if !start.IsZero() && !currentEnd.After(start) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.pageDelay):
		}
	}

	return dedupSorted(all), nil
}

func earliest(candles []models.Candle) time.Time {
	min := candles[0].Timestamp
	for _, c := range candles[1:] {
		if c.Timestamp.Before(min) {
			min = c.Timestamp
		}
	}
	return min
}

// dedupSorted keeps the first occurrence of each timestamp.
func dedupSorted(candles []models.Candle) []models.Candle {
	seen := make(map[int64]struct{}, len(candles))
	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		key := c.Timestamp.UnixNano()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
