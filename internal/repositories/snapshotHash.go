package repositories

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"WarrenBot/internal/models"

	"github.com/shopspring/decimal"
)

// CandlesHash is the SHA-256 hex digest of the series content. Input order
// does not matter.
func CandlesHash(candles []models.Candle) string {
	rows := make([]models.Candle, len(candles))
	copy(rows, candles)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	h := sha256.New()
	for _, c := range rows {
		fmt.Fprintf(h, "%s,%.8f,%.8f,%.8f,%.8f,%.8f\n",
			c.Timestamp.UTC().Format(time.RFC3339Nano),
			c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// backtestHash identifies a backtest by the candle series it ran on.
func backtestHash(candlesHash string, candlesAsOf time.Time) string {
	sum := sha256.Sum256([]byte(candlesHash + "_" + candlesAsOf.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:16]
}

// ValidateCache decides whether a snapshot computed from the series
// (cachedHash, cachedAsOf) may still be served for the current series.
// Staleness is checked before consistency.
func ValidateCache(cachedHash string, cachedAsOf *time.Time, currentHash string, currentAsOf time.Time, staleHours float64) models.CacheValidation {
	v := models.CacheValidation{
		CachedHash:  cachedHash,
		CurrentHash: currentHash,
	}

	if cachedAsOf != nil {
		age := currentAsOf.Sub(*cachedAsOf).Hours()
		if age > staleHours {
			v.IsStale = true
			v.Reason = fmt.Sprintf("Data is stale: %.1f hours old (max: %sh)", age, formatHours(staleHours))
			return v
		}
	}

	switch {
	case cachedHash == "":
		v.IsInconsistent = true
		v.Reason = "Cached snapshot has no candles hash"
	case cachedHash != currentHash:
		v.IsInconsistent = true
		v.Reason = fmt.Sprintf("Hash mismatch: cached=%s... vs current=%s...", prefix(cachedHash, 8), prefix(currentHash, 8))
	default:
		v.Reason = "Cache is valid"
	}
	return v
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func formatHours(h float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", h), "0"), ".")
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
