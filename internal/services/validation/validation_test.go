package validation

import (
	"math"
	"testing"
	"time"

	"WarrenBot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func series(days ...int) []models.Candle {
	out := make([]models.Candle, len(days))
	for i, d := range days {
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(d) * 24 * time.Hour),
			Open:      100, High: 101, Low: 99, Close: 100, Volume: 1,
		}
	}
	return out
}

func daily(n int) []models.Candle {
	days := make([]int, n)
	for i := range days {
		days[i] = i
	}
	return series(days...)
}

func TestValidateDataWindow(t *testing.T) {
	tests := []struct {
		name    string
		candles []models.Candle
		minDays int
		ok      bool
		msg     string
		window  int
	}{
		{"empty", nil, 30, false, "No candles available", 0},
		{"too short", daily(10), 30, false, "Insufficient data window: 9 days (minimum: 30 days)", 9},
		{"exact", daily(31), 30, true, "", 30},
		{"unsorted", series(40, 0, 12), 30, true, "", 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg, meta := ValidateDataWindow(tt.candles, tt.minDays)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.msg, msg)
			assert.Equal(t, tt.window, meta.WindowDays)
			assert.Equal(t, tt.minDays, meta.MinRequiredDays)
			assert.Equal(t, len(tt.candles), meta.Rows)
		})
	}
}

func TestValidateGaps(t *testing.T) {
	ok, gaps := ValidateGaps(series(0, 1, 2, 12, 13, 14, 30), "1d", 7)
	assert.False(t, ok)
	require.Len(t, gaps, 2)
	assert.Equal(t, 10.0, gaps[0].GapDays)
	assert.Equal(t, 1.0, gaps[0].ExpectedIntervalDays)
	assert.True(t, gaps[0].From.Equal(start.Add(2*24*time.Hour)))
	assert.Equal(t, 16.0, gaps[1].GapDays)

	ok, gaps = ValidateGaps(series(0, 7, 14), "1w", 7)
	assert.True(t, ok, "a step equal to the limit is not a gap")
	assert.Empty(t, gaps)

	ok, gaps = ValidateGaps(series(0), "1d", 7)
	assert.True(t, ok)
	assert.Empty(t, gaps)
}

func TestValidateDataQuality(t *testing.T) {
	t.Run("insufficient", func(t *testing.T) {
		r := ValidateDataQuality(daily(5), "1d", 30, 7)
		assert.False(t, r.IsValid)
		assert.Equal(t, StatusInsufficientData, r.Status)
		assert.Equal(t, []string{"Insufficient data window: 4 days (minimum: 30 days)"}, r.Errors)
	})

	t.Run("ok", func(t *testing.T) {
		r := ValidateDataQuality(daily(40), "1d", 30, 7)
		assert.True(t, r.IsValid)
		assert.Equal(t, StatusOK, r.Status)
		assert.Empty(t, r.Warnings)
		assert.Equal(t, 39, r.Metadata.WindowDays)
	})

	t.Run("warnings", func(t *testing.T) {
		candles := series(0, 1, 1, 2, 20, 40)
		candles[3].Close = math.NaN()
		r := ValidateDataQuality(candles, "1d", 30, 7)
		assert.True(t, r.IsValid)
		assert.Equal(t, StatusWarnings, r.Status)
		assert.Equal(t, []string{
			"Found 2 gaps in data",
			"Found 2 duplicate timestamps",
			"Found null values: close=1",
		}, r.Warnings)
		assert.Equal(t, 2, r.Metadata.GapsFound)
		assert.Len(t, r.Metadata.Gaps, 2)
	})
}
