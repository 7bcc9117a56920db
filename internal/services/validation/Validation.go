package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"WarrenBot/internal/models"
)

type Status string

const (
	StatusOK               Status = "OK"
	StatusWarnings         Status = "WARNINGS"
	StatusInsufficientData Status = "INSUFFICIENT_DATA"
	StatusError            Status = "ERROR"
)

// WindowMetadata describes the time span a series covers.
type WindowMetadata struct {
	FromDate        *time.Time `json:"from_date"`
	ToDate          *time.Time `json:"to_date"`
	WindowDays      int        `json:"window_days"`
	Rows            int        `json:"rows"`
	MinRequiredDays int        `json:"min_required_days"`
}

// Gap is a step between consecutive candles longer than allowed.
type Gap struct {
	From                 time.Time `json:"from"`
	To                   time.Time `json:"to"`
	GapDays              float64   `json:"gap_days"`
	ExpectedIntervalDays float64   `json:"expected_interval_days"`
}

// QualityMetadata is the union of window and gap metadata.
type QualityMetadata struct {
	WindowMetadata
	GapsFound  int   `json:"gaps_found"`
	MaxGapDays int   `json:"max_gap_days"`
	Gaps       []Gap `json:"gaps,omitempty"`
}

// QualityReport is the full data-quality verdict for a series.
type QualityReport struct {
	IsValid  bool            `json:"is_valid"`
	Status   Status          `json:"status"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Metadata QualityMetadata `json:"metadata"`
}

// ValidateDataWindow checks that the series spans at least minDays whole days.
func ValidateDataWindow(candles []models.Candle, minDays int) (bool, string, WindowMetadata) {
	meta := WindowMetadata{MinRequiredDays: minDays}
	if len(candles) == 0 {
		return false, "No candles available", meta
	}

	earliest, latest := candles[0].Timestamp, candles[0].Timestamp
	for _, c := range candles[1:] {
		if c.Timestamp.Before(earliest) {
			earliest = c.Timestamp
		}
		if c.Timestamp.After(latest) {
			latest = c.Timestamp
		}
	}
	meta.FromDate = &earliest
	meta.ToDate = &latest
	meta.WindowDays = int(latest.Sub(earliest).Hours() / 24)
	meta.Rows = len(candles)

	if meta.WindowDays < minDays {
		return false, fmt.Sprintf("Insufficient data window: %d days (minimum: %d days)", meta.WindowDays, minDays), meta
	}
	return true, "", meta
}

// ValidateGaps reports every step between consecutive candles longer than
// maxGapDays.
func ValidateGaps(candles []models.Candle, interval string, maxGapDays int) (bool, []Gap) {
	gaps := []Gap{}
	if len(candles) < 2 {
		return true, gaps
	}

	sorted := make([]models.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	expected := models.IntervalDays(interval)
	for i := 1; i < len(sorted); i++ {
		diff := sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Hours() / 24
		if diff > float64(maxGapDays) {
			gaps = append(gaps, Gap{
				From:                 sorted[i-1].Timestamp,
				To:                   sorted[i].Timestamp,
				GapDays:              math.Round(diff*100) / 100,
				ExpectedIntervalDays: expected,
			})
		}
	}
	return len(gaps) == 0, gaps
}

// ValidateDataQuality runs the window check and, when it passes, collects
// gap, duplicate and non-finite value warnings.
func ValidateDataQuality(candles []models.Candle, interval string, minWindowDays, maxGapDays int) QualityReport {
	report := QualityReport{
		Status:   StatusInsufficientData,
		Errors:   []string{},
		Warnings: []string{},
	}

	ok, msg, window := ValidateDataWindow(candles, minWindowDays)
	report.Metadata.WindowMetadata = window
	if !ok {
		report.Errors = append(report.Errors, msg)
		return report
	}

	_, gaps := ValidateGaps(candles, interval, maxGapDays)
	report.Metadata.GapsFound = len(gaps)
	report.Metadata.MaxGapDays = maxGapDays
	if len(gaps) > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("Found %d gaps in data", len(gaps)))
		report.Metadata.Gaps = gaps
	}

	if dups := countDuplicates(candles); dups > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("Found %d duplicate timestamps", dups))
	}

	if bad := nonFiniteCounts(candles); bad != "" {
		report.Warnings = append(report.Warnings, "Found null values: "+bad)
	}

	report.IsValid = true
	report.Status = StatusOK
	if len(report.Warnings) > 0 {
		report.Status = StatusWarnings
	}
	return report
}

// countDuplicates counts every row whose timestamp appears more than once.
func countDuplicates(candles []models.Candle) int {
	seen := make(map[int64]int, len(candles))
	for _, c := range candles {
		seen[c.Timestamp.UnixNano()]++
	}
	total := 0
	for _, n := range seen {
		if n > 1 {
			total += n
		}
	}
	return total
}

func nonFiniteCounts(candles []models.Candle) string {
	var parts []string
	for _, col := range models.RequiredColumns {
		n := 0
		for _, c := range candles {
			v, _ := c.Value(col)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				n++
			}
		}
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", col, n))
		}
	}
	return strings.Join(parts, ", ")
}
