package models

import "time"

const (
	Interval1m  = "1m"
	Interval5m  = "5m"
	Interval15m = "15m"
	Interval30m = "30m"
	Interval1h  = "1h"
	Interval4h  = "4h"
	Interval12h = "12h"
	Interval1d  = "1d"
	Interval1w  = "1w"
	Interval1M  = "1M"
)

// intervalDays is the nominal length of each kline interval in days.
var intervalDays = map[string]float64{
	Interval1m:  1.0 / 1440,
	Interval5m:  5.0 / 1440,
	Interval15m: 15.0 / 1440,
	Interval30m: 30.0 / 1440,
	Interval1h:  1.0 / 24,
	Interval4h:  4.0 / 24,
	Interval12h: 12.0 / 24,
	Interval1d:  1,
	Interval1w:  7,
	Interval1M:  30,
}

// IntervalDays returns the interval length in days. Unknown intervals count as one day.
func IntervalDays(interval string) float64 {
	if d, ok := intervalDays[interval]; ok {
		return d
	}
	return 1
}

var intervalDurations = map[string]time.Duration{
	Interval1m:  time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval4h:  4 * time.Hour,
	Interval12h: 12 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
	Interval1M:  30 * 24 * time.Hour,
}

// IntervalDuration converts an interval to a time.Duration.
func IntervalDuration(interval string) time.Duration {
	if d, ok := intervalDurations[interval]; ok {
		return d
	}
	return 24 * time.Hour
}

// IsKnownInterval reports whether interval is one of the supported kline intervals.
func IsKnownInterval(interval string) bool {
	_, ok := intervalDays[interval]
	return ok
}
