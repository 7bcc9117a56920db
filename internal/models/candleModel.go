package models

import (
	"time"
)

// Candle is one OHLCV bar for a symbol/interval pair.
type Candle struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Symbol    string    `gorm:"uniqueIndex:idx_candle_key;not null" json:"-"`
	Interval  string    `gorm:"uniqueIndex:idx_candle_key;not null" json:"-"`
	Timestamp time.Time `gorm:"uniqueIndex:idx_candle_key;not null" json:"timestamp"`
	Open      float64   `gorm:"type:decimal(20,8)" json:"open"`
	High      float64   `gorm:"type:decimal(20,8)" json:"high"`
	Low       float64   `gorm:"type:decimal(20,8)" json:"low"`
	Close     float64   `gorm:"type:decimal(20,8)" json:"close"`
	Volume    float64   `gorm:"type:decimal(20,8)" json:"volume"`
}

// TableName sets the table name for Candle model
func (Candle) TableName() string {
	return "candles"
}

// Column names every candle series must carry.
const (
	ColumnTimestamp = "timestamp"
	ColumnOpen      = "open"
	ColumnHigh      = "high"
	ColumnLow       = "low"
	ColumnClose     = "close"
	ColumnVolume    = "volume"
)

var RequiredColumns = []string{ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume}

// Value returns the named OHLCV column of the candle.
func (c Candle) Value(column string) (float64, bool) {
	switch column {
	case ColumnOpen:
		return c.Open, true
	case ColumnHigh:
		return c.High, true
	case ColumnLow:
		return c.Low, true
	case ColumnClose:
		return c.Close, true
	case ColumnVolume:
		return c.Volume, true
	}
	return 0, false
}
