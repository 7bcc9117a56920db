package indicators

import (
	"errors"
	"fmt"
	"math"
	"time"

	"WarrenBot/internal/models"
)

// Standard lookbacks used by the signal strategy.
const (
	EMAFastPeriod    = 12
	EMASlowPeriod    = 26
	SMAShortPeriod   = 20
	SMALongPeriod    = 50
	MACDSignalPeriod = 9
	RSIPeriod        = 14
	BBandsPeriod     = 20
	BBandsStdDev     = 2.0
	ATRPeriod        = 14
	MomentumPeriod   = 10
)

var ErrInsufficientData = errors.New("insufficient data")

// Frame is a candle series with every indicator column aligned to it.
// Undefined leading values are NaN.
type Frame struct {
	Candles []models.Candle

	EMA12         []float64
	EMA26         []float64
	SMA20         []float64
	SMA50         []float64
	MACD          []float64
	MACDSignal    []float64
	MACDHistogram []float64
	RSI           []float64
	BBUpper       []float64
	BBMiddle      []float64
	BBLower       []float64
	ATR           []float64
	Momentum      []float64
}

// Row is a single bar of a Frame.
type Row struct {
	Timestamp     time.Time
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        float64
	EMA12         float64
	EMA26         float64
	SMA20         float64
	SMA50         float64
	MACD          float64
	MACDSignal    float64
	MACDHistogram float64
	RSI           float64
	BBUpper       float64
	BBMiddle      float64
	BBLower       float64
	ATR           float64
	Momentum      float64
}

func (f *Frame) Len() int {
	return len(f.Candles)
}

func (f *Frame) At(i int) Row {
	c := f.Candles[i]
	return Row{
		Timestamp:     c.Timestamp,
		Open:          c.Open,
		High:          c.High,
		Low:           c.Low,
		Close:         c.Close,
		Volume:        c.Volume,
		EMA12:         f.EMA12[i],
		EMA26:         f.EMA26[i],
		SMA20:         f.SMA20[i],
		SMA50:         f.SMA50[i],
		MACD:          f.MACD[i],
		MACDSignal:    f.MACDSignal[i],
		MACDHistogram: f.MACDHistogram[i],
		RSI:           f.RSI[i],
		BBUpper:       f.BBUpper[i],
		BBMiddle:      f.BBMiddle[i],
		BBLower:       f.BBLower[i],
		ATR:           f.ATR[i],
		Momentum:      f.Momentum[i],
	}
}

// Last returns the most recent bar.
func (f *Frame) Last() Row {
	return f.At(f.Len() - 1)
}

// NaNColumns lists which of the named columns are undefined on the row.
func (r Row) NaNColumns(columns ...string) []string {
	values := map[string]float64{
		"ema_12": r.EMA12,
		"ema_26": r.EMA26,
		"sma_20": r.SMA20,
		"sma_50": r.SMA50,
		"macd":   r.MACD,
		"rsi":    r.RSI,
		"atr":    r.ATR,
	}
	var out []string
	for _, col := range columns {
		v, ok := values[col]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			out = append(out, col)
		}
	}
	return out
}

// Calculator builds a Frame from candles. It holds no per-call state and is
// safe for concurrent use.
type Calculator struct {
	ema      *EMAService
	sma      *SMAService
	rsi      *RSIService
	macd     *MACDService
	bbands   *BBandsService
	atr      *ATRService
	momentum *MomentumService
}

func NewCalculator() *Calculator {
	return &Calculator{
		ema:      NewEMAService(),
		sma:      NewSMAService(),
		rsi:      NewRSIService(),
		macd:     NewMACDService(),
		bbands:   NewBBandsService(),
		atr:      NewATRService(),
		momentum: NewMomentumService(),
	}
}

// CalculateAll computes every indicator column over candles. The input slice
// is copied, never modified.
func (c *Calculator) CalculateAll(candles []models.Candle) (*Frame, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("calculate indicators: %w: no candles", ErrInsufficientData)
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, candle := range candles {
		closes[i] = candle.Close
		highs[i] = candle.High
		lows[i] = candle.Low
	}

	macd := c.macd.Calculate(closes, EMAFastPeriod, EMASlowPeriod, MACDSignalPeriod)
	bands := c.bbands.Calculate(closes, BBandsPeriod, BBandsStdDev)
	if macd == nil || bands == nil {
		return nil, fmt.Errorf("calculate indicators: invalid series of %d candles", n)
	}

	frame := &Frame{
		Candles:       append([]models.Candle(nil), candles...),
		EMA12:         c.ema.Calculate(closes, EMAFastPeriod),
		EMA26:         c.ema.Calculate(closes, EMASlowPeriod),
		SMA20:         c.sma.Calculate(closes, SMAShortPeriod),
		SMA50:         c.sma.Calculate(closes, SMALongPeriod),
		MACD:          macd.MACD,
		MACDSignal:    macd.Signal,
		MACDHistogram: macd.Histogram,
		RSI:           c.rsi.Calculate(closes, RSIPeriod),
		BBUpper:       bands.Upper,
		BBMiddle:      bands.Middle,
		BBLower:       bands.Lower,
		ATR:           c.atr.Calculate(highs, lows, closes, ATRPeriod),
		Momentum:      c.momentum.Calculate(closes, MomentumPeriod),
	}

	for name, col := range frame.columns() {
		if len(col) != n {
			return nil, fmt.Errorf("calculate indicators: column %s has %d rows, want %d", name, len(col), n)
		}
	}
	return frame, nil
}

func (f *Frame) columns() map[string][]float64 {
	return map[string][]float64{
		"ema_12":         f.EMA12,
		"ema_26":         f.EMA26,
		"sma_20":         f.SMA20,
		"sma_50":         f.SMA50,
		"macd":           f.MACD,
		"macd_signal":    f.MACDSignal,
		"macd_histogram": f.MACDHistogram,
		"rsi":            f.RSI,
		"bb_upper":       f.BBUpper,
		"bb_middle":      f.BBMiddle,
		"bb_lower":       f.BBLower,
		"atr":            f.ATR,
		"momentum":       f.Momentum,
	}
}
