package strategy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"WarrenBot/internal/models"
	"WarrenBot/internal/services/indicators"
)

const MinCandlesRequired = 50

var (
	ErrInsufficientCandles = errors.New("insufficient candles")
	ErrUndefinedIndicators = errors.New("indicators undefined on latest bar")
)

// MissingColumnsError lists OHLCV columns with no usable value in the series.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "Missing columns: " + strings.Join(e.Columns, ", ")
}

// IndicatorError wraps a failure of the indicator pipeline.
type IndicatorError struct {
	Err error
}

func (e *IndicatorError) Error() string {
	return "Error calculating indicators: " + e.Err.Error()
}

func (e *IndicatorError) Unwrap() error {
	return e.Err
}

// Indicators that must be defined on the decision bar.
var criticalIndicators = []string{"rsi", "macd", "ema_12", "ema_26", "sma_20", "atr"}

// StrategyEngine scores trend and momentum alignment on the latest bar.
// It keeps no state between calls.
type StrategyEngine struct {
	calculator *indicators.Calculator
	minCandles int

	weights scoreWeights
}

type scoreWeights struct {
	trend    float64
	macd     float64
	rsi      float64
	price    float64
	momentum float64
}

func NewStrategyEngine() *StrategyEngine {
	return &StrategyEngine{
		calculator: indicators.NewCalculator(),
		minCandles: MinCandlesRequired,
		weights: scoreWeights{
			trend:    0.25,
			macd:     0.25,
			rsi:      0.20,
			price:    0.15,
			momentum: 0.15,
		},
	}
}

// GenerateRecommendation never fails: data problems degrade to HOLD with
// confidence 0 and an explanatory rationale.
func (e *StrategyEngine) GenerateRecommendation(candles []models.Candle) *Recommendation {
	rec, err := e.Evaluate(candles)
	if err == nil {
		return rec
	}

	var missing *MissingColumnsError
	var indicatorErr *IndicatorError
	switch {
	case errors.Is(err, ErrInsufficientCandles):
		return newHoldResult(fmt.Sprintf("Insufficient data: %d candles (need %d)", len(candles), e.minCandles))
	case errors.As(err, &missing):
		return newHoldResult(missing.Error())
	case errors.As(err, &indicatorErr):
		return newHoldResult(indicatorErr.Error())
	case errors.Is(err, ErrUndefinedIndicators):
		return newHoldResult("Insufficient data for indicator calculation (NaN values)")
	default:
		return newHoldResult(err.Error())
	}
}

// Evaluate is the explicit-error form of GenerateRecommendation.
func (e *StrategyEngine) Evaluate(candles []models.Candle) (*Recommendation, error) {
	if len(candles) < e.minCandles {
		return nil, fmt.Errorf("%w: %d < %d", ErrInsufficientCandles, len(candles), e.minCandles)
	}
	if missing := MissingColumns(candles); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	frame, err := e.calculator.CalculateAll(sortedCopy(candles))
	if err != nil {
		return nil, &IndicatorError{Err: err}
	}

	latest := frame.Last()
	if undefined := latest.NaNColumns(criticalIndicators...); len(undefined) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUndefinedIndicators, strings.Join(undefined, ", "))
	}

	score := e.score(latest)
	return e.decide(latest, score), nil
}

func (e *StrategyEngine) decide(latest indicators.Row, s scoreCard) *Recommendation {
	rationale := s.rationale()

	var signal Signal
	var confidence float64
	switch {
	case s.buy >= 0.5 && s.buy > s.sell:
		signal, confidence = SignalBuy, math.Min(s.buy, 0.95)
	case s.sell >= 0.5 && s.sell > s.buy:
		signal, confidence = SignalSell, math.Min(s.sell, 0.95)
	default:
		signal, confidence = SignalHold, math.Max(s.buy, s.sell)
	}

	rec := &Recommendation{
		Signal:     signal,
		Confidence: roundTo(confidence, 4),
		Rationale:  rationale,
	}
	if !signal.IsTrade() {
		return rec
	}

	entry := latest.Close
	stop, target := levels(signal, entry, latest.ATR)
	rec.EntryPrice = floatPtr(entry)
	rec.StopLoss = floatPtr(stop)
	rec.TakeProfit = floatPtr(target)
	return rec
}

// levels places the stop 2 ATR and the target 3 ATR from entry. Without a
// usable ATR, 2% of entry stands in for it.
func levels(signal Signal, entry, atr float64) (stop, target float64) {
	if math.IsNaN(atr) || math.IsInf(atr, 0) {
		atr = entry * 0.02
	}

	switch signal {
	case SignalBuy:
		stop, target = entry-2*atr, entry+3*atr
	case SignalSell:
		stop, target = entry+2*atr, entry-3*atr
	case SignalHold:
		return 0, 0
	}
	return roundLevel(stop), roundLevel(target)
}

// MissingColumns reports OHLCV columns that carry no finite value anywhere in
// the series, which is how an absent column arrives after decoding.
func MissingColumns(candles []models.Candle) []string {
	var missing []string
	for _, col := range models.RequiredColumns {
		present := false
		for _, c := range candles {
			v, _ := c.Value(col)
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				present = true
				break
			}
		}
		if !present {
			missing = append(missing, col)
		}
	}
	return missing
}

func sortedCopy(candles []models.Candle) []models.Candle {
	less := func(a, b models.Candle) bool { return a.Timestamp.Before(b.Timestamp) }
	if sort.SliceIsSorted(candles, func(i, j int) bool { return less(candles[i], candles[j]) }) {
		return candles
	}
	out := append([]models.Candle(nil), candles...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
