package backtest

import (
	"math"
	"testing"
	"time"

	"WarrenBot/internal/models"
	"WarrenBot/internal/services/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func flatCandles(n int, price float64) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    10,
		}
	}
	return out
}

func waveCandles(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		c := 100 + 15*math.Sin(float64(i)/6) + 0.05*float64(i)
		out[i] = models.Candle{
			Timestamp: t0.Add(time.Duration(i) * 24 * time.Hour),
			Open:      c - 0.5,
			High:      c + 2,
			Low:       c - 2,
			Close:     c,
			Volume:    1000 + float64(i),
		}
	}
	return out
}

// scripted returns one preset recommendation on its first call and HOLD afterwards.
type scripted struct {
	first   *strategy.Recommendation
	calls   int
	lengths []int
	lastTS  []time.Time
}

func (s *scripted) GenerateRecommendation(candles []models.Candle) *strategy.Recommendation {
	s.calls++
	s.lengths = append(s.lengths, len(candles))
	s.lastTS = append(s.lastTS, candles[len(candles)-1].Timestamp)
	if s.calls == 1 && s.first != nil {
		return s.first
	}
	return &strategy.Recommendation{Signal: strategy.SignalHold}
}

func tradeRec(signal strategy.Signal, entry, stop, target float64) *strategy.Recommendation {
	return &strategy.Recommendation{
		Signal:     signal,
		Confidence: 0.7,
		EntryPrice: &entry,
		StopLoss:   &stop,
		TakeProfit: &target,
	}
}

func TestRunRejectsShortSeries(t *testing.T) {
	engine := NewEngine(&scripted{}, NewConfig())
	result := engine.Run(flatCandles(49, 100))

	assert.Empty(t, result.Trades)
	assert.Empty(t, result.EquityCurve)
	require.NotNil(t, result.Metrics.Reason)
	assert.Equal(t, "Insufficient candles for backtest", *result.Metrics.Reason)
	assert.False(t, result.Metrics.IsReliable)
}

func TestRunRejectsMissingColumns(t *testing.T) {
	candles := flatCandles(60, 100)
	for i := range candles {
		candles[i].Low = math.NaN()
	}
	result := NewEngine(&scripted{}, NewConfig()).Run(candles)
	require.NotNil(t, result.Metrics.Reason)
	assert.Equal(t, "Missing columns: low", *result.Metrics.Reason)
}

func TestStopLossWinsWhenBothLevelsTouched(t *testing.T) {
	candles := flatCandles(60, 100)
	candles[51].Low = 94
	candles[51].High = 106

	stub := &scripted{first: tradeRec(strategy.SignalBuy, 100, 95, 105)}
	result := NewEngine(stub, NewConfig()).Run(candles)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, ExitStopLoss, *trade.ExitReason)
	assert.InDelta(t, 95*(1-DefaultSlippagePct), *trade.ExitPrice, 1e-9)
	assert.Equal(t, candles[51].Timestamp, *trade.ExitTime)
	assert.Less(t, *trade.PnL, 0.0)
}

func TestSellTakeProfit(t *testing.T) {
	candles := flatCandles(60, 100)
	candles[52].Low = 94

	stub := &scripted{first: tradeRec(strategy.SignalSell, 100, 105, 95)}
	result := NewEngine(stub, NewConfig()).Run(candles)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, ExitTakeProfit, *trade.ExitReason)
	assert.InDelta(t, 100*(1-DefaultSlippagePct), trade.EntryPrice, 1e-9)
	assert.InDelta(t, 95*(1+DefaultSlippagePct), *trade.ExitPrice, 1e-9)
	assert.Greater(t, *trade.PnL, 0.0)
}

func TestTradeEconomics(t *testing.T) {
	candles := flatCandles(60, 100)
	candles[51].High = 106

	cfg := NewConfig()
	stub := &scripted{first: tradeRec(strategy.SignalBuy, 100, 95, 105)}
	result := NewEngine(stub, cfg).Run(candles)
	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]

	entryFill := 100 * (1 + cfg.SlippagePct)
	positionValue := cfg.InitialCapital * cfg.PositionSizePct
	size := positionValue / entryFill
	exitValue := size * 105 * (1 - cfg.SlippagePct)
	entryFee := positionValue * cfg.TradingFeePct
	exitFee := exitValue * cfg.TradingFeePct
	slippage := positionValue * cfg.SlippagePct
	net := exitValue - positionValue - (entryFee + exitFee + slippage)

	assert.InDelta(t, entryFill, trade.EntryPrice, 1e-9)
	assert.InDelta(t, 1000.0, trade.PositionValue, 1e-9)
	assert.InDelta(t, size, trade.PositionSize, 1e-9)
	assert.InDelta(t, 1.0, trade.EntryFee, 1e-9)
	assert.InDelta(t, 0.5, trade.SlippageCost, 1e-9)
	assert.InDelta(t, exitFee, *trade.ExitFee, 1e-9)
	assert.InDelta(t, net, *trade.PnL, 1e-9)
	assert.InDelta(t, net/positionValue*100, *trade.PnLPct, 1e-9)

	final := result.EquityCurve[len(result.EquityCurve)-1]
	assert.InDelta(t, cfg.InitialCapital+net, final.Equity, 1e-9)
}

func TestOpenTradeClosedAtEndOfData(t *testing.T) {
	candles := flatCandles(60, 100)
	candles[59].Close = 102

	stub := &scripted{first: tradeRec(strategy.SignalBuy, 100, 90, 110)}
	result := NewEngine(stub, NewConfig()).Run(candles)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, ExitEndOfData, *trade.ExitReason)
	assert.InDelta(t, 102*(1-DefaultSlippagePct), *trade.ExitPrice, 1e-9)

	require.Len(t, result.EquityCurve, 11)
	last := result.EquityCurve[10]
	assert.Equal(t, candles[59].Timestamp, last.Timestamp)
	assert.InDelta(t, DefaultInitialCapital+*trade.PnL, last.Equity, 1e-9)
}

func TestStrategyOnlySeesPastBars(t *testing.T) {
	candles := flatCandles(60, 100)
	stub := &scripted{}
	result := NewEngine(stub, NewConfig()).Run(candles)

	require.Equal(t, 10, stub.calls)
	for k := range stub.lengths {
		i := WarmupBars + k
		assert.Equal(t, i+1, stub.lengths[k])
		assert.Equal(t, candles[i].Timestamp, stub.lastTS[k])
	}
	assert.Len(t, result.EquityCurve, 1+60-WarmupBars)
	assert.Equal(t, candles[0].Timestamp, result.EquityCurve[0].Timestamp)
}

func TestNoNewSignalWhilePositionOpen(t *testing.T) {
	candles := flatCandles(60, 100)
	stub := &scripted{first: tradeRec(strategy.SignalBuy, 100, 90, 110)}
	NewEngine(stub, NewConfig()).Run(candles)

	assert.Equal(t, 1, stub.calls)
}

func TestRunIsDeterministicAndPure(t *testing.T) {
	candles := waveCandles(220)
	reversed := make([]models.Candle, len(candles))
	for i, c := range candles {
		reversed[len(candles)-1-i] = c
	}
	snapshot := append([]models.Candle(nil), reversed...)

	engine := NewEngine(strategy.NewStrategyEngine(), NewConfig())
	first := engine.Run(candles)
	second := engine.Run(candles)
	fromReversed := engine.Run(reversed)

	assert.Equal(t, first, second)
	assert.Equal(t, first, fromReversed)
	assert.Equal(t, snapshot, reversed, "input must not be reordered")
	assert.NotEmpty(t, first.Trades)
}

func TestRecordedTradesMatchTruncatedRecommendation(t *testing.T) {
	candles := waveCandles(220)
	strat := strategy.NewStrategyEngine()
	result := NewEngine(strat, NewConfig()).Run(candles)
	require.NotEmpty(t, result.Trades)

	index := make(map[time.Time]int, len(candles))
	for i, c := range candles {
		index[c.Timestamp] = i
	}
	for _, trade := range result.Trades {
		i := index[trade.EntryTime]
		rec := strat.GenerateRecommendation(candles[:i+1])
		assert.Equal(t, rec.Signal, trade.Signal)
		assert.Equal(t, *rec.StopLoss, trade.StopLoss)
		assert.Equal(t, *rec.TakeProfit, trade.TakeProfit)
	}
}

func TestLevelsOnWrongSideAreNotTraded(t *testing.T) {
	tests := []struct {
		name string
		rec  *strategy.Recommendation
	}{
		{name: "buy with zeroed levels", rec: tradeRec(strategy.SignalBuy, 100, 0, 0)},
		{name: "buy target below entry", rec: tradeRec(strategy.SignalBuy, 100, 95, 99)},
		{name: "sell with zeroed levels", rec: tradeRec(strategy.SignalSell, 100, 0, 0)},
		{name: "sell stop below entry", rec: tradeRec(strategy.SignalSell, 100, 98, 95)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewEngine(&scripted{first: tt.rec}, NewConfig()).Run(flatCandles(60, 100))
			assert.Empty(t, result.Trades)
		})
	}
}

func TestSubCentSeriesTradesAtRealLevels(t *testing.T) {
	candles := waveCandles(220)
	for i := range candles {
		candles[i].Open *= 1e-6
		candles[i].High *= 1e-6
		candles[i].Low *= 1e-6
		candles[i].Close *= 1e-6
	}

	result := NewEngine(strategy.NewStrategyEngine(), NewConfig()).Run(candles)
	require.NotEmpty(t, result.Trades)

	for _, trade := range result.Trades {
		assert.Greater(t, trade.StopLoss, 0.0)
		assert.Greater(t, trade.TakeProfit, 0.0)
		switch trade.Signal {
		case strategy.SignalBuy:
			assert.Less(t, trade.StopLoss, trade.TakeProfit)
		case strategy.SignalSell:
			assert.Greater(t, trade.StopLoss, trade.TakeProfit)
		}
		require.NotNil(t, trade.ExitPrice)
		assert.Greater(t, *trade.ExitPrice, 0.0)
		require.NotNil(t, trade.PnLPct)
		assert.Greater(t, *trade.PnLPct, -50.0)
		assert.Less(t, *trade.PnLPct, 50.0)
	}
}
