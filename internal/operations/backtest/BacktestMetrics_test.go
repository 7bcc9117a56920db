package backtest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closedTrade(pnl, pnlPct float64) Trade {
	reason := ExitTakeProfit
	if pnl < 0 {
		reason = ExitStopLoss
	}
	return Trade{
		EntryTime:  t0,
		ExitTime:   timePtr(t0.Add(24 * time.Hour)),
		PnL:        floatPtr(pnl),
		PnLPct:     floatPtr(pnlPct),
		ExitReason: stringPtr(reason),
	}
}

func curve(days []int, equities ...float64) []EquityPoint {
	out := make([]EquityPoint, len(equities))
	for i, e := range equities {
		day := i
		if days != nil {
			day = days[i]
		}
		out[i] = EquityPoint{Timestamp: t0.AddDate(0, 0, day), Equity: e}
	}
	return out
}

func calculator() *MetricsCalculator {
	return NewMetricsCalculator(NewConfig().Reliability, "USD")
}

func repeatTrades(n int, pnl, pct float64) []Trade {
	out := make([]Trade, n)
	for i := range out {
		out[i] = closedTrade(pnl, pct)
	}
	return out
}

func TestNoTrades(t *testing.T) {
	report := calculator().Calculate(nil, curve(nil, 10000, 10000))

	assert.Equal(t, 0, report.TotalTrades)
	assert.Nil(t, report.ProfitFactor)
	assert.False(t, report.ProfitFactorInfinite)
	assert.Nil(t, report.SharpeRatio)
	assert.Nil(t, report.CAGR)
	assert.False(t, report.IsReliable)
	require.NotNil(t, report.Reason)
	assert.Equal(t, "No trades generated", *report.Reason)
	assert.Equal(t, "USD", report.ExpectancyCurrency)
}

func TestProfitFactorEdgeCases(t *testing.T) {
	eq := curve(nil, 10000, 10100, 10200)

	allWinners := calculator().Calculate(repeatTrades(10, 10, 1), eq)
	assert.Nil(t, allWinners.ProfitFactor)
	assert.True(t, allWinners.ProfitFactorInfinite)

	nonPositive := append(repeatTrades(5, -10, -1), repeatTrades(5, 0, 0)...)
	noWinners := calculator().Calculate(nonPositive, eq)
	require.NotNil(t, noWinners.ProfitFactor)
	assert.Equal(t, 0.0, *noWinners.ProfitFactor)
	assert.False(t, noWinners.ProfitFactorInfinite)

	mixed := calculator().Calculate([]Trade{closedTrade(30, 3), closedTrade(10, 1), closedTrade(-10, -1)}, eq)
	require.NotNil(t, mixed.ProfitFactor)
	assert.Equal(t, 2.0, *mixed.ProfitFactor)
}

func TestWinRateExcludesBreakeven(t *testing.T) {
	report := calculator().Calculate(repeatTrades(3, 0, 0), curve(nil, 10000, 10000, 10000))
	assert.Equal(t, 0.0, report.WinRate)
	assert.Equal(t, 0, report.WinningTrades)
	assert.Equal(t, 0, report.LosingTrades)

	report = calculator().Calculate([]Trade{closedTrade(5, 1), closedTrade(0, 0), closedTrade(-5, -1), closedTrade(5, 1)}, curve(nil, 10000, 10005))
	assert.Equal(t, 50.0, report.WinRate)
}

func TestExpectancy(t *testing.T) {
	report := calculator().Calculate([]Trade{closedTrade(30, 3), closedTrade(-10, -1), closedTrade(10, 1)}, curve(nil, 10000, 10030))
	assert.InDelta(t, 10.0, report.Expectancy, 1e-9)
	assert.Equal(t, "USD", report.ExpectancyCurrency)
}

func TestReliabilityListsEveryFailure(t *testing.T) {
	trades := append(repeatTrades(5, 10, 1), repeatTrades(5, -20, -2)...)
	report := calculator().Calculate(trades, curve(nil, 10000, 4000, 9500))

	require.NotNil(t, report.ProfitFactor)
	assert.Equal(t, 0.5, *report.ProfitFactor)
	assert.Equal(t, -5.0, report.TotalReturn)
	assert.Equal(t, 60.0, report.MaxDrawdown)
	assert.False(t, report.IsReliable)
	require.Len(t, report.Reasons, 4)

	reason := strings.ToLower(*report.Reason)
	for _, want := range []string{"trades", "profit factor", "total return", "drawdown"} {
		assert.Contains(t, reason, want)
	}
	assert.Equal(t, 3, strings.Count(*report.Reason, "; "))
	assert.Contains(t, *report.Reason, "Insufficient trades: 10 < 30 minimum required")
}

func TestReliableRun(t *testing.T) {
	trades := append(repeatTrades(20, 20, 2), repeatTrades(10, -10, -1)...)
	report := calculator().Calculate(trades, curve(nil, 10000, 10100, 10300))

	assert.True(t, report.IsReliable)
	assert.Nil(t, report.Reason)
	assert.Empty(t, report.Reasons)
}

func TestInfiniteProfitFactorSatisfiesReliability(t *testing.T) {
	report := calculator().Calculate(repeatTrades(30, 10, 1), curve(nil, 10000, 10100, 10300))
	assert.True(t, report.IsReliable)
}

func TestSharpeGuards(t *testing.T) {
	trades := repeatTrades(1, 10, 1)

	twoPoints := calculator().Calculate(trades, curve(nil, 10000, 10100))
	assert.Nil(t, twoPoints.SharpeRatio)
	require.NotNil(t, twoPoints.SharpeReason)
	assert.Equal(t, SharpeInsufficientReturns, *twoPoints.SharpeReason)

	flat := calculator().Calculate(trades, curve(nil, 10000, 10000, 10000))
	assert.Nil(t, flat.SharpeRatio)
	require.NotNil(t, flat.SharpeReason)
	assert.Equal(t, SharpeZeroVolatility, *flat.SharpeReason)

	moving := calculator().Calculate(trades, curve(nil, 10000, 10100, 10050, 10200))
	require.NotNil(t, moving.SharpeRatio)
	assert.Nil(t, moving.SharpeReason)
	assert.Greater(t, *moving.SharpeRatio, 0.0)
}

func TestCAGR(t *testing.T) {
	trades := repeatTrades(1, 10, 1)

	subYear := calculator().Calculate(trades, curve([]int{0, 180}, 10000, 11000))
	require.NotNil(t, subYear.CAGR)
	assert.Equal(t, 10.0, *subYear.CAGR)
	assert.Equal(t, subYear.TotalReturn, *subYear.CAGR)
	assert.Equal(t, CAGRNotAnnualized, *subYear.CAGRLabel)

	twoYears := calculator().Calculate(trades, curve([]int{0, 730}, 10000, 12100))
	require.NotNil(t, twoYears.CAGR)
	assert.InDelta(t, 10.0, *twoYears.CAGR, 0.05)
	assert.Equal(t, 21.0, twoYears.TotalReturn)
	assert.Less(t, *twoYears.CAGR, twoYears.TotalReturn)
	assert.Equal(t, CAGRAnnualized, *twoYears.CAGRLabel)
}

func TestMaxDrawdown(t *testing.T) {
	report := calculator().Calculate(repeatTrades(1, 10, 1), curve(nil, 10000, 11000, 10500, 9500, 10000))
	assert.InDelta(t, 13.64, report.MaxDrawdown, 0.001)
}

func TestInsufficientEquityCurve(t *testing.T) {
	report := calculator().Calculate(repeatTrades(2, 10, 1), curve(nil, 10000))
	assert.Equal(t, 2, report.TotalTrades)
	assert.False(t, report.IsReliable)
	assert.Equal(t, ReasonInsufficientCurve, *report.Reason)
	assert.Nil(t, report.SharpeRatio)
}
