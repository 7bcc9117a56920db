package backtest

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	tradingDaysPerYear = 252
	daysPerYear        = 365.25

	CAGRAnnualized    = "Annualized"
	CAGRNotAnnualized = "Not annualized (period < 1 year)"

	SharpeInsufficientReturns = "Insufficient return points"
	SharpeZeroVolatility      = "Zero volatility"

	ReasonNoTrades          = "No trades generated"
	ReasonInsufficientCurve = "Insufficient equity curve data"
)

// MetricsCalculator derives a MetricsReport from closed trades and an equity curve.
type MetricsCalculator struct {
	thresholds ReliabilityThresholds
	currency   string
}

func NewMetricsCalculator(thresholds ReliabilityThresholds, currency string) *MetricsCalculator {
	if currency == "" {
		currency = "USD"
	}
	return &MetricsCalculator{thresholds: thresholds, currency: currency}
}

func (m *MetricsCalculator) Calculate(trades []Trade, equityCurve []EquityPoint) MetricsReport {
	if len(trades) == 0 {
		return m.emptyReport(ReasonNoTrades)
	}

	report := MetricsReport{ExpectancyCurrency: m.currency, Reasons: []string{}}
	m.tradeStats(&report, trades)

	if len(equityCurve) < 2 || equityCurve[0].Equity <= 0 {
		report.IsReliable = false
		report.Reason = stringPtr(ReasonInsufficientCurve)
		report.Reasons = []string{ReasonInsufficientCurve}
		return report
	}

	m.equityStats(&report, equityCurve)
	m.reliability(&report)
	return report
}

func (m *MetricsCalculator) emptyReport(reason string) MetricsReport {
	return MetricsReport{
		ExpectancyCurrency: m.currency,
		IsReliable:         false,
		Reason:             stringPtr(reason),
		Reasons:            []string{reason},
	}
}

func (m *MetricsCalculator) tradeStats(report *MetricsReport, trades []Trade) {
	var sumPnL, sumWinPct, sumLossPct float64
	for _, t := range trades {
		pnl, pct := valueOr(t.PnL), valueOr(t.PnLPct)
		sumPnL += pnl
		switch {
		case pnl > 0:
			report.WinningTrades++
			sumWinPct += pct
		case pnl < 0:
			report.LosingTrades++
			sumLossPct += pct
		}
	}

	n := len(trades)
	report.TotalTrades = n
	report.WinRate = round2(float64(report.WinningTrades) / float64(n) * 100)
	report.Expectancy = round2(sumPnL / float64(n))

	switch {
	case report.WinningTrades == 0:
		report.ProfitFactor = floatPtr(0)
	case report.LosingTrades == 0:
		report.ProfitFactorInfinite = true
	default:
		avgWin := sumWinPct / float64(report.WinningTrades)
		avgLoss := math.Abs(sumLossPct / float64(report.LosingTrades))
		if avgLoss == 0 {
			report.ProfitFactorInfinite = true
		} else {
			report.ProfitFactor = floatPtr(round2(avgWin / avgLoss))
		}
	}
}

func (m *MetricsCalculator) equityStats(report *MetricsReport, curve []EquityPoint) {
	first, last := curve[0], curve[len(curve)-1]
	initial, final := first.Equity, last.Equity

	totalReturn := (final - initial) / initial * 100
	report.InitialEquity = round2(initial)
	report.FinalEquity = round2(final)
	report.TotalReturn = round2(totalReturn)

	years := last.Timestamp.Sub(first.Timestamp).Hours() / 24 / daysPerYear
	if years < 1 {
		report.CAGR = floatPtr(round2(totalReturn))
		report.CAGRLabel = stringPtr(CAGRNotAnnualized)
	} else {
		cagr := -100.0
		if final > 0 {
			cagr = (math.Pow(final/initial, 1/years) - 1) * 100
		}
		report.CAGR = floatPtr(round2(cagr))
		report.CAGRLabel = stringPtr(CAGRAnnualized)
	}

	sharpe, reason := sharpeRatio(curve)
	if reason != "" {
		report.SharpeReason = stringPtr(reason)
	} else {
		report.SharpeRatio = floatPtr(round2(sharpe))
	}

	report.MaxDrawdown = round2(maxDrawdown(curve))
}

// reliability fills IsReliable and lists every failed threshold.
func (m *MetricsCalculator) reliability(report *MetricsReport) {
	th := m.thresholds
	var reasons []string

	if report.TotalTrades < th.MinTrades {
		reasons = append(reasons, fmt.Sprintf("Insufficient trades: %d < %d minimum required", report.TotalTrades, th.MinTrades))
	}
	if report.ProfitFactor != nil && *report.ProfitFactor < th.MinProfitFactor {
		reasons = append(reasons, fmt.Sprintf("Profit factor too low: %.2f < %.2f minimum required", *report.ProfitFactor, th.MinProfitFactor))
	}
	if report.TotalReturn <= th.MinTotalReturnPct {
		reasons = append(reasons, fmt.Sprintf("Total return too low: %.2f%% <= %.2f%% minimum required", report.TotalReturn, th.MinTotalReturnPct))
	}
	if report.MaxDrawdown > th.MaxDrawdownPct {
		reasons = append(reasons, fmt.Sprintf("Max drawdown too high: %.2f%% > %.2f%% maximum allowed", report.MaxDrawdown, th.MaxDrawdownPct))
	}

	report.IsReliable = len(reasons) == 0
	report.Reasons = []string{}
	if !report.IsReliable {
		report.Reasons = reasons
		report.Reason = stringPtr(strings.Join(reasons, "; "))
	}
}

// sharpeRatio annualizes mean/stddev of bar-to-bar percentage changes.
// A non-empty reason means the ratio is undefined.
func sharpeRatio(curve []EquityPoint) (float64, string) {
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0, SharpeInsufficientReturns
	}

	identical := true
	sum := 0.0
	for _, r := range returns {
		sum += r
		if r != returns[0] {
			identical = false
		}
	}
	if identical {
		return 0, SharpeZeroVolatility
	}

	mean := sum / float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)-1))
	if std == 0 {
		return 0, SharpeZeroVolatility
	}
	return mean / std * math.Sqrt(tradingDaysPerYear), ""
}

func maxDrawdown(curve []EquityPoint) float64 {
	peak := curve[0].Equity
	worst := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - p.Equity) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func valueOr(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
