package policy

import (
	"fmt"
	"math"

	"WarrenBot/internal/models"
	"WarrenBot/internal/operations/backtest"
)

// RiskPolicy runs the threshold checks. Each check returns nil when it passes.
type RiskPolicy struct {
	config Config
}

func NewRiskPolicy(config Config) *RiskPolicy {
	return &RiskPolicy{config: config}
}

func (p *RiskPolicy) CheckTrades(totalTrades int) *PolicyViolation {
	if totalTrades >= p.config.MinTradesForReliability {
		return nil
	}
	return &PolicyViolation{
		Type:           ViolationInsufficientTrades,
		Message:        fmt.Sprintf("Insufficient trades: %d < %d minimum required", totalTrades, p.config.MinTradesForReliability),
		ActualValue:    floatPtr(float64(totalTrades)),
		ThresholdValue: floatPtr(float64(p.config.MinTradesForReliability)),
		MetricName:     "total_trades",
	}
}

func (p *RiskPolicy) CheckWindowDays(windowDays int) *PolicyViolation {
	if windowDays >= p.config.MinDataWindowDays {
		return nil
	}
	return &PolicyViolation{
		Type:           ViolationInsufficientWindow,
		Message:        fmt.Sprintf("Insufficient data window: %d days < %d minimum required", windowDays, p.config.MinDataWindowDays),
		ActualValue:    floatPtr(float64(windowDays)),
		ThresholdValue: floatPtr(float64(p.config.MinDataWindowDays)),
		MetricName:     "window_days",
	}
}

// CheckProfitFactor treats an infinite or unbounded profit factor as passing.
// A nil value that is not marked infinite means it could not be computed.
func (p *RiskPolicy) CheckProfitFactor(profitFactor *float64, infinite bool) *PolicyViolation {
	if profitFactor == nil {
		if infinite {
			return nil
		}
		return &PolicyViolation{
			Type:           ViolationLowProfitFactor,
			Message:        "Profit factor not available",
			ThresholdValue: floatPtr(p.config.MinProfitFactor),
			MetricName:     "profit_factor",
		}
	}

	pf := *profitFactor
	if math.IsInf(pf, 1) || pf > unboundedProfitFactor || pf >= p.config.MinProfitFactor {
		return nil
	}
	return &PolicyViolation{
		Type:           ViolationLowProfitFactor,
		Message:        fmt.Sprintf("Insufficient profit factor: %.2f < %.2f minimum required", pf, p.config.MinProfitFactor),
		ActualValue:    floatPtr(pf),
		ThresholdValue: floatPtr(p.config.MinProfitFactor),
		MetricName:     "profit_factor",
	}
}

func (p *RiskPolicy) CheckTotalReturn(totalReturn float64) *PolicyViolation {
	if totalReturn > p.config.MinTotalReturnPct {
		return nil
	}
	return &PolicyViolation{
		Type:           ViolationNegativeReturn,
		Message:        fmt.Sprintf("Insufficient total return: %.2f%% <= %.2f%% minimum required", totalReturn, p.config.MinTotalReturnPct),
		ActualValue:    floatPtr(totalReturn),
		ThresholdValue: floatPtr(p.config.MinTotalReturnPct),
		MetricName:     "total_return",
	}
}

func (p *RiskPolicy) CheckMaxDrawdown(maxDrawdown float64) *PolicyViolation {
	if maxDrawdown <= p.config.MaxDrawdownPct {
		return nil
	}
	return &PolicyViolation{
		Type:           ViolationHighDrawdown,
		Message:        fmt.Sprintf("Max drawdown exceeded: %.2f%% > %.2f%% maximum allowed", maxDrawdown, p.config.MaxDrawdownPct),
		ActualValue:    floatPtr(maxDrawdown),
		ThresholdValue: floatPtr(p.config.MaxDrawdownPct),
		MetricName:     "max_drawdown",
	}
}

// EvaluateAll runs every check and keeps every violation, in check order.
func (p *RiskPolicy) EvaluateAll(metrics *backtest.MetricsReport, windowDays *int) []PolicyViolation {
	checks := []*PolicyViolation{p.CheckTrades(metrics.TotalTrades)}
	if windowDays != nil {
		checks = append(checks, p.CheckWindowDays(*windowDays))
	}
	checks = append(checks,
		p.CheckProfitFactor(metrics.ProfitFactor, metrics.ProfitFactorInfinite),
		p.CheckTotalReturn(metrics.TotalReturn),
		p.CheckMaxDrawdown(metrics.MaxDrawdown),
	)

	violations := make([]PolicyViolation, 0, len(checks))
	for _, v := range checks {
		if v != nil {
			violations = append(violations, *v)
		}
	}
	return violations
}

// EvaluateRiskForSignal gates a live signal. Cache problems short-circuit
// before any metric check; metric problems accumulate. When windowDays is nil
// the stored risk validation, if any, supplies it.
func (p *RiskPolicy) EvaluateRiskForSignal(
	metrics *backtest.MetricsReport,
	validation *models.RiskValidation,
	cache *models.CacheValidation,
	windowDays *int,
) RiskEvaluation {
	if cache != nil && cache.IsStale {
		return blocked(cache.Reason, true)
	}
	if cache != nil && cache.IsInconsistent {
		return blocked(cache.Reason, false)
	}
	if metrics == nil {
		return blocked(ReasonNoMetrics, false)
	}

	if windowDays == nil && validation != nil {
		windowDays = &validation.WindowDays
	}

	violations := p.EvaluateAll(metrics, windowDays)
	eval := RiskEvaluation{
		BlockReasons: make([]string, 0, len(violations)),
		Violations:   violations,
	}
	for _, v := range violations {
		eval.BlockReasons = append(eval.BlockReasons, v.Message)
	}
	if len(violations) > 0 {
		eval.IsBlocked = true
		eval.BlockReason = stringPtr(violations[0].Message)
	}
	return eval
}

func blocked(reason string, stale bool) RiskEvaluation {
	eval := RiskEvaluation{
		IsBlocked:    true,
		BlockReason:  stringPtr(reason),
		BlockReasons: []string{reason},
		Violations:   []PolicyViolation{},
		IsStale:      stale,
	}
	if stale {
		eval.StaleReason = stringPtr(reason)
	}
	return eval
}
