package backtest

import (
	"sort"
	"strings"

	"WarrenBot/internal/models"
	"WarrenBot/internal/services/strategy"
)

// Recommender produces a recommendation from the candles seen so far.
type Recommender interface {
	GenerateRecommendation(candles []models.Candle) *strategy.Recommendation
}

// Engine replays a candle series bar by bar against a Recommender.
// Run keeps all state local, so one Engine may serve concurrent runs.
type Engine struct {
	strategy Recommender
	metrics  *MetricsCalculator
	config   Config
}

func NewEngine(strategy Recommender, config Config) *Engine {
	return &Engine{
		strategy: strategy,
		metrics:  NewMetricsCalculator(config.Reliability, config.Currency),
		config:   config,
	}
}

func (e *Engine) Config() Config {
	return e.config
}

// Run simulates the strategy over candles. Data-shape problems produce an
// empty result whose metrics carry the reason. The caller's slice is not
// modified.
func (e *Engine) Run(candles []models.Candle) *BacktestResult {
	if len(candles) < WarmupBars {
		return e.emptyResult("Insufficient candles for backtest")
	}
	if missing := strategy.MissingColumns(candles); len(missing) > 0 {
		return e.emptyResult("Missing columns: " + strings.Join(missing, ", "))
	}

	series := append([]models.Candle(nil), candles...)
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	sim := newSimulator(e.config)
	sim.recordEquity(series[0].Timestamp)

	for i := WarmupBars; i < len(series); i++ {
		candle := series[i]

		if !sim.hasOpenPosition() {
			// capped prefix: the strategy sees bars 0..i and cannot append past them
			rec := e.strategy.GenerateRecommendation(series[: i+1 : i+1])
			sim.openPosition(rec, candle)
		}

		if sim.hasOpenPosition() {
			if price, reason, ok := sim.checkExit(candle); ok {
				sim.closePosition(price, reason, candle.Timestamp)
			}
		}

		sim.recordEquity(candle.Timestamp)
	}

	if sim.hasOpenPosition() {
		last := series[len(series)-1]
		sim.closePosition(last.Close, ExitEndOfData, last.Timestamp)
		sim.equityCurve[len(sim.equityCurve)-1].Equity = sim.equity
	}

	return &BacktestResult{
		Trades:      sim.trades,
		EquityCurve: sim.equityCurve,
		Metrics:     e.metrics.Calculate(sim.trades, sim.equityCurve),
	}
}

func (e *Engine) emptyResult(reason string) *BacktestResult {
	return &BacktestResult{
		Trades:      make([]Trade, 0),
		EquityCurve: make([]EquityPoint, 0),
		Metrics:     e.metrics.emptyReport(reason),
	}
}
