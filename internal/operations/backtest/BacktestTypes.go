package backtest

import (
	"time"

	"WarrenBot/internal/services/strategy"
)

// Exit reasons recorded on closed trades.
const (
	ExitStopLoss   = "Stop Loss"
	ExitTakeProfit = "Take Profit"
	ExitEndOfData  = "End of data"
)

// Default simulation economics. Percentages are stored as fractions.
const (
	DefaultInitialCapital  = 10000.0
	DefaultPositionSizePct = 0.10
	DefaultTradingFeePct   = 0.001
	DefaultSlippagePct     = 0.0005

	// Bars the engine waits before asking the strategy for a signal.
	WarmupBars = 50
)

// Core trade record
type Trade struct {
	EntryTime     time.Time       `json:"entry_time"`
	ExitTime      *time.Time      `json:"exit_time"`
	EntryPrice    float64         `json:"entry_price"`
	ExitPrice     *float64        `json:"exit_price"`
	StopLoss      float64         `json:"stop_loss"`
	TakeProfit    float64         `json:"take_profit"`
	Signal        strategy.Signal `json:"signal"`
	Confidence    float64         `json:"confidence"`
	PositionSize  float64         `json:"position_size"`
	PositionValue float64         `json:"position_value"`
	EntryFee      float64         `json:"entry_fee"`
	ExitFee       *float64        `json:"exit_fee"`
	SlippageCost  float64         `json:"slippage_cost"`
	PnL           *float64        `json:"pnl"`
	PnLPct        *float64        `json:"pnl_pct"`
	ExitReason    *string         `json:"exit_reason"`
}

// IsClosed reports whether the trade has been exited.
func (t *Trade) IsClosed() bool {
	return t.ExitTime != nil
}

// For tracking equity changes
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// MetricsReport is the fixed-shape performance summary of a run. Nil pointers
// serialize as JSON null: ProfitFactor is nil when it is infinite (see
// ProfitFactorInfinite) or unavailable, CAGR and SharpeRatio are nil when
// they cannot be computed.
type MetricsReport struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`

	ProfitFactor         *float64 `json:"profit_factor"`
	ProfitFactorInfinite bool     `json:"profit_factor_infinite"`

	Expectancy         float64 `json:"expectancy"`
	ExpectancyCurrency string  `json:"expectancy_currency"`

	InitialEquity float64  `json:"initial_equity"`
	FinalEquity   float64  `json:"final_equity"`
	TotalReturn   float64  `json:"total_return"`
	CAGR          *float64 `json:"cagr"`
	CAGRLabel     *string  `json:"cagr_label"`
	SharpeRatio   *float64 `json:"sharpe_ratio"`
	SharpeReason  *string  `json:"sharpe_reason"`
	MaxDrawdown   float64  `json:"max_drawdown"`

	IsReliable bool     `json:"is_reliable"`
	Reason     *string  `json:"reason"`
	Reasons    []string `json:"reasons"`
}

// Final backtest results
type BacktestResult struct {
	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Metrics     MetricsReport `json:"metrics"`
}

// ReliabilityThresholds decide whether a run's metrics can be trusted.
type ReliabilityThresholds struct {
	MinTrades         int
	MinProfitFactor   float64
	MinTotalReturnPct float64
	MaxDrawdownPct    float64
}

// Simulation config
type Config struct {
	InitialCapital  float64
	PositionSizePct float64 // fraction of equity per position
	TradingFeePct   float64 // fraction of notional per fill
	SlippagePct     float64 // fraction of price per fill
	Currency        string

	Reliability ReliabilityThresholds
}

// NewConfig creates default config
func NewConfig() Config {
	return Config{
		InitialCapital:  DefaultInitialCapital,
		PositionSizePct: DefaultPositionSizePct,
		TradingFeePct:   DefaultTradingFeePct,
		SlippagePct:     DefaultSlippagePct,
		Currency:        "USD",
		Reliability: ReliabilityThresholds{
			MinTrades:         30,
			MinProfitFactor:   1.0,
			MinTotalReturnPct: 0,
			MaxDrawdownPct:    50,
		},
	}
}

func stringPtr(s string) *string {
	return &s
}

func floatPtr(v float64) *float64 {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
