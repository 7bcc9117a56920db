package policy

// ViolationType tags which policy check failed.
type ViolationType string

const (
	ViolationInsufficientTrades ViolationType = "insufficient_trades"
	ViolationInsufficientWindow ViolationType = "insufficient_window"
	ViolationLowProfitFactor    ViolationType = "low_profit_factor"
	ViolationNegativeReturn     ViolationType = "negative_return"
	ViolationHighDrawdown       ViolationType = "high_drawdown"
)

// PolicyViolation is a single failed risk check.
type PolicyViolation struct {
	Type           ViolationType `json:"type"`
	Message        string        `json:"message"`
	ActualValue    *float64      `json:"actual_value"`
	ThresholdValue *float64      `json:"threshold_value"`
	MetricName     string        `json:"metric_name,omitempty"`
}

// RiskEvaluation decides whether a live signal may be shown.
type RiskEvaluation struct {
	IsBlocked    bool              `json:"is_blocked"`
	BlockReason  *string           `json:"block_reason"`
	BlockReasons []string          `json:"block_reasons"`
	Violations   []PolicyViolation `json:"violations"`
	IsStale      bool              `json:"is_stale"`
	StaleReason  *string           `json:"stale_reason"`
}

// Config holds the thresholds every check compares against.
type Config struct {
	MinTradesForReliability int
	MinDataWindowDays       int
	MinProfitFactor         float64
	MinTotalReturnPct       float64
	MaxDrawdownPct          float64
}

func NewConfig() Config {
	return Config{
		MinTradesForReliability: 30,
		MinDataWindowDays:       730,
		MinProfitFactor:         1.0,
		MinTotalReturnPct:       0,
		MaxDrawdownPct:          50,
	}
}

// Profit factors above this are treated as unbounded.
const unboundedProfitFactor = 1e10

const ReasonNoMetrics = "No risk metrics available"

func floatPtr(v float64) *float64 {
	return &v
}

func stringPtr(s string) *string {
	return &s
}
