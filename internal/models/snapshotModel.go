package models

// CacheValidation describes whether a cached snapshot still matches the
// candles it was computed from.
type CacheValidation struct {
	IsStale        bool   `json:"is_stale"`
	IsInconsistent bool   `json:"is_inconsistent"`
	Reason         string `json:"reason"`
	CachedHash     string `json:"cached_hash"`
	CurrentHash    string `json:"current_hash"`
}

// IsValid reports whether the cached snapshot can be served as is.
func (v CacheValidation) IsValid() bool {
	return !v.IsStale && !v.IsInconsistent
}

// RiskValidation is the data-sufficiency verdict stored next to risk metrics.
type RiskValidation struct {
	TradeCount        int     `json:"trade_count"`
	WindowDays        int     `json:"window_days"`
	MinTradesRequired int     `json:"min_trades_required"`
	MinWindowDays     int     `json:"min_window_days"`
	IsReliable        bool    `json:"is_reliable"`
	Reason            *string `json:"reason"`
}
