package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Signal is the closed set of recommendation outcomes.
type Signal uint8

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

func (s Signal) String() string {
	switch s {
	case SignalHold:
		return "HOLD"
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	}
	return fmt.Sprintf("Signal(%d)", uint8(s))
}

// IsTrade reports whether the signal opens a position.
func (s Signal) IsTrade() bool {
	switch s {
	case SignalBuy, SignalSell:
		return true
	case SignalHold:
		return false
	}
	return false
}

// ParseSignal maps "BUY", "SELL" or "HOLD" to a Signal.
func ParseSignal(v string) (Signal, error) {
	switch v {
	case "HOLD":
		return SignalHold, nil
	case "BUY":
		return SignalBuy, nil
	case "SELL":
		return SignalSell, nil
	}
	return SignalHold, fmt.Errorf("unknown signal %q", v)
}

func (s Signal) MarshalJSON() ([]byte, error) {
	switch s {
	case SignalHold, SignalBuy, SignalSell:
		return json.Marshal(s.String())
	}
	return nil, fmt.Errorf("marshal signal: invalid value %d", uint8(s))
}

func (s *Signal) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseSignal(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Recommendation is the strategy output for the latest bar.
// Price levels are set only when Signal is BUY or SELL.
type Recommendation struct {
	Signal     Signal   `json:"signal"`
	Confidence float64  `json:"confidence"`
	EntryPrice *float64 `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	Rationale  string   `json:"rationale"`
}

// HasLevels reports whether both protective levels are present.
func (r *Recommendation) HasLevels() bool {
	return r.StopLoss != nil && r.TakeProfit != nil
}

// Hold returns a copy of the recommendation forced to HOLD with no levels.
func (r *Recommendation) Hold(rationale string) *Recommendation {
	return &Recommendation{
		Signal:     SignalHold,
		Confidence: r.Confidence,
		Rationale:  rationale,
	}
}

// Helper function for soft-fail results
func newHoldResult(rationale string) *Recommendation {
	return &Recommendation{
		Signal:     SignalHold,
		Confidence: 0,
		Rationale:  rationale,
	}
}

func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// roundLevel keeps eight significant digits and at least two decimals, so
// levels on sub-cent instruments stay distinct from zero and from entry.
func roundLevel(v float64) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	places := int32(7 - math.Floor(math.Log10(math.Abs(v))))
	if places < 2 {
		places = 2
	}
	return roundTo(v, places)
}

func floatPtr(v float64) *float64 {
	return &v
}
