package backtest

import (
	"time"

	"WarrenBot/internal/models"
	"WarrenBot/internal/services/strategy"
)

// simulator holds the mutable state of a single run. It is created per Run
// call and never shared.
type simulator struct {
	config Config

	equity      float64
	open        *Trade
	trades      []Trade
	equityCurve []EquityPoint
}

func newSimulator(config Config) *simulator {
	return &simulator{
		config:      config,
		equity:      config.InitialCapital,
		trades:      make([]Trade, 0),
		equityCurve: make([]EquityPoint, 0),
	}
}

func (s *simulator) hasOpenPosition() bool {
	return s.open != nil
}

// openPosition fills a recommendation at the decision bar's close with
// adverse slippage.
func (s *simulator) openPosition(rec *strategy.Recommendation, candle models.Candle) {
	if !rec.Signal.IsTrade() || !rec.HasLevels() {
		return
	}

	entry := candle.Close
	if rec.EntryPrice != nil {
		entry = *rec.EntryPrice
	}
	if !levelsBracket(rec.Signal, entry, *rec.StopLoss, *rec.TakeProfit) {
		return
	}
	fillPrice := s.applyEntrySlippage(rec.Signal, entry)

	positionValue := s.equity * s.config.PositionSizePct

	s.open = &Trade{
		EntryTime:     candle.Timestamp,
		EntryPrice:    fillPrice,
		StopLoss:      *rec.StopLoss,
		TakeProfit:    *rec.TakeProfit,
		Signal:        rec.Signal,
		Confidence:    rec.Confidence,
		PositionSize:  positionValue / fillPrice,
		PositionValue: positionValue,
		EntryFee:      positionValue * s.config.TradingFeePct,
		SlippageCost:  positionValue * s.config.SlippagePct,
	}
}

// levelsBracket reports whether the stop sits on the losing side of entry and
// the target on the winning side.
func levelsBracket(signal strategy.Signal, entry, stop, target float64) bool {
	switch signal {
	case strategy.SignalBuy:
		return stop < entry && entry < target
	case strategy.SignalSell:
		return target < entry && entry < stop
	default:
		return false
	}
}

// checkExit tests the open trade against the bar's range. The stop is
// checked first, so a bar touching both levels exits at the stop.
func (s *simulator) checkExit(candle models.Candle) (float64, string, bool) {
	t := s.open
	switch t.Signal {
	case strategy.SignalBuy:
		if candle.Low <= t.StopLoss {
			return t.StopLoss, ExitStopLoss, true
		}
		if candle.High >= t.TakeProfit {
			return t.TakeProfit, ExitTakeProfit, true
		}
	case strategy.SignalSell:
		if candle.High >= t.StopLoss {
			return t.StopLoss, ExitStopLoss, true
		}
		if candle.Low <= t.TakeProfit {
			return t.TakeProfit, ExitTakeProfit, true
		}
	case strategy.SignalHold:
	}
	return 0, "", false
}

// closePosition settles the open trade and compounds its net P&L into equity.
func (s *simulator) closePosition(exitPrice float64, reason string, at time.Time) {
	t := s.open
	fillPrice := s.applyExitSlippage(t.Signal, exitPrice)

	exitValue := t.PositionSize * fillPrice
	exitFee := exitValue * s.config.TradingFeePct

	var gross float64
	switch t.Signal {
	case strategy.SignalBuy:
		gross = exitValue - t.PositionValue
	case strategy.SignalSell:
		gross = t.PositionValue - exitValue
	case strategy.SignalHold:
	}

	net := gross - (t.EntryFee + exitFee + t.SlippageCost)
	pnlPct := net / t.PositionValue * 100

	t.ExitTime = timePtr(at)
	t.ExitPrice = floatPtr(fillPrice)
	t.ExitFee = floatPtr(exitFee)
	t.PnL = floatPtr(net)
	t.PnLPct = floatPtr(pnlPct)
	t.ExitReason = stringPtr(reason)

	s.equity += net
	s.trades = append(s.trades, *t)
	s.open = nil
}

func (s *simulator) recordEquity(at time.Time) {
	s.equityCurve = append(s.equityCurve, EquityPoint{Timestamp: at, Equity: s.equity})
}

func (s *simulator) applyEntrySlippage(signal strategy.Signal, price float64) float64 {
	switch signal {
	case strategy.SignalBuy:
		return price * (1 + s.config.SlippagePct)
	case strategy.SignalSell:
		return price * (1 - s.config.SlippagePct)
	case strategy.SignalHold:
	}
	return price
}

func (s *simulator) applyExitSlippage(signal strategy.Signal, price float64) float64 {
	switch signal {
	case strategy.SignalBuy:
		return price * (1 - s.config.SlippagePct)
	case strategy.SignalSell:
		return price * (1 + s.config.SlippagePct)
	case strategy.SignalHold:
	}
	return price
}
