package strategy

import (
	"fmt"
	"strings"

	"WarrenBot/internal/services/indicators"
)

type scoreCard struct {
	buy     float64
	sell    float64
	reasons []string
}

func (s *scoreCard) addBuy(weight float64, reason string) {
	s.buy += weight
	s.reasons = append(s.reasons, reason)
}

func (s *scoreCard) addSell(weight float64, reason string) {
	s.sell += weight
	s.reasons = append(s.reasons, reason)
}

func (s *scoreCard) note(reason string) {
	s.reasons = append(s.reasons, reason)
}

func (s *scoreCard) rationale() string {
	if len(s.reasons) == 0 {
		return "No clear signal"
	}
	return strings.Join(s.reasons, "; ")
}

// score evaluates the five rules in fixed order: trend, MACD, RSI, price vs
// SMA 20, momentum.
func (e *StrategyEngine) score(row indicators.Row) scoreCard {
	var s scoreCard

	if row.EMA12 > row.EMA26 {
		s.addBuy(e.weights.trend, "EMA 12 > EMA 26 (uptrend)")
	} else {
		s.addSell(e.weights.trend, "EMA 12 < EMA 26 (downtrend)")
	}

	switch {
	case row.MACD > row.MACDSignal && row.MACD > 0:
		s.addBuy(e.weights.macd, "MACD bullish")
	case row.MACD < row.MACDSignal && row.MACD < 0:
		s.addSell(e.weights.macd, "MACD bearish")
	}

	switch {
	case row.RSI >= 40 && row.RSI <= 70:
		s.addBuy(e.weights.rsi, fmt.Sprintf("RSI neutral-bullish (%.1f)", row.RSI))
	case row.RSI >= 30 && row.RSI <= 60:
		s.addSell(e.weights.rsi, fmt.Sprintf("RSI neutral-bearish (%.1f)", row.RSI))
	case row.RSI > 70:
		s.note(fmt.Sprintf("RSI overbought (%.1f)", row.RSI))
	default:
		s.note(fmt.Sprintf("RSI oversold (%.1f)", row.RSI))
	}

	if row.Close > row.SMA20 {
		s.addBuy(e.weights.price, "Price > SMA 20")
	} else {
		s.addSell(e.weights.price, "Price < SMA 20")
	}

	if row.Momentum > 0 {
		s.addBuy(e.weights.momentum, "Positive momentum")
	} else {
		s.addSell(e.weights.momentum, "Negative momentum")
	}

	return s
}
