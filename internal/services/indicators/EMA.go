package indicators

import "math"

// EMAService provides Exponential Moving Average calculations
type EMAService struct{}

// NewEMAService creates a new EMA service instance
func NewEMAService() *EMAService {
	return &EMAService{}
}

// Calculate computes EMA for the entire price series.
// The series is seeded with its first value and smoothed recursively with
// alpha = 2/(period+1), so every index carries a value.
func (s *EMAService) Calculate(prices []float64, period int) []float64 {
	if !s.validateInputs(prices, period) {
		return nil
	}

	ema := make([]float64, len(prices))
	multiplier := s.getMultiplier(period)

	ema[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		// NaN inputs carry the previous value forward
		if math.IsNaN(prices[i]) {
			ema[i] = ema[i-1]
			continue
		}
		if math.IsNaN(ema[i-1]) {
			ema[i] = prices[i]
			continue
		}
		ema[i] = s.calculatePoint(prices[i], ema[i-1], multiplier)
	}

	return ema
}

// Private helper methods

func (s *EMAService) validateInputs(prices []float64, period int) bool {
	if len(prices) == 0 || period <= 0 {
		return false
	}
	return true
}

func (s *EMAService) getMultiplier(period int) float64 {
	return 2.0 / float64(period+1)
}

func (s *EMAService) calculatePoint(price, prevEMA, multiplier float64) float64 {
	return (price-prevEMA)*multiplier + prevEMA
}
