package indicators

import "math"

type RSIService struct {
	sma *SMAService
}

func NewRSIService() *RSIService {
	return &RSIService{
		sma: NewSMAService(),
	}
}

// Calculate returns RSI using simple rolling means of gains and losses over
// period price changes. The first defined value is at index period. A window
// without losses yields 100.
func (s *RSIService) Calculate(prices []float64, period int) []float64 {
	if len(prices) == 0 || period <= 0 {
		return nil
	}

	// index 0 has no previous price, so its change is undefined
	gains := nanSeries(len(prices))
	losses := nanSeries(len(prices))
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gains[i] = math.Max(change, 0)
		losses[i] = math.Max(-change, 0)
		if math.IsNaN(change) {
			gains[i], losses[i] = math.NaN(), math.NaN()
		}
	}

	avgGain := s.sma.Calculate(gains, period)
	avgLoss := s.sma.Calculate(losses, period)

	rsi := nanSeries(len(prices))
	for i := range prices {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			rsi[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		rsi[i] = 100 - (100 / (1 + rs))
	}

	return rsi
}
