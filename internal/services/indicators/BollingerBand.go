package indicators

import "math"

// BBandsService calculates Bollinger Bands
type BBandsService struct {
	sma *SMAService
}

type BBandsResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

func NewBBandsService() *BBandsService {
	return &BBandsService{
		sma: NewSMAService(),
	}
}

// Calculate returns middle = SMA(period) and upper/lower = middle ± k·σ where
// σ is the sample standard deviation (n-1) of the trailing window.
func (s *BBandsService) Calculate(prices []float64, period int, k float64) *BBandsResult {
	if len(prices) == 0 || period <= 1 {
		return nil
	}

	middle := s.sma.Calculate(prices, period)
	upper := nanSeries(len(prices))
	lower := nanSeries(len(prices))

	for i := period - 1; i < len(prices); i++ {
		if math.IsNaN(middle[i]) {
			continue
		}
		stdDev := sampleStdDev(prices[i-period+1:i+1], middle[i])
		upper[i] = middle[i] + k*stdDev
		lower[i] = middle[i] - k*stdDev
	}

	return &BBandsResult{
		Upper:  upper,
		Middle: middle,
		Lower:  lower,
	}
}

func sampleStdDev(window []float64, mean float64) float64 {
	sumSquares := 0.0
	for _, v := range window {
		diff := v - mean
		sumSquares += diff * diff
	}
	return math.Sqrt(sumSquares / float64(len(window)-1))
}
