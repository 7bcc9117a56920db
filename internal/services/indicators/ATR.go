package indicators

import "math"

// ATRService computes Average True Range.
type ATRService struct {
	sma *SMAService
}

func NewATRService() *ATRService {
	return &ATRService{
		sma: NewSMAService(),
	}
}

// Calculate returns the trailing mean of True Range over period bars. The
// first bar has no previous close, so its True Range is high-low.
func (s *ATRService) Calculate(high, low, closes []float64, period int) []float64 {
	n := len(closes)
	if n == 0 || len(high) != n || len(low) != n || period <= 0 {
		return nil
	}

	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		tr[i] = trueRange(high[i], low[i], closes[i-1])
	}

	return s.sma.Calculate(tr, period)
}

func trueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}
