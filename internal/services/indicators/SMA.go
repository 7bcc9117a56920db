package indicators

import "math"

// SMAService computes trailing simple moving averages.
type SMAService struct{}

func NewSMAService() *SMAService {
	return &SMAService{}
}

// Calculate returns the trailing mean over period values. Indices before
// period-1 are NaN.
func (s *SMAService) Calculate(prices []float64, period int) []float64 {
	if len(prices) == 0 || period <= 0 {
		return nil
	}

	sma := nanSeries(len(prices))
	sum := 0.0
	for i := 0; i < len(prices); i++ {
		sum += prices[i]
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			sma[i] = sum / float64(period)
		}
	}

	// a NaN anywhere in the running sum poisons it, so recompute those windows
	for i := period - 1; i < len(prices); i++ {
		if math.IsNaN(sma[i]) {
			sma[i] = windowMean(prices[i-period+1 : i+1])
		}
	}
	return sma
}

// windowMean is the plain mean of a window, NaN if any element is NaN.
func windowMean(window []float64) float64 {
	sum := 0.0
	for _, v := range window {
		if math.IsNaN(v) {
			return math.NaN()
		}
		sum += v
	}
	return sum / float64(len(window))
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
