package indicators

// MACDService calculates Moving Average Convergence Divergence
type MACDService struct {
	ema *EMAService
}

type MACDResult struct {
	MACD      []float64 // MACD line
	Signal    []float64 // Signal line
	Histogram []float64 // MACD histogram
}

func NewMACDService() *MACDService {
	return &MACDService{
		ema: NewEMAService(),
	}
}

// Calculate computes MACD with the given periods (standard 12/26/9).
func (s *MACDService) Calculate(prices []float64, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(prices) == 0 || fastPeriod <= 0 || slowPeriod <= 0 || signalPeriod <= 0 {
		return nil
	}

	fastEMA := s.ema.Calculate(prices, fastPeriod)
	slowEMA := s.ema.Calculate(prices, slowPeriod)

	macdLine := make([]float64, len(prices))
	for i := range prices {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine := s.ema.Calculate(macdLine, signalPeriod)

	histogram := make([]float64, len(prices))
	for i := range prices {
		histogram[i] = macdLine[i] - signalLine[i]
	}

	return &MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: histogram,
	}
}
