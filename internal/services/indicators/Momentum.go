package indicators

// MomentumService computes price momentum, series[i] - series[i-period].
type MomentumService struct{}

func NewMomentumService() *MomentumService {
	return &MomentumService{}
}

func (s *MomentumService) Calculate(prices []float64, period int) []float64 {
	if len(prices) == 0 || period <= 0 {
		return nil
	}

	momentum := nanSeries(len(prices))
	for i := period; i < len(prices); i++ {
		momentum[i] = prices[i] - prices[i-period]
	}
	return momentum
}
