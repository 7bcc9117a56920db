package handlers

import (
	"context"
	"net/http"
	"strconv"

	"WarrenBot/internal/operations/snapshot"

	"github.com/gin-gonic/gin"
)

// Service is the snapshot API the handlers serve.
type Service interface {
	Recommendation(ctx context.Context, symbol, interval string) (*snapshot.RecommendationResponse, error)
	LatestBacktest(ctx context.Context, symbol, interval string, force bool) (*snapshot.BacktestResponse, error)
	RunBacktest(ctx context.Context, symbol, interval string) (*snapshot.BacktestResponse, error)
	Candles(ctx context.Context, symbol, interval string) (*snapshot.CandlesResponse, error)
	RiskMetrics(ctx context.Context, symbol, interval string) (*snapshot.RiskResponse, error)
	Refresh(ctx context.Context, symbol, interval string) (*snapshot.RefreshResponse, error)
	RefreshSeries(ctx context.Context, symbol, interval string) error
	Health(ctx context.Context) *snapshot.HealthReport
}

// StrategyHandler serves recommendations, backtests and risk metrics.
type StrategyHandler struct {
	svc Service
}

func NewStrategyHandler(svc Service) *StrategyHandler {
	return &StrategyHandler{svc: svc}
}

// seriesParams reads the optional symbol and interval query parameters.
func seriesParams(c *gin.Context) (string, string) {
	return c.Query("symbol"), c.Query("interval")
}

// GetRecommendation handles GET /recommendation/today
func (h *StrategyHandler) GetRecommendation(c *gin.Context) {
	symbol, interval := seriesParams(c)
	resp, err := h.svc.Recommendation(c.Request.Context(), symbol, interval)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetLatestBacktest handles GET /backtest/latest
func (h *StrategyHandler) GetLatestBacktest(c *gin.Context) {
	force := false
	if v := c.Query("force_refresh"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, &snapshot.DataError{Message: "force_refresh must be a boolean"})
			return
		}
		force = parsed
	}

	symbol, interval := seriesParams(c)
	resp, err := h.svc.LatestBacktest(c.Request.Context(), symbol, interval, force)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RunBacktest handles POST /backtest/run
func (h *StrategyHandler) RunBacktest(c *gin.Context) {
	symbol, interval := seriesParams(c)
	resp, err := h.svc.RunBacktest(c.Request.Context(), symbol, interval)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetRiskMetrics handles GET /risk/metrics
func (h *StrategyHandler) GetRiskMetrics(c *gin.Context) {
	symbol, interval := seriesParams(c)
	resp, err := h.svc.RiskMetrics(c.Request.Context(), symbol, interval)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
