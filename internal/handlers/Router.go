package handlers

import (
	"log/slog"
	"net/http"

	"WarrenBot/internal/metrics"
	"WarrenBot/internal/operations/snapshot"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

const AppName = "WarrenBot"

type RouterConfig struct {
	DefaultSymbol   string
	DefaultInterval string
	AllowedOrigins  []string
}

// NewRouter wires every route behind the logging, metrics, recovery and CORS
// middleware.
func NewRouter(svc Service, prices *PriceHandler, m *metrics.Metrics, cfg RouterConfig, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.NewMetrics(nil)
	}

	router := gin.New()
	router.Use(RequestLogger(log))
	router.Use(RequestMetrics(m))
	router.Use(ErrorHandler(log))

	strategies := NewStrategyHandler(svc)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"app":      AppName,
			"status":   "running",
			"symbol":   cfg.DefaultSymbol,
			"interval": cfg.DefaultInterval,
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Health(c.Request.Context()))
	})

	router.GET("/recommendation/today", strategies.GetRecommendation)
	router.GET("/backtest/latest", strategies.GetLatestBacktest)
	router.POST("/backtest/run", strategies.RunBacktest)
	router.GET("/risk/metrics", strategies.GetRiskMetrics)

	router.GET("/market/candles", prices.GetCandles)
	router.POST("/refresh", prices.PostRefresh)

	router.GET("/metrics", gin.WrapH(m.Handler()))

	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "not_found", "Not found", nil)
	})

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(router)
}

var _ Service = (*snapshot.Service)(nil)
