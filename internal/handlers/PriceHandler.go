package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"WarrenBot/internal/operations/price"

	"github.com/gin-gonic/gin"
)

// PriceHandler serves stored candles and refreshes, and optionally keeps the
// default series current in the background.
type PriceHandler struct {
	svc      Service
	symbol   string
	interval string
	every    time.Duration
	log      *slog.Logger
}

func NewPriceHandler(svc Service, symbol, interval string, every time.Duration, log *slog.Logger) *PriceHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PriceHandler{
		svc:      svc,
		symbol:   symbol,
		interval: interval,
		every:    every,
		log:      log,
	}
}

// Start refreshes the default series once, then keeps refreshing it every
// period until ctx is done. It returns nil when scheduling is disabled.
func (h *PriceHandler) Start(ctx context.Context) <-chan struct{} {
	if h.every <= 0 {
		return nil
	}

	if err := h.svc.RefreshSeries(ctx, h.symbol, h.interval); err != nil {
		h.log.Warn("initial refresh failed", "symbol", h.symbol, "interval", h.interval, "error", err)
	}

	recorder := price.NewPriceRecorder(h.svc.RefreshSeries, h.symbol, h.interval, h.every, h.log)
	return recorder.StartRecording(ctx)
}

// GetCandles handles GET /market/candles
func (h *PriceHandler) GetCandles(c *gin.Context) {
	symbol, interval := seriesParams(c)
	resp, err := h.svc.Candles(c.Request.Context(), symbol, interval)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PostRefresh handles POST /refresh
func (h *PriceHandler) PostRefresh(c *gin.Context) {
	symbol, interval := seriesParams(c)
	resp, err := h.svc.Refresh(c.Request.Context(), symbol, interval)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
