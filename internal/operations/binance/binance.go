package binance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"WarrenBot/internal/models"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"golang.org/x/time/rate"
)

// MaxKlinesLimit is the largest page the klines endpoint serves.
const MaxKlinesLimit = 1000

const (
	maxRetries     = 3
	defaultBackoff = 100 * time.Millisecond
)

type BinanceClient struct {
	client      *binance.Client
	rateLimiter *rate.Limiter
	backoff     time.Duration
}

// NewBinanceClient creates a spot market client. baseURL may carry the
// "/api/v3" suffix; it is stripped because the SDK appends it per endpoint.
func NewBinanceClient(baseURL, apiKey, secretKey string) *BinanceClient {
	// Create custom HTTP client with timeouts
	httpClient := &http.Client{
		Timeout: time.Second * 10,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	spotClient := binance.NewClient(apiKey, secretKey)
	spotClient.HTTPClient = httpClient
	if baseURL != "" {
		spotClient.BaseURL = normalizeBaseURL(baseURL)
	}

	// Create rate limiter: 10 requests per second with burst of 20
	limiter := rate.NewLimiter(rate.Limit(10), 20)

	return &BinanceClient{
		client:      spotClient,
		rateLimiter: limiter,
		backoff:     defaultBackoff,
	}
}

func normalizeBaseURL(u string) string {
	u = strings.TrimRight(u, "/")
	return strings.TrimSuffix(u, "/api/v3")
}

// GetKlines fetches one page of raw klines with rate limiting and retries.
// Coded exchange errors are not retried.
func (c *BinanceClient) GetKlines(ctx context.Context, symbol, interval string, startTime, endTime int64, limit int) ([]*binance.Kline, error) {
	if limit <= 0 || limit > MaxKlinesLimit {
		limit = MaxKlinesLimit
	}

	for attempt := 0; ; attempt++ {
		// Wait for rate limiter
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		svc := c.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit)
		if startTime > 0 {
			svc = svc.StartTime(startTime)
		}
		if endTime > 0 {
			svc = svc.EndTime(endTime)
		}

		klines, err := svc.Do(ctx)
		if err == nil {
			return klines, nil
		}
		if isRejected(err) || ctx.Err() != nil || attempt == maxRetries {
			return nil, fmt.Errorf("error fetching from Binance API: %w", err)
		}

		// Calculate backoff duration with exponential increase
		waitTime := time.Duration(math.Pow(2, float64(attempt))) * c.backoff

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
}

// isRejected reports whether the exchange answered with a coded error, such
// as an invalid symbol. Those fail the same way on every retry.
func isRejected(err error) bool {
	var apiErr *common.APIError
	return errors.As(err, &apiErr) && apiErr.Code < 0
}

// GetCandles fetches one page of klines in [start, end] as candles sorted
// ascending. Zero times leave the bound open.
func (c *BinanceClient) GetCandles(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]models.Candle, error) {
	klines, err := c.GetKlines(ctx, symbol, interval, toMillis(start), toMillis(end), limit)
	if err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := klineToCandle(symbol, interval, k)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func klineToCandle(symbol, interval string, k *binance.Kline) (models.Candle, error) {
	var (
		candle = models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		}
		err error
	)
	fields := []struct {
		raw string
		dst *float64
	}{
		{k.Open, &candle.Open},
		{k.High, &candle.High},
		{k.Low, &candle.Low},
		{k.Close, &candle.Close},
		{k.Volume, &candle.Volume},
	}
	for _, f := range fields {
		if *f.dst, err = strconv.ParseFloat(f.raw, 64); err != nil {
			return models.Candle{}, fmt.Errorf("parse kline %d: %w", k.OpenTime, err)
		}
	}
	return candle, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
