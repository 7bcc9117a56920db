package snapshot

import (
	"errors"
	"fmt"
	"time"

	"WarrenBot/internal/models"
	"WarrenBot/internal/operations/backtest"
	"WarrenBot/internal/operations/price"
	"WarrenBot/internal/repositories"
	"WarrenBot/internal/services/policy"
	"WarrenBot/internal/services/strategy"
)

// RecommendationResponse is today's signal after risk gating.
type RecommendationResponse struct {
	strategy.Recommendation
	OriginalSignal  *strategy.Signal        `json:"original_signal,omitempty"`
	AsOf            time.Time               `json:"as_of"`
	DataFreshness   repositories.Freshness  `json:"data_freshness"`
	CandlesHash     string                  `json:"candles_hash"`
	CacheValidation *models.CacheValidation `json:"cache_validation,omitempty"`
	policy.RiskEvaluation
}

// BacktestResponse is a backtest result, either cached or freshly run.
type BacktestResponse struct {
	Cached bool `json:"cached"`
	backtest.BacktestResult
	Metadata        repositories.SnapshotMetadata `json:"metadata"`
	CacheValidation *models.CacheValidation       `json:"cache_validation,omitempty"`
	Warning         string                        `json:"warning,omitempty"`
}

type CandlesMetadata struct {
	repositories.CandleMetadata
	Freshness             repositories.Freshness `json:"freshness"`
	LatestCandleTimestamp time.Time              `json:"latest_candle_timestamp"`
	CandlesHash           string                 `json:"candles_hash"`
}

type CandlesResponse struct {
	Candles  []models.Candle `json:"candles"`
	Metadata CandlesMetadata `json:"metadata"`
	Warnings []string        `json:"warnings"`
}

type CacheInfo struct {
	Computed      bool `json:"computed"`
	WasRecomputed bool `json:"was_recomputed"`
}

type RiskResponse struct {
	Metrics         backtest.MetricsReport  `json:"metrics"`
	Validation      models.RiskValidation   `json:"validation"`
	Status          string                  `json:"status"`
	Reason          *string                 `json:"reason"`
	CacheInfo       CacheInfo               `json:"cache_info"`
	CacheValidation *models.CacheValidation `json:"cache_validation,omitempty"`
}

// RefreshSummary is the ingestion result plus the series it produced.
type RefreshSummary struct {
	*price.RefreshResult
	Timestamp   *time.Time `json:"timestamp"`
	CandlesHash string     `json:"candles_hash"`
	LastUpdated *time.Time `json:"last_updated"`
}

type Snapshots struct {
	Recommendation *RecommendationResponse `json:"recommendation"`
	Backtest       *BacktestResponse       `json:"backtest"`
	Candles        *CandlesResponse        `json:"candles"`
	Risk           *RiskResponse           `json:"risk"`
}

type RefreshResponse struct {
	Refresh   RefreshSummary    `json:"refresh"`
	Snapshots Snapshots         `json:"snapshots"`
	Errors    map[string]string `json:"errors"`
}

type HealthChecks struct {
	CandlesExist   bool `json:"candles_exist"`
	BacktestExists bool `json:"backtest_exists"`
	DataFresh      bool `json:"data_fresh"`
}

type HealthReport struct {
	Status    string                  `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Symbol    string                  `json:"symbol"`
	Interval  string                  `json:"interval"`
	Checks    HealthChecks            `json:"checks"`
	Freshness *repositories.Freshness `json:"freshness,omitempty"`
	Message   string                  `json:"message"`
}

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	WarningNoTrades = "No trades generated in backtest"
)

// ErrDataMissing marks requests that need data nobody has produced yet.
var ErrDataMissing = errors.New("data missing")

// DataMissingError says which data is missing and how to produce it.
type DataMissingError struct {
	Resource string
	Symbol   string
	Interval string
	Hint     string
}

func (e *DataMissingError) Error() string {
	return fmt.Sprintf("No %s data found for %s %s. Please run %s first.", e.Resource, e.Symbol, e.Interval, e.Hint)
}

func (e *DataMissingError) Is(target error) bool {
	return target == ErrDataMissing
}

// DataError rejects a request whose input or stored data is unusable.
type DataError struct {
	Message string
}

func (e *DataError) Error() string {
	return e.Message
}

// RefreshFailedError is returned when ingestion itself failed.
type RefreshFailedError struct {
	Result *price.RefreshResult
}

func (e *RefreshFailedError) Error() string {
	if e.Result == nil || e.Result.Error == "" {
		return "refresh failed"
	}
	return e.Result.Error
}

// SnapshotsFailedError is returned when ingestion worked but every snapshot
// failed to rebuild.
type SnapshotsFailedError struct {
	Errors  map[string]string
	Refresh *price.RefreshResult
}

func (e *SnapshotsFailedError) Error() string {
	return "All snapshots failed to refresh"
}
