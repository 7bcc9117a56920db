package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"WarrenBot/config"
	"WarrenBot/internal/logger"
	"WarrenBot/internal/metrics"
	"WarrenBot/internal/models"
	"WarrenBot/internal/operations/backtest"
	"WarrenBot/internal/operations/binance"
	"WarrenBot/internal/operations/price"
	"WarrenBot/internal/operations/snapshot"
	"WarrenBot/internal/repositories"
	"WarrenBot/internal/services/policy"
	"WarrenBot/internal/services/strategy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// app is everything a command needs, built from one Config.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	service *snapshot.Service
	closers []io.Closer
}

// newApp wires the service. Logs go to logTo so commands that print JSON can
// keep stdout clean.
func newApp(logTo io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(logTo, "warrenbot", logger.ParseLevel(cfg.Log.Level))

	a := &app{cfg: cfg, log: log}

	db, err := setupDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB)
	}

	backtestStore, riskStore, err := a.setupBlobStores(cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewMetrics(reg)

	candles := repositories.NewCandleRepository(db, cfg.Risk.StaleCandleHours, log)
	engine := strategy.NewStrategyEngine()

	exchange := binance.NewBinanceClient(cfg.Market.BinanceAPIURL, cfg.Market.APIKey, cfg.Market.SecretKey)
	worker := price.NewWorker(price.NewPriceFetcher(exchange, log), candles, cfg.Risk.MaxGapDays, a.metrics, log)

	a.service = snapshot.NewService(snapshot.Config{
		DefaultSymbol:     cfg.Market.DefaultSymbol,
		DefaultInterval:   cfg.Market.DefaultInterval,
		MinDataWindowDays: cfg.Risk.MinDataWindowDays,
		StaleCandleHours:  cfg.Risk.StaleCandleHours,
	}, snapshot.Deps{
		Candles:   candles,
		Backtests: repositories.NewBacktestRepository(backtestStore, cfg.Risk.StaleCandleHours, log),
		Risk: repositories.NewRiskRepository(riskStore, repositories.RiskRepositoryConfig{
			MinTradesForReliability: cfg.Risk.MinTradesForReliability,
			MinWindowDays:           cfg.Risk.MinWindowDays,
			MinDataWindowDays:       cfg.Risk.MinDataWindowDays,
			StaleCandleHours:        cfg.Risk.StaleCandleHours,
		}, log),
		Strategy: engine,
		Engine:   backtest.NewEngine(engine, cfg.BacktestEngineConfig()),
		Policy:   policy.NewRiskPolicy(cfg.PolicyConfig()),
		Ingester: worker,
		Metrics:  a.metrics,
		Log:      log,
	})
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
}

func setupDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.PostgresDSN())
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
		dialector = sqlite.Open(cfg.SQLitePath)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.Candle{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// setupBlobStores returns the backtest and risk snapshot stores.
func (a *app) setupBlobStores(cfg config.StorageConfig) (repositories.BlobStore, repositories.BlobStore, error) {
	if cfg.Backend == "redis" {
		client, err := repositories.NewRedisClient(repositories.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client)
		return repositories.NewRedisStore(client, cfg.RedisPrefix+":backtests"),
			repositories.NewRedisStore(client, cfg.RedisPrefix+":risk"),
			nil
	}

	backtests, err := repositories.NewFileStore(cfg.BacktestsDir)
	if err != nil {
		return nil, nil, err
	}
	risk, err := repositories.NewFileStore(cfg.RiskDir)
	if err != nil {
		return nil, nil, err
	}
	return backtests, risk, nil
}

// printJSON writes v to stdout, indented.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withApp builds the app, runs fn and releases the app's resources.
func withApp(logTo io.Writer, fn func(a *app) error) error {
	a, err := newApp(logTo)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
