package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"WarrenBot/internal/operations/backtest"
	"WarrenBot/internal/services/policy"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Market: MarketConfig{
			DefaultSymbol:   "BTCUSDT",
			DefaultInterval: "1d",
			BinanceAPIURL:   "https://api.binance.com",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Host:   "localhost",
			Port:   5432,
		},
		Storage: StorageConfig{
			Backend:     "file",
			DataDir:     "./data",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "warren",
		},
		Backtest: BacktestConfig{
			InitialCapital:  10000,
			PositionSizePct: 10,
			TradingFeePct:   0.1,
			SlippagePct:     0.05,
		},
		Risk: RiskConfig{
			MinTradesForReliability: 30,
			MinWindowDays:           90,
			StaleCandleHours:        24,
			MinProfitFactor:         1.0,
			MaxDrawdownPct:          50,
			MinTotalReturnPct:       0,
			MinDataWindowDays:       730,
			MaxGapDays:              7,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("WARREN_CONFIG")
	}
	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.deriveDirs()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	env := &envReader{}

	env.setString("DEFAULT_SYMBOL", &c.Market.DefaultSymbol)
	env.setString("DEFAULT_INTERVAL", &c.Market.DefaultInterval)
	env.setString("BINANCE_API_URL", &c.Market.BinanceAPIURL)
	env.setString("BINANCE_API_KEY", &c.Market.APIKey)
	env.setString("BINANCE_SECRET_KEY", &c.Market.SecretKey)
	env.setDuration("REFRESH_EVERY", &c.Market.RefreshEvery)

	env.setString("DB_DRIVER", &c.Database.Driver)
	env.setString("DB_HOST", &c.Database.Host)
	env.setInt("DB_PORT", &c.Database.Port)
	env.setString("DB_USER", &c.Database.User)
	env.setString("DB_PASSWORD", &c.Database.Password)
	env.setString("DB_NAME", &c.Database.DBName)
	env.setString("SQLITE_PATH", &c.Database.SQLitePath)

	env.setString("STORAGE_BACKEND", &c.Storage.Backend)
	env.setString("DATA_DIR", &c.Storage.DataDir)
	env.setString("CANDLES_DIR", &c.Storage.CandlesDir)
	env.setString("BACKTESTS_DIR", &c.Storage.BacktestsDir)
	env.setString("RISK_DIR", &c.Storage.RiskDir)
	env.setString("REDIS_ADDR", &c.Storage.RedisAddr)
	env.setString("REDIS_PASSWORD", &c.Storage.RedisPassword)
	env.setInt("REDIS_DB", &c.Storage.RedisDB)
	env.setString("REDIS_PREFIX", &c.Storage.RedisPrefix)

	env.setFloat("INITIAL_CAPITAL", &c.Backtest.InitialCapital)
	env.setFloat("POSITION_SIZE_PCT", &c.Backtest.PositionSizePct)
	env.setFloat("TRADING_FEE_PCT", &c.Backtest.TradingFeePct)
	env.setFloat("SLIPPAGE_PCT", &c.Backtest.SlippagePct)

	env.setInt("MIN_TRADES_FOR_RELIABILITY", &c.Risk.MinTradesForReliability)
	env.setInt("MIN_WINDOW_DAYS", &c.Risk.MinWindowDays)
	env.setFloat("STALE_CANDLE_HOURS", &c.Risk.StaleCandleHours)
	env.setFloat("MIN_PROFIT_FACTOR", &c.Risk.MinProfitFactor)
	env.setFloat("MAX_DRAWDOWN_PCT", &c.Risk.MaxDrawdownPct)
	env.setFloat("MIN_TOTAL_RETURN_PCT", &c.Risk.MinTotalReturnPct)
	env.setInt("MIN_DATA_WINDOW_DAYS", &c.Risk.MinDataWindowDays)
	env.setInt("MAX_GAP_DAYS", &c.Risk.MaxGapDays)

	env.setString("SERVER_ADDR", &c.Server.Addr)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	env.setString("LOG_LEVEL", &c.Log.Level)

	return errors.Join(env.errs...)
}

func (c *Config) deriveDirs() {
	if c.Storage.CandlesDir == "" {
		c.Storage.CandlesDir = filepath.Join(c.Storage.DataDir, "candles")
	}
	if c.Storage.BacktestsDir == "" {
		c.Storage.BacktestsDir = filepath.Join(c.Storage.DataDir, "backtests")
	}
	if c.Storage.RiskDir == "" {
		c.Storage.RiskDir = filepath.Join(c.Storage.DataDir, "risk")
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = filepath.Join(c.Storage.CandlesDir, "candles.db")
	}
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Market.DefaultSymbol == "" {
		errs = append(errs, errors.New("market.default_symbol is required"))
	}
	if c.Market.DefaultInterval == "" {
		errs = append(errs, errors.New("market.default_interval is required"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be postgres or sqlite", c.Database.Driver))
	}
	switch c.Storage.Backend {
	case "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be file or redis", c.Storage.Backend))
	}
	if c.Backtest.InitialCapital <= 0 {
		errs = append(errs, errors.New("backtest.initial_capital must be positive"))
	}
	if c.Backtest.PositionSizePct <= 0 || c.Backtest.PositionSizePct > 100 {
		errs = append(errs, errors.New("backtest.position_size_pct must be in (0, 100]"))
	}
	if c.Backtest.TradingFeePct < 0 || c.Backtest.SlippagePct < 0 {
		errs = append(errs, errors.New("backtest fee and slippage must not be negative"))
	}
	if c.Risk.StaleCandleHours <= 0 {
		errs = append(errs, errors.New("risk.stale_candle_hours must be positive"))
	}
	if c.Risk.MinTradesForReliability < 1 {
		errs = append(errs, errors.New("risk.min_trades_for_reliability must be at least 1"))
	}
	if c.Risk.MinWindowDays < 0 || c.Risk.MinDataWindowDays < 0 {
		errs = append(errs, errors.New("risk window days must not be negative"))
	}
	if c.Risk.MaxGapDays < 1 {
		errs = append(errs, errors.New("risk.max_gap_days must be at least 1"))
	}
	if c.Risk.MinProfitFactor < 0 {
		errs = append(errs, errors.New("risk.min_profit_factor must not be negative"))
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct > 100 {
		errs = append(errs, errors.New("risk.max_drawdown_pct must be in (0, 100]"))
	}
	if c.Market.RefreshEvery < 0 {
		errs = append(errs, errors.New("market.refresh_every must not be negative"))
	}

	return errors.Join(errs...)
}

// BacktestEngineConfig converts the percentage settings to the simulator's fractions.
func (c *Config) BacktestEngineConfig() backtest.Config {
	cfg := backtest.NewConfig()
	cfg.InitialCapital = c.Backtest.InitialCapital
	cfg.PositionSizePct = c.Backtest.PositionSizePct / 100
	cfg.TradingFeePct = c.Backtest.TradingFeePct / 100
	cfg.SlippagePct = c.Backtest.SlippagePct / 100
	cfg.Reliability = backtest.ReliabilityThresholds{
		MinTrades:         c.Risk.MinTradesForReliability,
		MinProfitFactor:   c.Risk.MinProfitFactor,
		MinTotalReturnPct: c.Risk.MinTotalReturnPct,
		MaxDrawdownPct:    c.Risk.MaxDrawdownPct,
	}
	return cfg
}

func (c *Config) PolicyConfig() policy.Config {
	return policy.Config{
		MinTradesForReliability: c.Risk.MinTradesForReliability,
		MinDataWindowDays:       c.Risk.MinDataWindowDays,
		MinProfitFactor:         c.Risk.MinProfitFactor,
		MinTotalReturnPct:       c.Risk.MinTotalReturnPct,
		MaxDrawdownPct:          c.Risk.MaxDrawdownPct,
	}
}

// PostgresDSN builds the connection string for the postgres driver.
func (d DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.DBName)
}

// helper env(string) to int
func EnvtoInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// helper env(string) to float
func EnvtoFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// envReader applies set environment variables and collects the ones that
// do not parse.
type envReader struct {
	errs []error
}

func (r *envReader) fail(key, v string, err error) {
	r.errs = append(r.errs, fmt.Errorf("env %s=%q: %w", key, v, err))
}

func (r *envReader) setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (r *envReader) setInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	i, err := EnvtoInt(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = i
}

func (r *envReader) setFloat(key string, dst *float64) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	f, err := EnvtoFloat(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = f
}

func (r *envReader) setDuration(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return
	}
	*dst = d
}
