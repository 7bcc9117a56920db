package config

import "time"

type Config struct {
	Market   MarketConfig   `yaml:"market"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Backtest BacktestConfig `yaml:"backtest"`
	Risk     RiskConfig     `yaml:"risk"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

type MarketConfig struct {
	DefaultSymbol   string        `yaml:"default_symbol"`
	DefaultInterval string        `yaml:"default_interval"`
	BinanceAPIURL   string        `yaml:"binance_api_url"`
	APIKey          string        `yaml:"-"`
	SecretKey       string        `yaml:"-"`
	RefreshEvery    time.Duration `yaml:"refresh_every"` // 0 disables scheduled refresh
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // postgres | sqlite
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"-"`
	DBName     string `yaml:"dbname"`
	SQLitePath string `yaml:"sqlite_path"` // defaults to candles.db in Storage.CandlesDir
}

type StorageConfig struct {
	Backend       string `yaml:"backend"` // file | redis
	DataDir       string `yaml:"data_dir"`
	CandlesDir    string `yaml:"candles_dir"`
	BacktestsDir  string `yaml:"backtests_dir"`
	RiskDir       string `yaml:"risk_dir"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"-"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// BacktestConfig values are percentages, e.g. 0.1 means 0.1%.
type BacktestConfig struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	PositionSizePct float64 `yaml:"position_size_pct"`
	TradingFeePct   float64 `yaml:"trading_fee_pct"`
	SlippagePct     float64 `yaml:"slippage_pct"`
}

type RiskConfig struct {
	MinTradesForReliability int     `yaml:"min_trades_for_reliability"`
	MinWindowDays           int     `yaml:"min_window_days"`
	StaleCandleHours        float64 `yaml:"stale_candle_hours"`
	MinProfitFactor         float64 `yaml:"min_profit_factor"`
	MaxDrawdownPct          float64 `yaml:"max_drawdown_pct"`
	MinTotalReturnPct       float64 `yaml:"min_total_return_pct"`
	MinDataWindowDays       int     `yaml:"min_data_window_days"`
	MaxGapDays              int     `yaml:"max_gap_days"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}
