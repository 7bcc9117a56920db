package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Global flags shared by every command.
var (
	configPath string
	symbol     string
	interval   string

	rootCmd = &cobra.Command{
		Use:   "warrenbot",
		Short: "Daily BUY/SELL/HOLD recommendations with backtest-gated risk",
		Long: `WarrenBot ingests OHLCV candles from Binance, scores them with a
momentum and trend strategy, backtests that strategy on the stored history and
suppresses live signals the backtest cannot justify.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $WARREN_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&symbol, "symbol", "", "symbol to operate on (defaults to market.default_symbol)")
	rootCmd.PersistentFlags().StringVar(&interval, "interval", "", "kline interval (defaults to market.default_interval)")

	rootCmd.AddCommand(serveCmd, refreshCmd, backtestCmd, recommendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
