package main

import (
	"os"

	"github.com/spf13/cobra"
)

var forceBacktest bool

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Print the latest backtest, running it when the cache is stale",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(os.Stderr, func(a *app) error {
			resp, err := a.service.LatestBacktest(cmd.Context(), symbol, interval, forceBacktest)
			if err != nil {
				return err
			}
			return printJSON(resp)
		})
	},
}

func init() {
	backtestCmd.Flags().BoolVar(&forceBacktest, "force", false, "ignore the cached snapshot and rerun the engine")
}
