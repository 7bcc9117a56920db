package main

import (
	"os"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch new candles and rebuild every snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(os.Stderr, func(a *app) error {
			resp, err := a.service.Refresh(cmd.Context(), symbol, interval)
			if err != nil {
				return err
			}
			return printJSON(resp)
		})
	},
}
