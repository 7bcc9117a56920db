package main

import (
	"os"

	"github.com/spf13/cobra"
)

var withRisk bool

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print today's risk-gated recommendation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(os.Stderr, func(a *app) error {
			resp, err := a.service.Recommendation(cmd.Context(), symbol, interval)
			if err != nil {
				return err
			}
			if !withRisk {
				return printJSON(resp)
			}

			risk, err := a.service.RiskMetrics(cmd.Context(), symbol, interval)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"recommendation": resp,
				"risk":           risk,
			})
		})
	},
}

func init() {
	recommendCmd.Flags().BoolVar(&withRisk, "risk", false, "also print the risk metrics behind the gating decision")
}
