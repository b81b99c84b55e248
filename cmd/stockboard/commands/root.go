package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	universeFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockboard",
	Short: "Stock dashboard data layer",
	Long: `stockboard fetches price history and profiles for a fixed universe,
caches every snapshot, derives returns and volatility, and serves the
named dashboard datasets.

Usage:
  go run ./cmd/stockboard [command]

Examples:
  go run ./cmd/stockboard fetch CVX BA --period 1y
  go run ./cmd/stockboard dataset build stock_trend_data
  go run ./cmd/stockboard metrics bubble_chart_stock_data
  go run ./cmd/stockboard ask "Which stock had the highest close?"
  go run ./cmd/stockboard api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&universeFile, "universe", "", "universe YAML (default UNIVERSE_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
