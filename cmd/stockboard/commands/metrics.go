package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/stockboard/internal/analytics"
)

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics [dataset]",
	Short: "Derived metrics per symbol of a dataset",
	Long: `Prints annual return, annualized volatility, YTD performance and the
profile columns for each symbol of a dataset.

Example:
  go run ./cmd/stockboard metrics
  go run ./cmd/stockboard metrics stock_trend_data --label "6 Months"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMetrics,
}

var metricsLabel string

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringVar(&metricsLabel, "label", "", "only rows of this window label")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	name := "bubble_chart_stock_data"
	if len(args) == 1 {
		name = args[0]
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.datasets.Load(ctx, name)
	if err != nil {
		return err
	}

	table := res.Table
	if metricsLabel != "" {
		table = table.ByLabel(metricsLabel)
	}

	var rows [][]string
	for _, m := range analytics.DeriveAll(table.Split()) {
		sector := m.Sector
		if sector == "" {
			sector = "unknown"
		}
		rows = append(rows, []string{
			m.Symbol,
			sector,
			strconv.Itoa(m.Observations),
			formatPercent(m.AnnualReturn),
			formatPercent(m.AnnualizedVolatility),
			formatPercent(m.YTDPerformance),
			formatMoney(m.MarketCap),
			formatRatio(m.PERatio),
			formatPercent(m.WeekChange52),
		})
	}

	PrintHeader("Metrics "+name, "Origin", string(res.Origin), "Rows", strconv.Itoa(table.Len()))
	PrintTable([]string{"SYMBOL", "SECTOR", "OBS", "RETURN", "VOL", "YTD", "MCAP", "P/E", "52W"}, rows)
	fmt.Println()
	return nil
}
