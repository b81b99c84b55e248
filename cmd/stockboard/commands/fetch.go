package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockboard/internal/analytics"
	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/internal/datasets"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [symbols...]",
	Short: "Fetch history for symbols through the snapshot cache",
	Long: `Fetches one history window per symbol. Cached snapshots are served
without a network call; failed symbols are listed and never abort the batch.

Example:
  go run ./cmd/stockboard fetch
  go run ./cmd/stockboard fetch CVX BA GM --period 6mo --interval 1wk`,
	RunE: runFetch,
}

var (
	fetchPeriod   string
	fetchInterval string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchPeriod, "period", "1y", "lookback period (1d 5d 1mo 3mo 6mo 1y 2y 5y 10y ytd max)")
	fetchCmd.Flags().StringVar(&fetchInterval, "interval", "1d", "bar interval (1d 1wk 1mo)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	symbols := args
	if len(symbols) == 0 {
		symbols = d.datasets.Universe().Symbols
		if len(symbols) == 0 {
			symbols = datasets.DefaultSymbols
		}
	}

	PrintHeader("Fetch",
		"Symbols", strings.Join(symbols, " "),
		"Period", fetchPeriod,
		"Interval", fetchInterval,
		"Cache", d.cache.StoreName(),
	)

	batch, err := d.collector.FetchAll(ctx, symbols, contracts.Period(fetchPeriod), contracts.Interval(fetchInterval))
	if err != nil {
		return err
	}

	series := batch.Table.Split()
	bySymbol := make(map[string]contracts.SymbolSeries, len(series))
	for _, s := range series {
		bySymbol[s.Symbol] = s
	}

	var rows [][]string
	for _, res := range batch.Results {
		s, ok := bySymbol[res.Symbol]
		if res.Err != nil || !ok || s.Empty() {
			rows = append(rows, []string{res.Symbol, "-", "-", "-", "-", "-", "failed: " + string(contracts.KindOf(res.Err))})
			continue
		}
		last := s.Records[len(s.Records)-1]
		rows = append(rows, []string{
			res.Symbol,
			strconv.Itoa(res.Rows),
			last.Date.Format(contracts.DateLayout),
			fmt.Sprintf("%.2f", last.Close),
			formatVolume(last.Volume),
			formatPercent(analytics.PeriodReturn(s.Closes())),
			res.Source,
		})
	}

	fmt.Println()
	PrintTable([]string{"SYMBOL", "ROWS", "LAST", "CLOSE", "VOLUME", "RETURN", "SOURCE"}, rows)
	fmt.Println()

	if len(batch.Failed) > 0 {
		PrintWarning(fmt.Sprintf("No data for: %s", strings.Join(batch.Failed, ", ")))
	}
	PrintSuccess(fmt.Sprintf("Run %s: %d rows in %s", batch.RunID, batch.Table.Len(), batch.Duration.Round(time.Millisecond)))
	return nil
}
