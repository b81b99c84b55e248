package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/stockboard/internal/contracts"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the snapshot cache",
	Long: `Snapshots never expire on their own. Clearing the cache forces the
next fetch of every key to go upstream.

Subcommands:
  get     - show a cached snapshot
  clear   - drop every snapshot

Example:
  go run ./cmd/stockboard cache get CVX_1y_1d
  go run ./cmd/stockboard cache clear`,
}

var (
	cacheGetCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Show a cached snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheGet,
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached snapshot",
		RunE:  runCacheClear,
	}
)

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	key := args[0]
	s, ok := d.cache.GetSeries(ctx, key)
	if !ok {
		PrintWarning(fmt.Sprintf("%s: not cached", key))
		return nil
	}

	first, last := "-", "-"
	if !s.Empty() {
		first = s.Records[0].Date.Format(contracts.DateLayout)
		last = s.Records[len(s.Records)-1].Date.Format(contracts.DateLayout)
	}
	sector := s.Profile.Sector
	if sector == "" {
		sector = "unknown"
	}

	PrintHeader("Snapshot "+key,
		"Symbol", s.Symbol,
		"Rows", strconv.Itoa(s.Len()),
		"First", first,
		"Last", last,
		"Sector", sector,
		"Market cap", formatMoney(s.Profile.MarketCap),
		"Fetched", s.FetchedAt.Format("2006-01-02 15:04:05"),
	)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	PrintSuccess(fmt.Sprintf("Cleared %s snapshot cache", d.cache.StoreName()))
	return nil
}
