package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// datasetCmd represents the dataset command
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage named dashboard datasets",
	Long: `Named datasets are flat files, one per dashboard view.

Subcommands:
  list    - defined datasets and their files
  build   - rebuild datasets from upstream

Example:
  go run ./cmd/stockboard dataset list
  go run ./cmd/stockboard dataset build stock_trend_data
  go run ./cmd/stockboard dataset build --all`,
}

var (
	datasetListCmd = &cobra.Command{
		Use:   "list",
		Short: "List defined datasets",
		RunE:  runDatasetList,
	}

	datasetBuildCmd = &cobra.Command{
		Use:   "build [name]",
		Short: "Rebuild a dataset (or all with --all)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDatasetBuild,
	}

	datasetBuildAll bool
)

func init() {
	rootCmd.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetListCmd)
	datasetCmd.AddCommand(datasetBuildCmd)

	datasetBuildCmd.Flags().BoolVar(&datasetBuildAll, "all", false, "rebuild every dataset")
}

func runDatasetList(cmd *cobra.Command, args []string) error {
	d, err := newDeps(context.Background())
	if err != nil {
		return err
	}
	defer d.Close()

	var rows [][]string
	for _, s := range d.datasets.Statuses() {
		state := "missing"
		if s.Exists {
			state = "ready"
		}
		rows = append(rows, []string{s.Name, strconv.Itoa(s.Windows), state, s.Path})
	}

	fmt.Println()
	PrintTable([]string{"NAME", "WINDOWS", "FILE", "PATH"}, rows)
	return nil
}

func runDatasetBuild(cmd *cobra.Command, args []string) error {
	if !datasetBuildAll && len(args) == 0 {
		return fmt.Errorf("dataset name required (or use --all)")
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

	if datasetBuildAll {
		results, err := d.datasets.BuildAll(ctx)
		for _, res := range results {
			if res.SaveErr != nil {
				PrintWarning(fmt.Sprintf("%s: %d rows, file not written", res.Name, res.Table.Len()))
				continue
			}
			PrintSuccess(fmt.Sprintf("%s: %d rows (%s)", res.Name, res.Table.Len(), res.Origin))
		}
		return err
	}

	res, err := d.datasets.Build(ctx, args[0])
	if err != nil {
		return err
	}

	PrintHeader("Dataset "+res.Name,
		"Rows", strconv.Itoa(res.Table.Len()),
		"Windows", strings.Join(res.Table.Labels(), ", "),
		"Origin", string(res.Origin),
		"Path", res.Path,
	)
	if len(res.Failed) > 0 {
		PrintWarning(fmt.Sprintf("No data for: %s", strings.Join(res.Failed, ", ")))
	}
	if res.SaveErr != nil {
		PrintWarning(fmt.Sprintf("File not written: %v", res.SaveErr))
		return res.SaveErr
	}
	return nil
}
