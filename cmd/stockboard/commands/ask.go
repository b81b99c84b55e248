package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/stockboard/internal/qa"
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about a dataset",
	Long: `Sends a bounded sample of a dataset with the question to the
language model. Requires TOGETHER_API_KEY.

Example:
  go run ./cmd/stockboard ask "Which stock had the highest close last year?"
  go run ./cmd/stockboard ask --dataset stock_sparkline "Which stock moved most yesterday?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var askDataset string

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askDataset, "dataset", "stock_trend_data", "dataset to sample")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := newDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.datasets.Load(ctx, askDataset)
	if err != nil {
		return err
	}

	answer, err := d.qa.Ask(ctx, res.Table, strings.Join(args, " "))
	if err != nil {
		PrintWarning(qa.UserMessage(err))
		return err
	}

	fmt.Println()
	fmt.Println(answer)
	fmt.Println()
	return nil
}
