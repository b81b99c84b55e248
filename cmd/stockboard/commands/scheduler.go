package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockboard/internal/scheduler"
	"github.com/wonny/stockboard/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the dataset refresh scheduler",
	Long: `Runs scheduled jobs or triggers them by hand.

Subcommands:
  start   - run the scheduler until interrupted
  list    - registered jobs with their history
  run     - run one job now and wait for it

Example:
  go run ./cmd/stockboard scheduler start
  go run ./cmd/stockboard scheduler list
  go run ./cmd/stockboard scheduler run dataset_refresh`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler with every registered job.

Registered jobs:
- dataset_refresh: $REFRESH_CRON (default weekdays 18:00), clears the
  snapshot cache and rebuilds every dataset

Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job now",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== stockboard Scheduler ===")

	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, st := range sched.Stats() {
		next := "-"
		if st.NextRun != nil {
			next = st.NextRun.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("  - %s (%s, next %s)\n", st.JobName, st.Schedule, next)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	var rows [][]string
	for _, st := range sched.Stats() {
		rows = append(rows, []string{st.JobName, st.Schedule, strconv.Itoa(st.TotalRuns), strconv.Itoa(st.FailureCount)})
	}

	fmt.Println()
	PrintTable([]string{"JOB", "SCHEDULE", "RUNS", "FAILURES"}, rows)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	PrintInfo(fmt.Sprintf("Running job: %s", jobName))

	result, err := sched.RunJob(context.Background(), jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("job %s failed after %d attempts: %s", jobName, result.Attempts, result.Error)
	}

	PrintSuccess(fmt.Sprintf("%s finished in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

// initScheduler builds the shared deps and registers every job
func initScheduler() (*deps, *scheduler.Scheduler, error) {
	d, err := newDeps(context.Background())
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(d.log, scheduler.WithRetry(2, time.Minute))

	// ⭐ 데이터셋 갱신 작업
	refresh := jobs.NewDatasetRefreshJob(d.cache, d.datasets, d.cfg.RefreshCron, d.log)
	if err := sched.AddJob(refresh); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("add job %s: %w", refresh.Name(), err)
	}

	return d, sched, nil
}
