package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/stockboard/internal/datasets"
	"github.com/wonny/stockboard/pkg/logger"
)

// SnapshotClearer drops cached series so the next fetch goes upstream
type SnapshotClearer interface {
	Clear(ctx context.Context) error
}

// DatasetBuilder rebuilds every named dataset
type DatasetBuilder interface {
	BuildAll(ctx context.Context) ([]*datasets.Result, error)
}

// DatasetRefreshJob clears the snapshot cache and rebuilds all datasets.
// Datasets whose refresh comes back empty keep serving their previous file.
type DatasetRefreshJob struct {
	cache    SnapshotClearer
	builder  DatasetBuilder
	schedule string
	logger   *logger.Logger
}

// NewDatasetRefreshJob creates a new dataset refresh job
func NewDatasetRefreshJob(cache SnapshotClearer, builder DatasetBuilder, schedule string, log *logger.Logger) *DatasetRefreshJob {
	return &DatasetRefreshJob{
		cache:    cache,
		builder:  builder,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *DatasetRefreshJob) Name() string {
	return "dataset_refresh"
}

// Schedule returns the cron schedule
func (j *DatasetRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh
func (j *DatasetRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled dataset refresh")

	if err := j.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshot cache: %w", err)
	}

	results, err := j.builder.BuildAll(ctx)
	for _, res := range results {
		j.logger.WithFields(map[string]interface{}{
			"dataset": res.Name,
			"origin":  string(res.Origin),
			"rows":    res.Table.Len(),
			"failed":  len(res.Failed),
		}).Info("Dataset refreshed")
	}
	return err
}
