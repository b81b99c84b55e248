package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/stockboard/internal/datasets"
	"github.com/wonny/stockboard/pkg/logger"
)

type fakeCache struct {
	cleared int
	err     error
}

func (f *fakeCache) Clear(context.Context) error {
	f.cleared++
	return f.err
}

type fakeBuilder struct {
	built int
	err   error
}

func (f *fakeBuilder) BuildAll(context.Context) ([]*datasets.Result, error) {
	f.built++
	return []*datasets.Result{{Name: "stock_trend_data", Origin: datasets.OriginFetched}}, f.err
}

func TestDatasetRefreshJob(t *testing.T) {
	cache := &fakeCache{}
	builder := &fakeBuilder{}
	job := NewDatasetRefreshJob(cache, builder, "0 0 18 * * 1-5", logger.Nop())

	assert.Equal(t, "dataset_refresh", job.Name())
	assert.Equal(t, "0 0 18 * * 1-5", job.Schedule())
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, cache.cleared)
	assert.Equal(t, 1, builder.built)
}

func TestDatasetRefreshJob_Errors(t *testing.T) {
	cache := &fakeCache{err: errors.New("locked")}
	builder := &fakeBuilder{}
	job := NewDatasetRefreshJob(cache, builder, "@daily", logger.Nop())

	assert.Error(t, job.Run(context.Background()))
	assert.Zero(t, builder.built)

	cache.err = nil
	builder.err = errors.New("partial")
	assert.ErrorContains(t, job.Run(context.Background()), "partial")
}
