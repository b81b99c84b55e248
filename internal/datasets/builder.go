// Package datasets builds the named dashboard datasets: one flat file per
// view, checked for existence before any fetch and rebuilt on demand.
package datasets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/stockboard/internal/collector"
	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/internal/snapshot"
	"github.com/wonny/stockboard/pkg/logger"
)

var (
	// ErrUnknownDataset is returned for names not in the universe
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrNoData is returned when a build yields no rows and no previous file exists
	ErrNoData = errors.New("no data available and no existing dataset file")
)

// Origin tells where a served table came from
type Origin string

const (
	OriginFile    Origin = "file"
	OriginFetched Origin = "fetched"
	OriginStale   Origin = "stale"
)

// Result is one served dataset
type Result struct {
	Name   string
	Origin Origin
	Table  contracts.UnifiedTable
	Failed []string
	RunID  string
	Path   string

	// SaveErr is set when fresh rows could not be written to Path;
	// Table still holds them but the next Load will refetch.
	SaveErr error
}

// Status describes a dataset file on disk
type Status struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
	Windows     int    `json:"windows"`
}

// Fetcher is the part of the collector the builder needs
type Fetcher interface {
	FetchWindows(ctx context.Context, symbols []string, windows []collector.Window) (*collector.Batch, error)
}

// Builder serves and rebuilds named datasets
type Builder struct {
	fetcher  Fetcher
	store    *snapshot.DatasetStore
	universe *Universe
	logger   *logger.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewBuilder creates a builder over store
func NewBuilder(fetcher Fetcher, store *snapshot.DatasetStore, universe *Universe, log *logger.Logger) *Builder {
	return &Builder{
		fetcher:  fetcher,
		store:    store,
		universe: universe,
		logger:   log.WithField("module", "datasets"),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// WithClock replaces time.Now, used to resolve lookback windows
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Universe returns the loaded universe
func (b *Builder) Universe() *Universe {
	return b.universe
}

// Statuses lists every defined dataset with its file state
func (b *Builder) Statuses() []Status {
	out := make([]Status, len(b.universe.Datasets))
	for i, d := range b.universe.Datasets {
		out[i] = Status{
			Name:        d.Name,
			Description: d.Description,
			Path:        b.store.Path(d.Name),
			Exists:      b.store.Exists(d.Name),
			Windows:     len(d.Windows),
		}
	}
	return out
}

// Load serves the dataset file when it exists and reads cleanly,
// otherwise builds it.
func (b *Builder) Load(ctx context.Context, name string) (*Result, error) {
	if _, ok := b.universe.Definition(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}

	lock := b.lock(name)
	lock.Lock()
	defer lock.Unlock()

	if b.store.Exists(name) {
		table, err := b.store.Load(name)
		if err == nil && table.Len() > 0 {
			return &Result{Name: name, Origin: OriginFile, Table: table, Path: b.store.Path(name)}, nil
		}
		// 파일 손상은 미스로 처리하고 재생성
		b.logger.WithError(err).WithField("dataset", name).Warn("Dataset file unreadable, rebuilding")
	}
	return b.build(ctx, name)
}

// Build refetches the dataset and overwrites its file
func (b *Builder) Build(ctx context.Context, name string) (*Result, error) {
	if _, ok := b.universe.Definition(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
	}

	lock := b.lock(name)
	lock.Lock()
	defer lock.Unlock()

	return b.build(ctx, name)
}

// BuildAll rebuilds every dataset, continuing past failures.
// Datasets built but not saved are returned and also reported in the error.
func (b *Builder) BuildAll(ctx context.Context) ([]*Result, error) {
	var results []*Result
	var errs []error
	for _, d := range b.universe.Datasets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := b.Build(ctx, d.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		results = append(results, res)
		if res.SaveErr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, res.SaveErr))
		}
	}
	return results, errors.Join(errs...)
}

func (b *Builder) build(ctx context.Context, name string) (*Result, error) {
	def, _ := b.universe.Definition(name)
	symbols := b.universe.SymbolsFor(def)
	windows := b.universe.Windows(def, b.now())
	log := b.logger.WithField("dataset", name)

	log.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"windows": len(windows),
	}).Info("Building dataset")

	batch, err := b.fetcher.FetchWindows(ctx, symbols, windows)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}

	res := &Result{
		Name:   name,
		Origin: OriginFetched,
		Table:  batch.Table,
		Failed: batch.Failed,
		RunID:  batch.RunID,
		Path:   b.store.Path(name),
	}

	if batch.Table.Len() == 0 {
		// ⭐ SSOT: 빈 결과는 기존 파일을 덮어쓰지 않는다
		if b.store.Exists(name) {
			if prev, loadErr := b.store.Load(name); loadErr == nil && prev.Len() > 0 {
				log.Warn("Refresh returned no rows, serving previous file")
				res.Origin = OriginStale
				res.Table = prev
				return res, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrNoData, name)
	}

	if err := b.store.Save(name, batch.Table); err != nil {
		log.WithError(err).Error("Failed to save dataset")
		res.SaveErr = fmt.Errorf("save %s: %w", name, err)
		return res, nil
	}

	log.WithFields(map[string]interface{}{
		"rows":   batch.Table.Len(),
		"failed": len(batch.Failed),
		"run_id": batch.RunID,
	}).Info("Dataset saved")
	return res, nil
}

func (b *Builder) lock(name string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[name]
	if !ok {
		l = &sync.Mutex{}
		b.locks[name] = l
	}
	return l
}
