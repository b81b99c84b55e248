package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wonny/stockboard/internal/collector"
	"github.com/wonny/stockboard/internal/datasets"
	"github.com/wonny/stockboard/internal/external/quotepage"
	"github.com/wonny/stockboard/internal/external/together"
	"github.com/wonny/stockboard/internal/external/yahoo"
	"github.com/wonny/stockboard/internal/qa"
	"github.com/wonny/stockboard/internal/snapshot"
	"github.com/wonny/stockboard/pkg/config"
	"github.com/wonny/stockboard/pkg/database"
	"github.com/wonny/stockboard/pkg/httputil"
	"github.com/wonny/stockboard/pkg/logger"
	"github.com/wonny/stockboard/pkg/metrics"
	"github.com/wonny/stockboard/pkg/redis"
)

// deps is the object graph shared by every command.
// ⭐ SSOT: 캐시와 소스는 프로세스당 한 번만 생성
type deps struct {
	cfg       *config.Config
	log       *logger.Logger
	metrics   *metrics.Recorder
	cache     *snapshot.Cache
	collector *collector.Collector
	datasets  *datasets.Builder
	qa        *qa.Service

	closers []func()
}

func newDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if universeFile != "" {
		cfg.UniverseFile = universeFile
	}

	d := &deps{
		cfg:     cfg,
		log:     logger.New(cfg),
		metrics: metrics.New(),
	}

	store, err := d.openStore(ctx)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.cache = snapshot.New(store, d.log, snapshot.WithMetrics(d.metrics))
	d.closers = append(d.closers, func() { _ = d.cache.Close() })

	httpClient := httputil.New(cfg, d.log).
		WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst).
		WithHeader("User-Agent", cfg.HTTP.UserAgent)

	opts := []collector.Option{
		collector.WithConfig(collector.ConfigFromEnv(cfg)),
		collector.WithRetryPolicy(collector.RetryPolicyFromEnv(cfg)),
		collector.WithMetrics(d.metrics),
	}
	if cfg.Yahoo.FallbackEnabled {
		opts = append(opts, collector.WithFallback(quotepage.NewClient(httpClient, cfg.Yahoo.QuotePageURL, d.log)))
	}

	primary := yahoo.NewClient(httpClient, cfg.Yahoo.BaseURL, d.log)
	d.collector, err = collector.New(primary, d.cache, d.log, opts...)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create collector: %w", err)
	}

	universe, err := d.loadUniverse()
	if err != nil {
		d.Close()
		return nil, err
	}

	datasetStore, err := snapshot.NewDatasetStore(cfg.Cache.DatasetDir, snapshot.Format(cfg.Cache.DatasetFormat), d.log)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open dataset store: %w", err)
	}
	d.datasets = datasets.NewBuilder(d.collector, datasetStore, universe, d.log)

	llmClient := httputil.NewWithTimeout(cfg, d.log, cfg.HTTP.Timeout*2)
	answerer := together.NewClient(llmClient, cfg.Together, d.log)
	d.qa = qa.New(answerer, d.log, qa.WithSampleSize(cfg.Together.SampleSize))

	return d, nil
}

func (d *deps) openStore(ctx context.Context) (snapshot.Store, error) {
	switch d.cfg.Cache.Backend {
	case "memory":
		return snapshot.NewMemoryStore(), nil

	case "redis":
		client, err := redis.New(ctx, d.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		if h := client.Health(ctx); h.Healthy() {
			d.log.WithFields(map[string]interface{}{
				"addr":    h.Addr,
				"prefix":  h.Prefix,
				"keys":    h.Keys,
				"latency": h.Latency.String(),
			}).Debug("Connected to redis")
		}
		return redis.NewSnapshotStore(client), nil

	case "postgres":
		db, err := database.New(ctx, d.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		d.closers = append(d.closers, db.Close)
		return snapshot.NewPostgresStore(ctx, db.Pool)

	default:
		return snapshot.OpenSQLite(ctx, filepath.Join(d.cfg.Cache.Dir, "snapshots.db"))
	}
}

func (d *deps) loadUniverse() (*datasets.Universe, error) {
	u, err := datasets.LoadUniverse(d.cfg.UniverseFile)
	if errors.Is(err, os.ErrNotExist) {
		d.log.WithField("path", d.cfg.UniverseFile).Warn("Universe file not found, using defaults")
		return datasets.DefaultUniverse(), nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Close releases stores and connections in reverse order
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
