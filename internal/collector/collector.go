package collector

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/internal/snapshot"
	"github.com/wonny/stockboard/pkg/logger"
	"github.com/wonny/stockboard/pkg/metrics"
)

// ErrNoData marks a symbol whose sources returned nothing for every window
var ErrNoData = errors.New("no data returned")

// Collector fetches history for many symbols, cache first, with failures
// isolated per symbol.
type Collector struct {
	primary  contracts.MarketDataSource
	fallback contracts.MarketDataSource
	cache    *snapshot.Cache
	cfg      Config
	retry    RetryPolicy
	metrics  *metrics.Recorder
	logger   *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// Option configures a Collector
type Option func(*Collector)

// WithFallback sets the source consulted when the primary fails or is empty
func WithFallback(src contracts.MarketDataSource) Option {
	return func(c *Collector) { c.fallback = src }
}

// WithConfig overrides worker count, timeouts and jitter.
// Jitter bounds are used as given; zero disables the pause.
func WithConfig(cfg Config) Option {
	return func(c *Collector) { c.cfg = cfg }
}

// WithRetryPolicy injects the retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Collector) { c.retry = p }
}

// WithMetrics records fetch outcomes on r
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Collector) { c.metrics = r }
}

// WithSleep replaces the context-aware sleep used for jitter and backoff
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Collector) { c.sleep = sleep }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithSeed makes jitter deterministic
func WithSeed(seed uint64) Option {
	return func(c *Collector) { c.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// New creates a collector reading through cache and fetching from primary
func New(primary contracts.MarketDataSource, cache *snapshot.Cache, log *logger.Logger, opts ...Option) (*Collector, error) {
	if primary == nil {
		return nil, errors.New("collector: primary source is required")
	}
	if cache == nil {
		return nil, errors.New("collector: cache is required")
	}

	c := &Collector{
		primary: primary,
		cache:   cache,
		retry:   DefaultRetryPolicy(),
		logger:  log.WithField("module", "collector"),
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rnd == nil {
		c.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if err := prepare(&c.cfg, &c.retry); err != nil {
		return nil, err
	}
	return c, nil
}

// FetchResult is the outcome for one symbol
type FetchResult struct {
	Symbol         string
	Rows           int
	CacheHits      int
	Source         string
	MissingWindows []string
	Err            error
}

// Batch is the outcome of one FetchAll / FetchWindows call
type Batch struct {
	RunID     string
	Table     contracts.UnifiedTable
	Failed    []string
	Results   []FetchResult
	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded returns the symbols that contributed rows, in input order
func (b *Batch) Succeeded() []string {
	var out []string
	for _, r := range b.Results {
		if r.Err == nil {
			out = append(out, r.Symbol)
		}
	}
	return out
}

// FetchAll fetches one window per symbol.
// ⭐ SSOT: the table holds rows only for succeeded symbols; every other
// symbol is in Failed.
func (c *Collector) FetchAll(ctx context.Context, symbols []string, period contracts.Period, interval contracts.Interval) (*Batch, error) {
	return c.FetchWindows(ctx, symbols, []Window{{Period: period, Interval: interval}})
}

// FetchWindows fetches several labelled windows per symbol.
// A symbol succeeds when at least one window yields records.
func (c *Collector) FetchWindows(ctx context.Context, symbols []string, windows []Window) (*Batch, error) {
	if len(windows) == 0 {
		return nil, errors.New("collector: at least one window is required")
	}
	for _, w := range windows {
		if err := w.Request("PROBE").Validate(); err != nil {
			return nil, fmt.Errorf("window %q: %w", w.Label, err)
		}
	}

	symbols = uniqueSymbols(symbols)
	batch := &Batch{
		RunID:     uuid.NewString(),
		StartedAt: c.now(),
		Results:   make([]FetchResult, len(symbols)),
	}
	log := c.logger.WithField("run_id", batch.RunID)

	log.WithFields(map[string]interface{}{
		"symbols": len(symbols),
		"windows": len(windows),
		"workers": c.cfg.Workers,
	}).Info("Starting fetch")

	type job struct {
		index  int
		symbol string
	}
	type outcome struct {
		index  int
		parts  []contracts.SymbolSeries
		result FetchResult
	}

	jobCh := make(chan job, len(symbols))
	resultCh := make(chan outcome, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := range jobCh {
				if err := ctx.Err(); err != nil {
					resultCh <- outcome{index: j.index, result: FetchResult{Symbol: j.symbol, Err: err}}
					continue
				}
				parts, res := c.fetchSymbol(ctx, log.WithField("worker", workerID), j.symbol, windows)
				resultCh <- outcome{index: j.index, parts: parts, result: res}
			}
		}(i)
	}

	for i, sym := range symbols {
		jobCh <- job{index: i, symbol: sym}
	}
	close(jobCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	parts := make([][]contracts.SymbolSeries, len(symbols))
	for o := range resultCh {
		parts[o.index] = o.parts
		batch.Results[o.index] = o.result
	}

	// Assemble in input order so the table does not depend on scheduling
	for i, res := range batch.Results {
		if res.Err != nil {
			batch.Failed = append(batch.Failed, res.Symbol)
			continue
		}
		for w, s := range parts[i] {
			if s.Empty() {
				continue
			}
			batch.Table.Append(s, windows[w].Label)
		}
	}

	batch.Duration = c.now().Sub(batch.StartedAt)
	c.metrics.RecordBatch(len(batch.Failed))

	log.WithFields(map[string]interface{}{
		"succeeded": len(symbols) - len(batch.Failed),
		"failed":    len(batch.Failed),
		"rows":      batch.Table.Len(),
		"duration":  batch.Duration.String(),
	}).Info("Fetch completed")

	return batch, nil
}

// fetchSymbol resolves every window of one symbol.
// parts is indexed like windows; empty entries are missing windows.
func (c *Collector) fetchSymbol(ctx context.Context, log *logger.Logger, symbol string, windows []Window) ([]contracts.SymbolSeries, FetchResult) {
	res := FetchResult{Symbol: symbol}
	parts := make([]contracts.SymbolSeries, len(windows))
	log = log.WithField("symbol", symbol)

	var misses []int
	var cachedProfile contracts.Profile
	for i, w := range windows {
		key := w.Request(symbol).CacheKey()
		if s, ok := c.cache.GetSeries(ctx, key); ok {
			parts[i] = s
			res.CacheHits++
			res.Rows += s.Len()
			cachedProfile = cachedProfile.Merge(s.Profile)
			continue
		}
		misses = append(misses, i)
	}

	if len(misses) == 0 {
		res.Source = "cache"
		return parts, res
	}

	profile := c.fetchProfile(ctx, log, symbol).Merge(cachedProfile)
	profile.Symbol = symbol

	var lastErr error
	for _, i := range misses {
		w := windows[i]
		req := w.Request(symbol)

		records, source, err := c.fetchHistory(ctx, log, req)
		if err != nil {
			lastErr = err
			res.MissingWindows = append(res.MissingWindows, w.Label)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(records) == 0 {
			log.WithField("window", w.Label).Info("Source returned no records")
			res.MissingWindows = append(res.MissingWindows, w.Label)
			continue
		}

		series := contracts.SymbolSeries{
			Symbol:    symbol,
			Records:   records,
			Profile:   profile,
			FetchedAt: c.now(),
		}.Normalize()

		// 폴백 결과는 요청 기간을 다 채우지 못하므로 캐시하지 않는다
		if source != c.primary.Name() {
			log.WithFields(map[string]interface{}{
				"source": source,
				"window": w.Label,
				"rows":   series.Len(),
			}).Info("Serving fallback records without caching")
		} else if err := c.cache.PutSeries(ctx, req.CacheKey(), series); err != nil {
			log.WithError(err).WithField("key", req.CacheKey()).Warn("Write-through failed")
		}

		parts[i] = series
		res.Rows += series.Len()
		res.Source = source
	}

	if res.Rows == 0 {
		res.Err = lastErr
		if res.Err == nil {
			res.Err = contracts.NewSourceError(contracts.KindNotFound, c.primary.Name(), symbol, ErrNoData)
		}
		log.WithError(res.Err).WithField("kind", string(contracts.KindOf(res.Err))).Warn("Symbol failed")
		return nil, res
	}
	if res.Source == "" {
		res.Source = "cache"
	}
	return parts, res
}

// fetchHistory asks the primary and then the fallback.
// Records are empty with a nil error when both sources have nothing.
func (c *Collector) fetchHistory(ctx context.Context, log *logger.Logger, req contracts.HistoryRequest) ([]contracts.Record, string, error) {
	records, err := callWithRetry(c, ctx, log, c.primary, req.Symbol, func(ctx context.Context) ([]contracts.Record, error) {
		return c.primary.FetchHistory(ctx, req)
	})
	if err == nil && len(records) > 0 {
		return records, c.primary.Name(), nil
	}
	if c.fallback == nil || ctx.Err() != nil {
		return records, c.primary.Name(), err
	}

	fbRecords, fbErr := callWithRetry(c, ctx, log, c.fallback, req.Symbol, func(ctx context.Context) ([]contracts.Record, error) {
		return c.fallback.FetchHistory(ctx, req)
	})
	if fbErr == nil && len(fbRecords) > 0 {
		log.WithField("source", c.fallback.Name()).Info("Served by fallback source")
		return fbRecords, c.fallback.Name(), nil
	}
	if err != nil {
		return nil, c.primary.Name(), err
	}
	return nil, c.primary.Name(), nil
}

// fetchProfile never fails: unknown fields stay absent
func (c *Collector) fetchProfile(ctx context.Context, log *logger.Logger, symbol string) contracts.Profile {
	empty := contracts.Profile{Symbol: symbol}
	if c.cfg.SkipProfiles {
		return empty
	}

	profile, err := callWithRetry(c, ctx, log, c.primary, symbol, func(ctx context.Context) (contracts.Profile, error) {
		return c.primary.FetchProfile(ctx, symbol)
	})
	if err == nil {
		return profile
	}
	log.WithError(err).WithField("source", c.primary.Name()).Warn("Profile unavailable")

	if c.fallback == nil || ctx.Err() != nil {
		return empty
	}
	profile, err = callWithRetry(c, ctx, log, c.fallback, symbol, func(ctx context.Context) (contracts.Profile, error) {
		return c.fallback.FetchProfile(ctx, symbol)
	})
	if err != nil {
		log.WithError(err).WithField("source", c.fallback.Name()).Warn("Fallback profile unavailable")
		return empty
	}
	return profile
}

// callWithRetry runs fn under the retry policy with jitter before every
// live call and a per-attempt timeout.
func callWithRetry[T any](c *Collector, ctx context.Context, log *logger.Logger, src contracts.MarketDataSource, symbol string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err := c.sleep(ctx, c.jitter()); err != nil {
			return zero, err
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		start := time.Now()
		v, err := fn(callCtx)
		cancel()
		elapsed := time.Since(start).Seconds()

		if err == nil {
			c.metrics.RecordFetch(src.Name(), "ok", elapsed)
			return v, nil
		}
		if ctx.Err() != nil {
			c.metrics.RecordFetch(src.Name(), "canceled", elapsed)
			return zero, ctx.Err()
		}

		kind := contracts.KindOf(err)
		c.metrics.RecordFetch(src.Name(), string(kind), elapsed)
		lastErr = classify(err, kind, src.Name(), symbol)

		log.WithError(err).WithFields(map[string]interface{}{
			"source":  src.Name(),
			"kind":    string(kind),
			"attempt": attempt,
		}).Warn("Source call failed")

		if attempt == c.retry.MaxAttempts || !c.retry.ShouldRetry(kind) {
			break
		}

		c.metrics.RecordRetry(string(kind))
		if err := c.sleep(ctx, c.retry.Backoff(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

// classify makes sure the error leaving the collector is a SourceError
func classify(err error, kind contracts.ErrorKind, source, symbol string) error {
	var srcErr *contracts.SourceError
	if errors.As(err, &srcErr) {
		return err
	}
	return contracts.NewSourceError(kind, source, symbol, err)
}

func (c *Collector) jitter() time.Duration {
	span := c.cfg.JitterMax - c.cfg.JitterMin
	if span <= 0 {
		return c.cfg.JitterMin
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.cfg.JitterMin + time.Duration(c.rnd.Int64N(int64(span)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
