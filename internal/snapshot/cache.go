package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/logger"
	"github.com/wonny/stockboard/pkg/metrics"
)

// ErrEmptyPayload is returned when asked to cache a payload without rows
var ErrEmptyPayload = errors.New("refusing to cache empty payload")

// Store is a durable key/value backend holding encoded cache entries
type Store interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// entry is the persisted envelope; exactly one of Series or Table is set
type entry struct {
	Key      string                  `json:"key"`
	StoredAt time.Time               `json:"stored_at"`
	Series   *contracts.SymbolSeries `json:"series,omitempty"`
	Table    *contracts.UnifiedTable `json:"table,omitempty"`
}

// Cache is the snapshot cache shared by fetch workers of one process.
// Reads never fetch or mutate; unreadable entries are reported as misses.
// Writes replace the whole value under a per-key lock.
type Cache struct {
	store   Store
	logger  *logger.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Cache
type Option func(*Cache)

// WithMetrics records hit/miss counters
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Cache) { c.metrics = r }
}

// WithClock overrides the stored_at clock
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New wraps store in a Cache
func New(store Store, log *logger.Logger, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		logger: log.WithComponent("snapshot").WithField("store", store.Name()),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StoreName returns the backend name
func (c *Cache) StoreName() string {
	return c.store.Name()
}

func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// GetSeries returns the series cached under key
func (c *Cache) GetSeries(ctx context.Context, key string) (contracts.SymbolSeries, bool) {
	e, ok := c.load(ctx, key)
	if !ok {
		return contracts.SymbolSeries{}, false
	}
	if e.Series == nil || e.Series.Empty() {
		c.corrupt(key, errors.New("entry holds no series"))
		return contracts.SymbolSeries{}, false
	}
	return *e.Series, true
}

// PutSeries stores s under key, replacing any previous value
func (c *Cache) PutSeries(ctx context.Context, key string, s contracts.SymbolSeries) error {
	if s.Empty() {
		return &contracts.CacheError{Op: "put", Key: key, Err: ErrEmptyPayload}
	}
	return c.save(ctx, key, entry{Series: &s})
}

// GetTable returns the table cached under key
func (c *Cache) GetTable(ctx context.Context, key string) (contracts.UnifiedTable, bool) {
	e, ok := c.load(ctx, key)
	if !ok {
		return contracts.UnifiedTable{}, false
	}
	if e.Table == nil || e.Table.Len() == 0 {
		c.corrupt(key, errors.New("entry holds no table"))
		return contracts.UnifiedTable{}, false
	}
	return *e.Table, true
}

// PutTable stores t under key, replacing any previous value
func (c *Cache) PutTable(ctx context.Context, key string, t contracts.UnifiedTable) error {
	if t.Len() == 0 {
		return &contracts.CacheError{Op: "put", Key: key, Err: ErrEmptyPayload}
	}
	return c.save(ctx, key, entry{Table: &t})
}

// Delete removes one key
func (c *Cache) Delete(ctx context.Context, key string) error {
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	if err := c.store.Delete(ctx, key); err != nil {
		return &contracts.CacheError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Clear removes every entry from the backend
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return &contracts.CacheError{Op: "clear", Key: "*", Err: err}
	}
	c.logger.Info("Snapshot cache cleared")
	return nil
}

// Close releases the backend
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) load(ctx context.Context, key string) (entry, bool) {
	l := c.keyLock(key)
	l.Lock()
	data, found, err := c.store.Get(ctx, key)
	l.Unlock()

	if err != nil {
		c.corrupt(key, err)
		return entry{}, false
	}
	if !found {
		c.metrics.RecordCache(c.store.Name(), "miss")
		return entry{}, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.corrupt(key, fmt.Errorf("decode: %w", err))
		return entry{}, false
	}
	if e.Key != key {
		c.corrupt(key, fmt.Errorf("entry belongs to key %q", e.Key))
		return entry{}, false
	}

	c.metrics.RecordCache(c.store.Name(), "hit")
	return e, true
}

func (c *Cache) save(ctx context.Context, key string, e entry) error {
	e.Key = key
	e.StoredAt = c.now().UTC()

	data, err := json.Marshal(e)
	if err != nil {
		return &contracts.CacheError{Op: "encode", Key: key, Err: err}
	}

	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	if err := c.store.Put(ctx, key, data); err != nil {
		return &contracts.CacheError{Op: "put", Key: key, Err: err}
	}

	c.logger.WithField("key", key).Debug("Snapshot stored")
	return nil
}

func (c *Cache) corrupt(key string, err error) {
	c.metrics.RecordCache(c.store.Name(), "corrupt")
	c.logger.WithField("key", key).
		WithError(&contracts.CacheError{Op: "get", Key: key, Err: err}).
		Warn("Unreadable snapshot treated as miss")
}
