package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/stockboard/pkg/config"
)

// Client wraps the Redis client
// ⭐ SSOT: Redis connections are managed here only
type Client struct {
	rdb     *redis.Client
	enabled bool
	addr    string
	prefix  string
}

// New creates a new Redis client. A disabled config yields a no-op client.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	prefix := cfg.Redis.KeyPrefix
	if prefix == "" {
		prefix = "stockboard"
	}

	if !cfg.Redis.Enabled {
		return &Client{enabled: false, prefix: prefix}, nil
	}

	addr := fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed (%s): %w", addr, err)
	}

	return &Client{
		rdb:     rdb,
		enabled: true,
		addr:    addr,
		prefix:  prefix,
	}, nil
}

// Key joins parts under the client prefix: "stockboard:cache:CVX_1y_1d"
func (c *Client) Key(parts ...string) string {
	return strings.Join(append([]string{c.prefix}, parts...), ":")
}

// Prefix returns the namespace of every key written through this client
func (c *Client) Prefix() string {
	return c.prefix
}

// Health is the result of a round trip to Redis
type Health struct {
	Enabled bool          `json:"enabled"`
	Addr    string        `json:"addr,omitempty"`
	Prefix  string        `json:"prefix"`
	Latency time.Duration `json:"latency"`
	Keys    int64         `json:"keys"`
	Error   string        `json:"error,omitempty"`
}

// Healthy reports whether the last check succeeded (a disabled client is healthy)
func (h Health) Healthy() bool {
	return h.Error == ""
}

// Health pings the server and counts the keys in the selected DB
func (c *Client) Health(ctx context.Context) Health {
	h := Health{Enabled: c.enabled, Addr: c.addr, Prefix: c.prefix}
	if !c.enabled {
		return h
	}

	start := time.Now()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		h.Error = err.Error()
		return h
	}
	h.Latency = time.Since(start)

	keys, err := c.rdb.DBSize(ctx).Result()
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Keys = keys
	return h
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled returns whether Redis is enabled
func (c *Client) Enabled() bool {
	return c.enabled
}

// Redis returns the underlying redis client for advanced usage
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
