package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint used when clearing a prefix
const scanBatch = 200

// SnapshotStore keeps raw snapshot payloads under "<prefix>:cache:<key>",
// where prefix is the client's key prefix.
// Entries never expire; they are replaced whole or removed by Delete/Clear.
// It satisfies snapshot.Store.
type SnapshotStore struct {
	client *Client
}

// NewSnapshotStore creates a store in the client's namespace
func NewSnapshotStore(client *Client) *SnapshotStore {
	return &SnapshotStore{client: client}
}

func (s *SnapshotStore) Name() string {
	return "redis"
}

func (s *SnapshotStore) fullKey(key string) string {
	return s.client.Key("cache", key)
}

// Get returns the payload for key. A disabled client always misses.
func (s *SnapshotStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !s.client.Enabled() {
		return nil, false, nil
	}

	data, err := s.client.Redis().Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	return data, true, nil
}

// Put replaces the payload stored under key
func (s *SnapshotStore) Put(ctx context.Context, key string, payload []byte) error {
	if !s.client.Enabled() {
		return nil
	}

	if err := s.client.Redis().Set(ctx, s.fullKey(key), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes a cached value
func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	if !s.client.Enabled() {
		return nil
	}

	return s.client.Redis().Del(ctx, s.fullKey(key)).Err()
}

// Clear removes every key under the prefix
func (s *SnapshotStore) Clear(ctx context.Context) error {
	if !s.client.Enabled() {
		return nil
	}

	rdb := s.client.Redis()
	pattern := s.fullKey("*")
	var cursor uint64

	for {
		keys, next, err := rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Close closes the underlying client
func (s *SnapshotStore) Close() error {
	return s.client.Close()
}
