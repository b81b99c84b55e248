package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockboard/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), &config.Config{
		Redis: config.RedisConfig{Enabled: false, KeyPrefix: "stockboard"},
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)

	assert.False(t, client.Enabled())
	assert.Nil(t, client.Redis())
	assert.NoError(t, client.Close())
}

func TestSnapshotStore_Disabled(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(disabledClient(t))

	require.NoError(t, store.Put(ctx, "CVX_1y_1d", []byte(`{}`)))

	data, found, err := store.Get(ctx, "CVX_1y_1d")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, data)

	assert.NoError(t, store.Delete(ctx, "CVX_1y_1d"))
	assert.NoError(t, store.Clear(ctx))
	assert.Equal(t, "redis", store.Name())
}

func TestSnapshotStore_FullKey(t *testing.T) {
	store := NewSnapshotStore(disabledClient(t))

	assert.Equal(t, "stockboard:cache:CVX_1y_1d", store.fullKey("CVX_1y_1d"))
	assert.Equal(t, "stockboard:cache:*", store.fullKey("*"))
}

func TestClient_Key(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		parts  []string
		want   string
	}{
		{"configured prefix", "dash", []string{"cache", "CVX_1y_1d"}, "dash:cache:CVX_1y_1d"},
		{"default prefix", "", []string{"cache", "*"}, "stockboard:cache:*"},
		{"prefix only", "dash", nil, "dash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(context.Background(), &config.Config{
				Redis: config.RedisConfig{KeyPrefix: tt.prefix},
			})
			require.NoError(t, err)

			assert.Equal(t, tt.want, client.Key(tt.parts...))
		})
	}
}

func TestClient_HealthDisabled(t *testing.T) {
	h := disabledClient(t).Health(context.Background())

	assert.False(t, h.Enabled)
	assert.True(t, h.Healthy())
	assert.Equal(t, "stockboard", h.Prefix)
	assert.Zero(t, h.Keys)
}

func TestNew_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, &config.Config{
		Redis: config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: "1"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
