package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitymind-ai/equitymind/pkg/config"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
)

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	time.Sleep(40 * time.Millisecond)
	got, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, c.Set(ctx, "forever", "v", 0))
	got, _ = c.Get(ctx, "forever")
	assert.Equal(t, "v", got)
}

func TestMemoryCache_SetAfterExpiryIsKept(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, "company:AAPL:metrics", "stale", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get(ctx, "company:AAPL:metrics")
		}()
	}
	require.NoError(t, c.Set(ctx, "company:AAPL:metrics", "fresh", time.Hour))
	wg.Wait()

	got, err := c.Get(ctx, "company:AAPL:metrics")
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestMemoryCache_SweepsUnreadExpiredKeys(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache(5 * time.Millisecond)
	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("company:T%d:metrics", i), "v", time.Millisecond))
	}

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	type payload struct {
		Ticker string  `json:"ticker"`
		PE     float64 `json:"peRatio"`
	}

	var out payload
	hit, err := GetJSON(ctx, c, MetricsKey("AAPL"), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, SetJSON(ctx, c, MetricsKey("AAPL"), payload{Ticker: "AAPL", PE: 32.5}, 0))
	hit, err = GetJSON(ctx, c, MetricsKey("AAPL"), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 32.5, out.PE)
	assert.Equal(t, "company:AAPL:metrics", MetricsKey("AAPL"))

	require.NoError(t, c.Set(ctx, "bad", "{not json", 0))
	_, err = GetJSON(ctx, c, "bad", &out)
	assert.Error(t, err)
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(config.RedisConfig{
		Address:     "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCacheUnavailable)
	assert.Equal(t, apperrors.L1Recoverable, apperrors.ClassifyError(err).Level)
}
