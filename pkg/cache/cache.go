package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache 字符串键值缓存，RedisCache 与 MemoryCache 均实现
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// 缓存键
const (
	MetricsKeyFmt = "company:%s:metrics"
	TickerTapeKey = "market:ticker_tape"
)

// MetricsKey 公司财务指标缓存键
func MetricsKey(ticker string) string {
	return fmt.Sprintf(MetricsKeyFmt, ticker)
}

// GetJSON 读取并解码 JSON，未命中返回 false
func GetJSON(ctx context.Context, c Cache, key string, v interface{}) (bool, error) {
	raw, err := c.Get(ctx, key)
	if err != nil || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// SetJSON 编码为 JSON 后写入
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, string(data), ttl)
}

// cleanupInterval 进程内缓存清理过期键的周期
const cleanupInterval = time.Minute

// MemoryCache 进程内缓存，未启用 Redis 时使用
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache 创建进程内缓存，后台定期清理过期键
func NewMemoryCache() *MemoryCache {
	return newMemoryCache(cleanupInterval)
}

func newMemoryCache(cleanup time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(gocache.NoExpiration, cleanup)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return "", nil
	}
	s, _ := v.(string)
	return s, nil
}

// Set ttl <= 0 时不过期
func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.items.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

// Len 当前保存的键数，包含尚未清理的过期键
func (m *MemoryCache) Len() int {
	return m.items.ItemCount()
}
