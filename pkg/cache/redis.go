// Redis 缓存实现
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/equitymind-ai/equitymind/pkg/config"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
	"github.com/equitymind-ai/equitymind/pkg/metrics"
)

// KeyPrefix 多个服务共享同一 Redis 时的命名空间
const KeyPrefix = "equitymind:"

// RedisCache 指标与行情快照的共享缓存，API 与 Worker 通过它看到同一份数据
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 连接 Redis，不可达时返回 ErrCacheUnavailable 由调用方退回进程内缓存
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Address, errors.Join(apperrors.ErrCacheUnavailable, err))
	}
	return &RedisCache{client: client}, nil
}

// Get 未命中返回空字符串
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, KeyPrefix+key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		record("get", "miss")
		return "", nil
	case err != nil:
		record("get", "error")
		return "", unavailable("get", key, err)
	}
	record("get", "hit")
	return val, nil
}

// Set ttl 为 0 时不过期
func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, KeyPrefix+key, value, ttl).Err(); err != nil {
		record("set", "error")
		return unavailable("set", key, err)
	}
	record("set", "ok")
	return nil
}

// Delete 键不存在不算错误
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, KeyPrefix+key).Result()
	if err != nil {
		record("delete", "error")
		return unavailable("delete", key, err)
	}
	if n == 0 {
		record("delete", "miss")
	} else {
		record("delete", "ok")
	}
	return nil
}

// Ping 就绪检查
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 关闭连接
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func record(op, result string) {
	metrics.CacheOperations.WithLabelValues(op, result).Inc()
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("redis %s %s: %w", op, key, errors.Join(apperrors.ErrCacheUnavailable, err))
}
