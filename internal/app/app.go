// Package app 组装服务端与 Worker 共享的依赖
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/equitymind-ai/equitymind/internal/marketdata"
	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/scoring"
	"github.com/equitymind-ai/equitymind/internal/server"
	"github.com/equitymind-ai/equitymind/internal/storage"
	"github.com/equitymind-ai/equitymind/pkg/cache"
	"github.com/equitymind-ai/equitymind/pkg/config"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
	"github.com/equitymind-ai/equitymind/pkg/llm"
)

// Deps 共享依赖
type Deps struct {
	Config   *config.Config
	Cache    cache.Cache
	Store    *storage.Store
	Resolver *marketdata.Resolver
	Builder  *memo.Builder
	// LLM 未配置密钥时为 nil
	LLM        *llm.Client
	HTTPClient *http.Client

	redis *cache.RedisCache
}

// New 创建共享依赖；Redis 不可用时退回进程内缓存，LLM 未配置时深度模式降级
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	engine, err := scoring.NewEngine(scoring.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("scoring engine: %w", err)
	}

	d := &Deps{
		Config:     cfg,
		Builder:    memo.NewBuilder(engine),
		HTTPClient: &http.Client{Timeout: cfg.MarketData.HTTPTimeout},
	}

	d.Cache = cache.NewMemoryCache()
	if cfg.Storage.Redis.Enabled {
		rc, err := cache.NewRedisCache(cfg.Storage.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, using in-process cache", zap.Error(err))
		} else {
			d.redis = rc
			d.Cache = rc
		}
	}

	db, err := storage.Open(cfg.Storage.Database.DSN)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Store = storage.NewStore(db, cfg.Storage.Database.MaxHistory, cfg.Analysis.Profile, logger)

	md := cfg.MarketData
	d.Resolver = marketdata.NewResolver(logger,
		marketdata.WithFinnhub(marketdata.NewFinnhubProvider(d.HTTPClient, md.FinnhubURL, md.FinnhubKey)),
		marketdata.WithFundamentals(marketdata.NewAlphaVantageProvider(d.HTTPClient, md.AlphaVantageURL, md.AlphaVantageKey)),
		marketdata.WithYahoo(marketdata.NewYahooProvider(d.HTTPClient, md.YahooURL)),
		marketdata.WithCache(d.Cache, md.CacheTTL),
	)

	client, err := llm.NewFromConfig(ctx, cfg.LLM, logger)
	switch {
	case err == nil:
		d.LLM = client
	case errors.Is(err, apperrors.ErrConfigInvalid):
		logger.Warn("LLM not configured, deep mode will degrade to quick mode", zap.Error(err))
	default:
		d.Close()
		return nil, err
	}

	return d, nil
}

// Generator 返回可用的 LLM，未配置时为 nil 接口
func (d *Deps) Generator() llm.Generator {
	if d.LLM == nil {
		return nil
	}
	return d.LLM
}

// ReadinessChecks 存储与缓存的就绪检查
func (d *Deps) ReadinessChecks() map[string]server.ReadinessCheck {
	checks := map[string]server.ReadinessCheck{
		"database": d.Store.Ping,
	}
	if d.redis != nil {
		checks["redis"] = d.redis.Ping
	}
	return checks
}

// Close 释放连接
func (d *Deps) Close() {
	if d.Store != nil {
		_ = d.Store.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}
