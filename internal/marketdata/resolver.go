package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/equitymind-ai/equitymind/internal/scoring"
	"github.com/equitymind-ai/equitymind/pkg/cache"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
	"github.com/equitymind-ai/equitymind/pkg/metrics"
	"github.com/equitymind-ai/equitymind/pkg/tracing"
)

// liveThreshold 实时数据至少需要的有效字段数（不含）
const liveThreshold = 3

// Profile 解析后的公司画像
type Profile struct {
	Metrics      scoring.FinancialMetrics `json:"metrics"`
	DefaultPeers []string                 `json:"defaultPeers"`
	Source       scoring.DataSource       `json:"source"`
}

// Resolver 合并多个数据源，失败时降级为参考数据
type Resolver struct {
	finnhub      MetricsProvider
	fundamentals FundamentalsProvider
	yahoo        MetricsProvider
	cache        cache.Cache
	ttl          time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// ResolverOption 可选依赖
type ResolverOption func(*Resolver)

// WithFinnhub 设置 Finnhub 数据源
func WithFinnhub(p MetricsProvider) ResolverOption {
	return func(r *Resolver) { r.finnhub = p }
}

// WithFundamentals 设置年报数据源
func WithFundamentals(p FundamentalsProvider) ResolverOption {
	return func(r *Resolver) { r.fundamentals = p }
}

// WithYahoo 设置带交易所后缀代码的数据源
func WithYahoo(p MetricsProvider) ResolverOption {
	return func(r *Resolver) { r.yahoo = p }
}

// WithCache 启用缓存
func WithCache(c cache.Cache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
		r.ttl = ttl
	}
}

// NewResolver 创建数据解析器，未配置任何数据源时只返回参考数据
func NewResolver(logger *zap.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		logger: logger.With(zap.String("component", "marketdata")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeTicker 去除空白并转为大写
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Resolve 先查缓存，再并发查询 Finnhub 与 Alpha Vantage
// 数据源错误一律降级为参考数据，仅空代码返回错误
func (r *Resolver) Resolve(ctx context.Context, ticker string) (*Profile, error) {
	t := NormalizeTicker(ticker)
	if t == "" {
		return nil, fmt.Errorf("%w: ticker is required", apperrors.ErrValidationFailed)
	}

	ctx, span := tracing.StartSpan(ctx, "marketdata.Resolve")
	defer span.End()
	tracing.SetAttributes(ctx, tracing.TickerKey.String(t))

	if p, ok := r.cached(ctx, t); ok {
		tracing.SetAttributes(ctx, tracing.CacheHitKey.Bool(true), tracing.SourceKey.String(string(p.Source)))
		return p, nil
	}

	m, source := r.fetch(ctx, t)
	if m.CompanyName == "" {
		m.CompanyName = t + " Corp"
	}
	if m.Sector == "" {
		m.Sector = "Unknown"
	}
	if m.Industry == "" {
		m.Industry = "Unknown"
	}
	m.Ticker = t
	m.Normalize()
	m.DataTimestamp = r.now().UTC().Format(time.RFC3339)

	p := &Profile{Metrics: m, DefaultPeers: DefaultPeers(t), Source: source}
	metrics.DataSourceTotal.WithLabelValues(string(source)).Inc()
	tracing.SetAttributes(ctx, tracing.CacheHitKey.Bool(false), tracing.SourceKey.String(string(source)))

	if r.cache != nil {
		if err := cache.SetJSON(ctx, r.cache, cache.MetricsKey(t), p, r.ttl); err != nil {
			r.logger.Warn("Failed to cache metrics", zap.String("ticker", t), zap.Error(err))
		}
	}
	return p, nil
}

// Evict 删除缓存的公司指标
func (r *Resolver) Evict(ctx context.Context, ticker string) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(ctx, cache.MetricsKey(NormalizeTicker(ticker)))
}

func (r *Resolver) cached(ctx context.Context, t string) (*Profile, bool) {
	if r.cache == nil {
		return nil, false
	}
	var p Profile
	hit, err := cache.GetJSON(ctx, r.cache, cache.MetricsKey(t), &p)
	if err != nil {
		r.logger.Warn("Metrics cache read failed", zap.String("ticker", t), zap.Error(err))
		return nil, false
	}
	if !hit {
		return nil, false
	}
	return &p, true
}

func (r *Resolver) fetch(ctx context.Context, t string) (scoring.FinancialMetrics, scoring.DataSource) {
	var (
		wg     sync.WaitGroup
		live   scoring.FinancialMetrics
		fund   Fundamentals
		liveOK bool
	)

	if r.finnhub != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := r.finnhub.Fetch(ctx, t)
			if err != nil {
				r.logger.Warn("Finnhub fetch failed", zap.String("ticker", t), zap.Error(err))
				return
			}
			live, liveOK = m, true
		}()
	}
	if r.fundamentals != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := r.fundamentals.Fundamentals(ctx, t)
			if err != nil {
				r.logger.Warn("Alpha Vantage fetch failed", zap.String("ticker", t), zap.Error(err))
				return
			}
			fund = f
		}()
	}
	wg.Wait()

	if liveOK && populated(live, live.CompanyName, live.Sector, live.Industry) > liveThreshold {
		m := Reference(t)
		m.Overlay(live)
		m.Revenue = fund.Revenue
		m.EBITDA = fund.EBITDA
		m.FreeCashFlow = fund.FreeCashFlow
		m.RevenueGrowthYoY = firstNonNil(fund.RevenueGrowthYoY, live.RevenueGrowthYoY)
		r.logger.Debug("Using live metrics", zap.String("ticker", t), zap.String("provider", r.finnhub.Name()))
		return m, scoring.SourceLive
	}

	if r.yahoo != nil && HasExchangeSuffix(t) {
		m, err := r.yahoo.Fetch(ctx, t)
		if err == nil && populated(m, m.CompanyName, m.Sector, m.Industry) > liveThreshold {
			out := Reference(t)
			out.Overlay(m)
			r.logger.Debug("Using live metrics", zap.String("ticker", t), zap.String("provider", r.yahoo.Name()))
			return out, scoring.SourceLive
		}
		if err != nil {
			r.logger.Warn("Yahoo fetch failed", zap.String("ticker", t), zap.Error(err))
		}
	}

	r.logger.Info("Falling back to reference metrics", zap.String("ticker", t))
	return Reference(t), scoring.SourceMock
}
