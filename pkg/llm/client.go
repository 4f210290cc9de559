// LLM 客户端：主模型列表逐个降级，限流等待后重试一次，最后切换备用供应商
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/equitymind-ai/equitymind/pkg/config"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
	"github.com/equitymind-ai/equitymind/pkg/metrics"
	"github.com/equitymind-ai/equitymind/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Mode 决定使用的模型列表
type Mode string

const (
	ModeQuick Mode = "quick"
	ModeDeep  Mode = "deep"
)

// Request 生成请求
type Request struct {
	Mode        Mode
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Response 生成结果
type Response struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Provider 单个 LLM 供应商
type Provider interface {
	Name() string
	Generate(ctx context.Context, model string, req Request) (*Response, error)
}

// Generator 由 Client 实现，供上层依赖
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Client 带模型降级的 LLM 客户端
type Client struct {
	primary       Provider
	fallback      Provider
	fallbackModel string
	quickModels   []string
	deepModels    []string
	retryWait     time.Duration
	limiter       *rate.Limiter
	logger        *zap.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithFallback 设置备用供应商
func WithFallback(p Provider, model string) Option {
	return func(c *Client) {
		c.fallback = p
		c.fallbackModel = model
	}
}

// WithLimiter 替换默认限速器
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient 创建 LLM 客户端
func NewClient(cfg config.LLMConfig, primary Provider, logger *zap.Logger, opts ...Option) *Client {
	perMinute := cfg.RateLimit.RequestsPerMinute
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		primary:     primary,
		quickModels: cfg.QuickModels,
		deepModels:  cfg.DeepModels,
		retryWait:   cfg.RetryWait,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger.With(zap.String("component", "llm")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig 根据配置创建 Gemini 主供应商与可选的 Claude 备用供应商
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" && !(cfg.Fallback.Enabled && cfg.Fallback.APIKey != "") {
		return nil, fmt.Errorf("%w: no LLM API key configured", apperrors.ErrConfigInvalid)
	}

	var opts []Option
	if cfg.Fallback.Enabled && cfg.Fallback.APIKey != "" {
		opts = append(opts, WithFallback(NewClaudeProvider(cfg.Fallback.APIKey), cfg.Fallback.Model))
	}

	var primary Provider
	if cfg.APIKey != "" {
		gemini, err := NewGeminiProvider(ctx, cfg.APIKey)
		if err != nil {
			return nil, err
		}
		primary = gemini
	}
	return NewClient(cfg, primary, logger, opts...), nil
}

// Generate 按模式的模型列表依次尝试
// 限流：等待 retryWait 后对同一模型重试一次，重试失败跳到下一个
// 模型不可用：跳到下一个；首次调用的其他错误直接返回
func (c *Client) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "llm.generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.mode", string(req.Mode)))

	models := c.quickModels
	if req.Mode == ModeDeep {
		models = c.deepModels
	}

	var lastErr error
	if c.primary != nil {
		for _, model := range models {
			resp, err := c.tryModel(ctx, c.primary, model, req)
			if err == nil {
				span.SetAttributes(attribute.String("llm.model", resp.Model))
				return resp, nil
			}
			lastErr = err

			switch {
			case errors.Is(err, apperrors.ErrModelUnavailable), errors.Is(err, apperrors.ErrRateLimited):
				continue
			default:
				tracing.RecordError(ctx, err)
				return nil, err
			}
		}
	}

	if c.fallback != nil {
		from := "none"
		if len(models) > 0 {
			from = models[len(models)-1]
		}
		metrics.LLMFallbacks.WithLabelValues(from, "provider").Inc()
		c.logger.Warn("primary models exhausted, using fallback provider",
			zap.String("provider", c.fallback.Name()),
			zap.String("model", c.fallbackModel),
			zap.Error(lastErr))

		resp, err := c.call(ctx, c.fallback, c.fallbackModel, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}

	err := fmt.Errorf("%w: all models failed: %v", apperrors.ErrLLMUnavailable, lastErr)
	tracing.RecordError(ctx, err)
	return nil, err
}

// tryModel 调用单个模型，限流时等待后重试一次
// 重试仍失败时返回可跳过的错误，ctx 结束时返回 ctx 错误
func (c *Client) tryModel(ctx context.Context, p Provider, model string, req Request) (*Response, error) {
	resp, err := c.call(ctx, p, model, req)
	if err == nil || !errors.Is(err, apperrors.ErrRateLimited) {
		if errors.Is(err, apperrors.ErrModelUnavailable) {
			metrics.LLMFallbacks.WithLabelValues(model, "unavailable").Inc()
			c.logger.Warn("model unavailable, trying next", zap.String("model", model))
		}
		return resp, err
	}

	c.logger.Warn("rate limited, waiting before retry",
		zap.String("model", model),
		zap.Duration("wait", c.retryWait))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.retryWait):
	}

	resp, err = c.call(ctx, p, model, req)
	if err == nil || ctx.Err() != nil {
		return resp, err
	}

	// 等待后仍失败的模型一律跳过，由下一个模型接手
	metrics.LLMFallbacks.WithLabelValues(model, "retry_failed").Inc()
	c.logger.Warn("model still failing after retry, trying next",
		zap.String("model", model),
		zap.Error(err))
	if errors.Is(err, apperrors.ErrRateLimited) || errors.Is(err, apperrors.ErrModelUnavailable) {
		return nil, err
	}
	return nil, fmt.Errorf("%w after retry: %w", apperrors.ErrRateLimited, err)
}

func (c *Client) call(ctx context.Context, p Provider, model string, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.Generate(ctx, model, req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.LLMLatency.WithLabelValues(model, "error").Observe(elapsed.Seconds())
		return nil, classify(model, err)
	}

	resp.Latency = elapsed
	resp.Model = model
	resp.Provider = p.Name()
	metrics.LLMLatency.WithLabelValues(model, "success").Observe(elapsed.Seconds())
	metrics.LLMTokenUsage.WithLabelValues(model, "prompt").Add(float64(resp.PromptTokens))
	metrics.LLMTokenUsage.WithLabelValues(model, "completion").Add(float64(resp.CompletionTokens))
	return resp, nil
}

func classify(model string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case IsRateLimitError(err):
		return fmt.Errorf("%s: %w: %v", model, apperrors.ErrRateLimited, err)
	case IsModelUnavailableError(err):
		return fmt.Errorf("%s: %w: %v", model, apperrors.ErrModelUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", model, err)
	}
}

// IsRateLimitError 判断是否为 429 / 配额错误
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperrors.ErrRateLimited) {
		return true
	}
	return containsAny(err.Error(), "429", "resource_exhausted", "quota", "rate limit", "too many requests")
}

// IsModelUnavailableError 判断是否为 404 / 模型不存在
func IsModelUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperrors.ErrModelUnavailable) {
		return true
	}
	return containsAny(err.Error(), "404", "not found", "not a valid model", "invalid model", "no endpoints")
}

func containsAny(s string, needles ...string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
