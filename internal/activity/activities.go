// Activity 实现
// 深度模式各步骤的业务逻辑：数据获取、模型调用、历史写入与缓存补偿
package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/equitymind-ai/equitymind/internal/marketdata"
	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/storage"
	"github.com/equitymind-ai/equitymind/pkg/config"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
	"github.com/equitymind-ai/equitymind/pkg/llm"
	"github.com/equitymind-ai/equitymind/pkg/metrics"
)

// Resolver 公司数据解析
type Resolver interface {
	Resolve(ctx context.Context, ticker string) (*marketdata.Profile, error)
	Evict(ctx context.Context, ticker string) error
}

// HistoryStore 历史写入
type HistoryStore interface {
	SaveAnalysis(ctx context.Context, item storage.HistoryItem) error
}

// Activities 包含所有 Activity 的依赖
type Activities struct {
	resolver  Resolver
	generator llm.Generator
	builder   *memo.Builder
	history   HistoryStore
	llmCfg    config.LLMConfig
	logger    *zap.Logger
}

// NewActivities 创建 Activities 实例
func NewActivities(resolver Resolver, generator llm.Generator, builder *memo.Builder, history HistoryStore, llmCfg config.LLMConfig, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = memo.NewBuilder(nil)
	}
	return &Activities{
		resolver:  resolver,
		generator: generator,
		builder:   builder,
		history:   history,
		llmCfg:    llmCfg,
		logger:    logger,
	}
}

// observe 记录 Activity 耗时
func observe(name string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "failure"
	}
	metrics.ActivityDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
}

// FetchProfileActivity 获取公司指标，数据源失败时已在 Resolver 内降级为参考数据
func (a *Activities) FetchProfileActivity(ctx context.Context, input FetchProfileInput) (_ *marketdata.Profile, err error) {
	logger := a.logger.With(zap.String("activity", "FetchProfile"), zap.String("ticker", input.Ticker))
	defer observe("FetchProfile", time.Now(), &err)

	activity.RecordHeartbeat(ctx, "Resolving company metrics...")

	p, err := a.resolver.Resolve(ctx, input.Ticker)
	if err != nil {
		logger.Error("Failed to resolve metrics", zap.Error(err))
		return nil, apperrors.ToApplicationError(err)
	}

	logger.Info("Metrics resolved",
		zap.String("source", string(p.Source)),
		zap.Int("present_fields", p.Metrics.PresentCount()),
	)
	return p, nil
}

// GenerateDeepMemoActivity 调用模型生成深度备忘录，并用评分器重算置信度
func (a *Activities) GenerateDeepMemoActivity(ctx context.Context, input GenerateDeepMemoInput) (_ *MemoResult, err error) {
	logger := a.logger.With(zap.String("activity", "GenerateDeepMemo"), zap.String("ticker", input.Ticker))
	defer observe("GenerateDeepMemo", time.Now(), &err)

	if a.generator == nil {
		return nil, apperrors.ToApplicationError(fmt.Errorf("no LLM configured: %w", apperrors.ErrLLMUnavailable))
	}

	activity.RecordHeartbeat(ctx, "Generating deep memo...")

	prompt := memo.DeepUserMessage(memo.DeepPrompt{
		Ticker:  input.Ticker,
		Query:   input.Query,
		Profile: input.Profile,
		Metrics: input.Metrics,
		Peers:   input.Peers,
		Source:  input.Source,
		Context: input.Context,
	})

	resp, err := a.generator.Generate(ctx, llm.Request{
		Mode:        llm.ModeDeep,
		System:      memo.SystemPrompt(memo.ModeDeep, input.Profile),
		Prompt:      prompt,
		Temperature: float32(a.llmCfg.Temperature),
		MaxTokens:   a.llmCfg.MaxTokens,
	})
	if err != nil {
		logger.Error("LLM generation failed", zap.Error(err))
		return nil, apperrors.ToApplicationError(err)
	}

	activity.RecordHeartbeat(ctx, "Parsing deep memo...")

	result := &MemoResult{}
	m, parseErr := a.builder.ParseDeep(resp.Text, input.Ticker, input.Query, input.Metrics)
	if parseErr != nil {
		logger.Warn("Falling back to neutral memo", zap.Error(parseErr), zap.String("model", resp.Model))
		result.ParseFailed = true
	}
	result.Memo = a.builder.FinalizeDeep(m, input.Metrics, input.Peers, input.Source)

	logger.Info("Deep memo generated",
		zap.String("model", resp.Model),
		zap.String("sentiment", string(result.Memo.OverallSentiment)),
		zap.Int("confidence", result.Memo.ConfidenceScore.Overall),
	)
	return result, nil
}

// BuildQuickMemoActivity 规则引擎生成备忘录，用于深度模式降级
func (a *Activities) BuildQuickMemoActivity(ctx context.Context, input BuildQuickMemoInput) (_ *MemoResult, err error) {
	defer observe("BuildQuickMemo", time.Now(), &err)

	in := memo.QuickInput{Ticker: input.Ticker, Query: input.Query, Metrics: input.Metrics, Source: input.Source}
	var m *memo.InvestmentMemo
	if input.Reason != "" {
		m = a.builder.Degraded(in, input.Reason)
		a.logger.Warn("Deep memo degraded to quick mode",
			zap.String("ticker", input.Ticker),
			zap.String("reason", input.Reason))
	} else {
		m = a.builder.Quick(in)
	}
	return &MemoResult{Memo: m}, nil
}

// SaveHistoryActivity 写入分析历史
func (a *Activities) SaveHistoryActivity(ctx context.Context, input SaveHistoryInput) (err error) {
	defer observe("SaveHistory", time.Now(), &err)

	if a.history == nil {
		return nil
	}
	if err := a.history.SaveAnalysis(ctx, input.Item); err != nil {
		a.logger.Error("Failed to save history", zap.String("id", input.Item.ID), zap.Error(err))
		return err
	}
	return nil
}

// CleanupCacheActivity 清除缓存数据 (Saga 补偿)
func (a *Activities) CleanupCacheActivity(ctx context.Context, ticker string, kind string) (err error) {
	defer observe("CleanupCache", time.Now(), &err)

	if kind != CacheKindMetrics {
		return apperrors.ToApplicationError(fmt.Errorf("unknown cache kind %q: %w", kind, apperrors.ErrValidationFailed))
	}
	if err := a.resolver.Evict(ctx, ticker); err != nil {
		return fmt.Errorf("evict %s metrics: %w", ticker, errors.Join(apperrors.ErrCacheUnavailable, err))
	}
	a.logger.Info("Cache cleaned", zap.String("ticker", ticker), zap.String("kind", kind))
	return nil
}

// NotifyCompensationFailure 记录补偿失败，需人工介入
func (a *Activities) NotifyCompensationFailure(ctx context.Context, stepName string, errorMsg string) error {
	a.logger.Error("Compensation failed, manual intervention required",
		zap.String("step", stepName),
		zap.String("error", errorMsg),
	)
	metrics.ErrorsTotal.WithLabelValues(apperrors.L2Intervention.String(), "COMPENSATION_FAILED").Inc()
	return nil
}
