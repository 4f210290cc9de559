// Package analysis 编排一次分析请求：取数、画像推断、快速/深度备忘录与历史
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/equitymind-ai/equitymind/internal/marketdata"
	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/profile"
	"github.com/equitymind-ai/equitymind/internal/storage"
	"github.com/equitymind-ai/equitymind/internal/workflow"
	"github.com/equitymind-ai/equitymind/pkg/config"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
	"github.com/equitymind-ai/equitymind/pkg/llm"
	"github.com/equitymind-ai/equitymind/pkg/metrics"
	"github.com/equitymind-ai/equitymind/pkg/tracing"
)

// 降级原因
const (
	ReasonDeepDisabled    = "DEEP_MODE_DISABLED"
	ReasonRunnerUnhealthy = "WORKFLOW_ENGINE_UNAVAILABLE"
)

const defaultHistoryLimit = 20

// AnalyzeRequest 分析请求
type AnalyzeRequest struct {
	Ticker      string            `json:"ticker" binding:"required,ticker"`
	Mode        memo.Mode         `json:"mode" binding:"required,research_mode"`
	UserQuery   string            `json:"userQuery" binding:"required,max=2000"`
	PeerTickers []string          `json:"peerTickers" binding:"max=5,dive,ticker"`
	Context     map[string]string `json:"context"`
}

// ClarifyRequest 澄清问题请求
type ClarifyRequest struct {
	Ticker    string    `json:"ticker" binding:"required,ticker"`
	Mode      memo.Mode `json:"mode" binding:"required,research_mode"`
	UserQuery string    `json:"userQuery" binding:"max=2000"`
}

// ClarifyResponse 澄清问题
type ClarifyResponse struct {
	Questions []memo.ClarifyQuestion `json:"questions"`
}

// MetricsResolver 公司指标解析
type MetricsResolver interface {
	Resolve(ctx context.Context, ticker string) (*marketdata.Profile, error)
}

// Store 历史与用户画像存储
type Store interface {
	SaveAnalysis(ctx context.Context, item storage.HistoryItem) error
	History(ctx context.Context, limit int) ([]storage.HistoryItem, error)
	StudiedTickers(ctx context.Context) ([]string, error)
	Profile(ctx context.Context) (profile.UserProfile, error)
	UpdateProfile(ctx context.Context, patch profile.Patch) (profile.UserProfile, error)
}

// TapeSource 行情条
type TapeSource interface {
	Current(ctx context.Context) *marketdata.Tape
}

// Service 分析服务
type Service struct {
	resolver  MetricsResolver
	store     Store
	builder   *memo.Builder
	deep      DeepRunner
	generator llm.Generator
	tape      TapeSource
	cfg       config.AnalysisConfig
	logger    *zap.Logger
}

// Option 服务选项
type Option func(*Service)

// WithDeepRunner 深度模式执行器，缺省时深度请求降级为快速模式
func WithDeepRunner(r DeepRunner) Option {
	return func(s *Service) { s.deep = r }
}

// WithGenerator 澄清问题使用的 LLM
func WithGenerator(g llm.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithTickerTape 行情条数据源
func WithTickerTape(t TapeSource) Option {
	return func(s *Service) { s.tape = t }
}

// NewService 创建分析服务
func NewService(resolver MetricsResolver, store Store, builder *memo.Builder, cfg config.AnalysisConfig, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = memo.NewBuilder(nil)
	}
	s := &Service{
		resolver: resolver,
		store:    store,
		builder:  builder,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "analysis")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze 生成投资备忘录
// 快速模式在进程内完成；深度模式交给 DeepRunner，由工作流自行写入历史
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (_ *memo.InvestmentMemo, err error) {
	start := time.Now()
	ticker := marketdata.NormalizeTicker(req.Ticker)
	mode := req.Mode

	ctx, span := tracing.StartSpan(ctx, "analysis.Analyze")
	defer span.End()
	tracing.SetAttributes(ctx, tracing.TickerKey.String(ticker), tracing.ModeKey.String(string(mode)))

	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
			tracing.RecordError(ctx, err)
		}
		metrics.AnalysisDuration.WithLabelValues(string(mode), status).Observe(time.Since(start).Seconds())
	}()

	if err := validateAnalyze(ticker, req); err != nil {
		return nil, err
	}

	logger := s.logger.With(zap.String("ticker", ticker), zap.String("mode", string(mode)))

	if mode == memo.ModeQuick && s.cfg.QuickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QuickTimeout)
		defer cancel()
	}

	prof, err := s.resolver.Resolve(ctx, ticker)
	if err != nil {
		return nil, apperrors.FromClassified(err)
	}

	user, err := s.learnProfile(ctx, req.UserQuery)
	if err != nil {
		logger.Warn("Profile update skipped", zap.Error(err))
	}

	in := memo.QuickInput{Ticker: ticker, Query: req.UserQuery, Metrics: prof.Metrics, Source: prof.Source}

	var m *memo.InvestmentMemo
	switch mode {
	case memo.ModeQuick:
		m = s.builder.Quick(in)
		s.saveHistory(ctx, m)
	case memo.ModeDeep:
		m, err = s.runDeep(ctx, req, ticker, user, in)
		if err != nil {
			logger.Error("Deep analysis failed", zap.Error(err))
			return nil, apperrors.FromClassified(err)
		}
	}

	metrics.SentimentTotal.WithLabelValues(string(m.Mode), string(m.OverallSentiment)).Inc()
	metrics.ConfidenceScore.WithLabelValues(string(m.Mode), string(prof.Source)).Observe(float64(m.ConfidenceScore.Overall))

	logger.Info("Analysis completed",
		zap.String("memo_id", m.ID),
		zap.String("sentiment", string(m.OverallSentiment)),
		zap.Int("confidence", m.ConfidenceScore.Overall),
		zap.String("source", string(prof.Source)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

func validateAnalyze(ticker string, req AnalyzeRequest) error {
	switch {
	case ticker == "":
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "ticker is required")
	case !req.Mode.Valid():
		return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("unknown research mode %q", req.Mode))
	case strings.TrimSpace(req.UserQuery) == "":
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "userQuery is required")
	}
	return nil
}

// learnProfile 从问题中推断偏好并持久化
func (s *Service) learnProfile(ctx context.Context, query string) (profile.UserProfile, error) {
	user, err := s.store.Profile(ctx)
	if err != nil {
		return user, err
	}
	patch := profile.InferPreferences(query, user)
	if patch.Empty() {
		return user, nil
	}
	updated, err := s.store.UpdateProfile(ctx, patch)
	if err != nil {
		return user, err
	}
	s.logger.Debug("Profile preferences inferred", zap.Strings("kpis", updated.PreferredKPIs))
	return updated, nil
}

func (s *Service) runDeep(ctx context.Context, req AnalyzeRequest, ticker string, user profile.UserProfile, in memo.QuickInput) (*memo.InvestmentMemo, error) {
	if s.deep == nil {
		m := s.builder.Degraded(in, ReasonDeepDisabled)
		s.saveHistory(ctx, m)
		return m, nil
	}

	if s.cfg.DeepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DeepTimeout)
		defer cancel()
	}

	m, err := s.deep.RunDeep(ctx, workflow.DeepMemoInput{
		Ticker:   ticker,
		Query:    req.UserQuery,
		Peers:    req.PeerTickers,
		Context:  req.Context,
		Profile:  user,
		MaxPeers: s.cfg.MaxPeers,
	})
	if errors.Is(err, ErrRunnerUnavailable) {
		s.logger.Warn("Workflow engine unreachable, degrading to quick mode", zap.Error(err))
		m = s.builder.Degraded(in, ReasonRunnerUnhealthy)
		s.saveHistory(ctx, m)
		return m, nil
	}
	return m, err
}

func (s *Service) saveHistory(ctx context.Context, m *memo.InvestmentMemo) {
	if err := s.store.SaveAnalysis(ctx, storage.FromMemo(m)); err != nil {
		s.logger.Warn("Failed to save history", zap.String("memo_id", m.ID), zap.Error(err))
	}
}

// Clarify 生成澄清问题，模型不可用时返回默认问题
func (s *Service) Clarify(ctx context.Context, req ClarifyRequest) ClarifyResponse {
	ticker := marketdata.NormalizeTicker(req.Ticker)
	if s.generator == nil {
		return ClarifyResponse{Questions: memo.DefaultQuestions()}
	}

	ctx, span := tracing.StartSpan(ctx, "analysis.Clarify")
	defer span.End()

	if s.cfg.QuickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QuickTimeout)
		defer cancel()
	}

	resp, err := s.generator.Generate(ctx, llm.Request{
		Mode:        llm.ModeQuick,
		Prompt:      memo.ClarifyPrompt(ticker, req.Mode, req.UserQuery),
		Temperature: 0.4,
		MaxTokens:   800,
	})
	if err != nil {
		s.logger.Warn("Clarify generation failed, using default questions", zap.String("ticker", ticker), zap.Error(err))
		return ClarifyResponse{Questions: memo.DefaultQuestions()}
	}
	return ClarifyResponse{Questions: memo.ParseQuestions(resp.Text)}
}

// History 最近的分析记录
func (s *Service) History(ctx context.Context, limit int) ([]storage.HistoryItem, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	items, err := s.store.History(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return items, nil
}

// Profile 当前用户画像
func (s *Service) Profile(ctx context.Context) (profile.UserProfile, error) {
	p, err := s.store.Profile(ctx)
	if err != nil {
		return p, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return p, nil
}

// UpdateProfile 合并画像补丁
func (s *Service) UpdateProfile(ctx context.Context, patch profile.Patch) (profile.UserProfile, error) {
	p, err := s.store.UpdateProfile(ctx, patch)
	if err != nil {
		return p, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return p, nil
}

// Recommendations 基于历史推荐下一步研究的代码
func (s *Service) Recommendations(ctx context.Context, current string) ([]string, error) {
	studied, err := s.store.StudiedTickers(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, err)
	}
	return profile.NextRecommendations(studied, marketdata.NormalizeTicker(current)), nil
}

// Metrics 单个公司的指标画像
func (s *Service) Metrics(ctx context.Context, ticker string) (*marketdata.Profile, error) {
	ticker = marketdata.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "ticker is required")
	}
	p, err := s.resolver.Resolve(ctx, ticker)
	if err != nil {
		return nil, apperrors.FromClassified(err)
	}
	return p, nil
}

// TickerTape 当前行情条
func (s *Service) TickerTape(ctx context.Context) *marketdata.Tape {
	if s.tape == nil {
		return marketdata.FallbackTape(time.Now())
	}
	return s.tape.Current(ctx)
}
