// 深度备忘录主工作流
// 协调数据获取、同业对比、模型生成与历史写入
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/equitymind-ai/equitymind/internal/activity"
	"github.com/equitymind-ai/equitymind/internal/marketdata"
	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/profile"
	"github.com/equitymind-ai/equitymind/internal/scoring"
	"github.com/equitymind-ai/equitymind/internal/storage"
	"github.com/equitymind-ai/equitymind/pkg/errors"
)

// DeepMemoWorkflowName 工作流注册名
const DeepMemoWorkflowName = "DeepMemoWorkflow"

// ProgressQuery 进度查询名
const ProgressQuery = "progress"

// 工作流步骤
const (
	StepFetchProfile = "FetchProfile"
	StepPeers        = "PeerComparison"
	StepGenerate     = "GenerateDeepMemo"
	StepDegrade      = "BuildQuickMemo"
	StepSaveHistory  = "SaveHistory"
)

const totalSteps = 4

// DeepMemoInput 工作流输入
type DeepMemoInput struct {
	Ticker  string              `json:"ticker"`
	Query   string              `json:"query"`
	Peers   []string            `json:"peers,omitempty"`
	Context map[string]string   `json:"context,omitempty"`
	Profile profile.UserProfile `json:"profile"`
	// MaxPeers 为 0 时使用 MaxPeers 常量
	MaxPeers int `json:"max_peers,omitempty"`
}

// ProgressInfo 进度信息 (用于 Query)
type ProgressInfo struct {
	CurrentStep    string   `json:"current_step"`
	CompletedSteps []string `json:"completed_steps"`
	TotalSteps     int      `json:"total_steps"`
	Progress       float64  `json:"progress"`
	Degraded       bool     `json:"degraded"`
}

// DeepMemoWorkflow 深度模式备忘录工作流
// 模型不可用等可恢复错误降级为规则引擎备忘录，其余错误执行补偿后失败
func DeepMemoWorkflow(ctx workflow.Context, input DeepMemoInput) (*memo.InvestmentMemo, error) {
	logger := workflow.GetLogger(ctx)
	ticker := marketdata.NormalizeTicker(input.Ticker)
	logger.Info("Starting DeepMemo Workflow", "ticker", ticker)

	saga := NewSaga()

	var currentStep string
	completedSteps := make([]string, 0, totalSteps)
	degraded := false

	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (ProgressInfo, error) {
		return ProgressInfo{
			CurrentStep:    currentStep,
			CompletedSteps: completedSteps,
			TotalSteps:     totalSteps,
			Progress:       float64(len(completedSteps)) / float64(totalSteps) * 100,
			Degraded:       degraded,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set query handler: %w", err)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        1 * time.Minute,
			MaximumAttempts:        5,
			NonRetryableErrorTypes: []string{errors.TypeFatal, errors.TypeValidation},
		},
	})

	// ============== Step 1: 公司指标 ==============
	currentStep = StepFetchProfile

	var primary marketdata.Profile
	if err := workflow.ExecuteActivity(ctx, activity.FetchProfileName,
		activity.FetchProfileInput{Ticker: ticker}).Get(ctx, &primary); err != nil {
		logger.Error("FetchProfile failed", "error", err)
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	completedSteps = append(completedSteps, StepFetchProfile)
	saga.AddCompensation("metrics-cache", evictMetrics(ticker))

	// ============== Step 2: 同业对比 (子工作流) ==============
	currentStep = StepPeers

	requested := input.Peers
	if len(requested) == 0 {
		requested = primary.DefaultPeers
	}
	peerTickers := SelectPeers(ticker, requested, input.MaxPeers)

	var peers []scoring.FinancialMetrics
	if len(peerTickers) > 0 {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("peers-%s-%s", ticker, workflow.GetInfo(ctx).WorkflowExecution.RunID),
		})
		if err := workflow.ExecuteChildWorkflow(childCtx, PeerComparisonWorkflow,
			PeerComparisonInput{Ticker: ticker, Peers: peerTickers}).Get(ctx, &peers); err != nil {
			logger.Warn("Peer comparison failed, using reference data", "error", err)
			peers = make([]scoring.FinancialMetrics, 0, len(peerTickers))
			for _, p := range peerTickers {
				peers = append(peers, marketdata.Reference(p))
			}
		}
	}
	completedSteps = append(completedSteps, StepPeers)

	// ============== Step 3: 模型生成 ==============
	currentStep = StepGenerate

	// 模型调用期间无法心跳，只依赖 StartToClose
	genCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    2,
			NonRetryableErrorTypes: []string{
				errors.TypeFatal, errors.TypeValidation, errors.TypeLLMUnavailable,
			},
		},
	})

	var result activity.MemoResult
	genErr := workflow.ExecuteActivity(genCtx, activity.GenerateDeepMemoName, activity.GenerateDeepMemoInput{
		Ticker:  ticker,
		Query:   input.Query,
		Profile: input.Profile,
		Metrics: primary.Metrics,
		Source:  primary.Source,
		Peers:   peers,
		Context: input.Context,
	}).Get(ctx, &result)

	if genErr != nil {
		classified := errors.ClassifyError(genErr)
		if classified.Level >= errors.L2Intervention {
			logger.Error("GenerateDeepMemo failed, compensating", "code", classified.Code, "error", genErr)
			if failed := saga.Execute(ctx); len(failed) > 0 {
				logger.Error("Compensation incomplete", "failed_steps", failed)
			}
			return nil, fmt.Errorf("generate deep memo: %w", genErr)
		}

		logger.Warn("GenerateDeepMemo unavailable, degrading to quick mode", "code", classified.Code)
		currentStep = StepDegrade
		degraded = true
		if err := workflow.ExecuteActivity(ctx, activity.BuildQuickMemoName, activity.BuildQuickMemoInput{
			Ticker:  ticker,
			Query:   input.Query,
			Metrics: primary.Metrics,
			Source:  primary.Source,
			Reason:  classified.Code,
		}).Get(ctx, &result); err != nil {
			return nil, fmt.Errorf("build quick memo: %w", err)
		}
	}
	completedSteps = append(completedSteps, StepGenerate)

	// ============== Step 4: 历史 ==============
	currentStep = StepSaveHistory

	if err := workflow.ExecuteActivity(ctx, activity.SaveHistoryName,
		activity.SaveHistoryInput{Item: storage.FromMemo(result.Memo)}).Get(ctx, nil); err != nil {
		logger.Warn("SaveHistory failed", "error", err)
	} else {
		completedSteps = append(completedSteps, StepSaveHistory)
	}
	currentStep = ""

	logger.Info("DeepMemo Workflow completed",
		"ticker", ticker,
		"mode", result.Memo.Mode,
		"sentiment", result.Memo.OverallSentiment,
		"degraded", degraded,
		"completed_steps", completedSteps,
	)
	return result.Memo, nil
}
