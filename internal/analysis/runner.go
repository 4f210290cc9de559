package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/workflow"
	"github.com/equitymind-ai/equitymind/pkg/metrics"
)

// ErrRunnerUnavailable 工作流引擎无法启动执行
var ErrRunnerUnavailable = errors.New("deep runner unavailable")

// DeepRunner 执行深度模式备忘录
type DeepRunner interface {
	RunDeep(ctx context.Context, input workflow.DeepMemoInput) (*memo.InvestmentMemo, error)
}

// TemporalRunner 通过 Temporal 启动 DeepMemoWorkflow 并同步等待结果
type TemporalRunner struct {
	client    client.Client
	taskQueue string
	logger    *zap.Logger
}

// NewTemporalRunner 创建 Temporal 执行器
func NewTemporalRunner(c client.Client, taskQueue string, logger *zap.Logger) *TemporalRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemporalRunner{client: c, taskQueue: taskQueue, logger: logger.With(zap.String("component", "deep-runner"))}
}

// RunDeep 启动工作流，执行超时取 ctx 的截止时间
func (r *TemporalRunner) RunDeep(ctx context.Context, input workflow.DeepMemoInput) (*memo.InvestmentMemo, error) {
	start := time.Now()
	opts := client.StartWorkflowOptions{
		ID:                    fmt.Sprintf("deep-memo-%s-%s", strings.ToLower(input.Ticker), uuid.NewString()),
		TaskQueue:             r.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}
	if deadline, ok := ctx.Deadline(); ok {
		opts.WorkflowExecutionTimeout = time.Until(deadline)
	}

	run, err := r.client.ExecuteWorkflow(ctx, opts, workflow.DeepMemoWorkflowName, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunnerUnavailable, err)
	}
	r.logger.Info("Deep memo workflow started",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
		zap.String("ticker", input.Ticker),
	)

	metrics.ActiveWorkflows.Inc()
	defer metrics.ActiveWorkflows.Dec()

	var m memo.InvestmentMemo
	err = run.Get(ctx, &m)

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.WorkflowDuration.WithLabelValues(workflow.DeepMemoWorkflowName, status).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			r.cancel(run)
			return nil, fmt.Errorf("workflow %s: %w", run.GetID(), ctx.Err())
		}
		return nil, fmt.Errorf("workflow %s: %w", run.GetID(), err)
	}
	return &m, nil
}

// cancel 调用方已放弃等待时取消执行，避免 Worker 继续消耗模型配额
func (r *TemporalRunner) cancel(run client.WorkflowRun) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.CancelWorkflow(ctx, run.GetID(), run.GetRunID()); err != nil {
		r.logger.Warn("Failed to cancel abandoned workflow", zap.String("workflow_id", run.GetID()), zap.Error(err))
	}
}
