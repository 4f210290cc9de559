// Saga 补偿
// 深度备忘录失败时按 LIFO 顺序撤销已完成步骤的副作用
package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/equitymind-ai/equitymind/internal/activity"
)

// CompensationStep 补偿步骤
type CompensationStep struct {
	Name string
	Fn   func(ctx workflow.Context) error
}

// Saga 补偿管理器
type Saga struct {
	steps []CompensationStep
}

// NewSaga 创建补偿管理器
func NewSaga() *Saga {
	return &Saga{}
}

// AddCompensation 添加补偿步骤 (LIFO 顺序)
func (s *Saga) AddCompensation(name string, fn func(ctx workflow.Context) error) {
	s.steps = append([]CompensationStep{{Name: name, Fn: fn}}, s.steps...)
}

// Execute 依次执行补偿，单步失败通知人工后继续，返回失败步骤名
func (s *Saga) Execute(ctx workflow.Context) []string {
	logger := workflow.GetLogger(ctx)

	var failed []string
	for _, step := range s.steps {
		logger.Info("Executing compensation", "step", step.Name)

		if err := step.Fn(ctx); err != nil {
			logger.Error("Compensation failed", "step", step.Name, "error", err)
			failed = append(failed, step.Name)
			_ = workflow.ExecuteActivity(ctx, activity.NotifyCompensationFailureName, step.Name, err.Error()).Get(ctx, nil)
			continue
		}
		logger.Info("Compensation completed", "step", step.Name)
	}
	s.steps = nil
	return failed
}

// Len 返回补偿步骤数量
func (s *Saga) Len() int {
	return len(s.steps)
}

// evictMetrics 清除公司指标缓存
func evictMetrics(ticker string) func(ctx workflow.Context) error {
	return func(ctx workflow.Context) error {
		return workflow.ExecuteActivity(ctx, activity.CleanupCacheName, ticker, activity.CacheKindMetrics).Get(ctx, nil)
	}
}
