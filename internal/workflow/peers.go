// 同业对比子工作流
// 并行获取每家同业公司的指标，单家失败时退回参考数据
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/equitymind-ai/equitymind/internal/activity"
	"github.com/equitymind-ai/equitymind/internal/marketdata"
	"github.com/equitymind-ai/equitymind/internal/scoring"
)

// MaxPeers 默认参与对比的同业上限
const MaxPeers = 3

// PeerComparisonInput 同业对比输入
type PeerComparisonInput struct {
	Ticker string   `json:"ticker"`
	Peers  []string `json:"peers"`
}

// SelectPeers 优先使用请求中的同业，否则取默认同业；去重、排除自身并截断到 limit
func SelectPeers(ticker string, requested []string, limit int) []string {
	if limit <= 0 {
		limit = MaxPeers
	}
	ticker = marketdata.NormalizeTicker(ticker)
	candidates := requested
	if len(candidates) == 0 {
		candidates = marketdata.DefaultPeers(ticker)
	}

	seen := map[string]bool{ticker: true}
	out := make([]string, 0, limit)
	for _, p := range candidates {
		p = marketdata.NormalizeTicker(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

// PeerComparisonWorkflow 同业对比子工作流，结果顺序与输入一致
func PeerComparisonWorkflow(ctx workflow.Context, input PeerComparisonInput) ([]scoring.FinancialMetrics, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting Peer Comparison Workflow", "ticker", input.Ticker, "peers", input.Peers)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        2 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        2,
			NonRetryableErrorTypes: []string{"FatalError", "ValidationError"},
		},
	})

	results := make([]scoring.FinancialMetrics, len(input.Peers))
	selector := workflow.NewSelector(ctx)
	for i, peer := range input.Peers {
		idx, ticker := i, peer
		future := workflow.ExecuteActivity(ctx, activity.FetchProfileName, activity.FetchProfileInput{Ticker: ticker})
		selector.AddFuture(future, func(f workflow.Future) {
			var p marketdata.Profile
			if err := f.Get(ctx, &p); err != nil {
				logger.Warn("Peer fetch failed, using reference data", "peer", ticker, "error", err)
				results[idx] = marketdata.Reference(ticker)
				return
			}
			results[idx] = p.Metrics
		})
	}
	for range input.Peers {
		selector.Select(ctx)
	}

	logger.Info("Peer Comparison Workflow completed", "ticker", input.Ticker, "count", len(results))
	return results, nil
}
