// Activity 输入输出类型
package activity

import (
	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/profile"
	"github.com/equitymind-ai/equitymind/internal/scoring"
	"github.com/equitymind-ai/equitymind/internal/storage"
)

// Activity 注册名
const (
	FetchProfileName              = "FetchProfileActivity"
	GenerateDeepMemoName          = "GenerateDeepMemoActivity"
	BuildQuickMemoName            = "BuildQuickMemoActivity"
	SaveHistoryName               = "SaveHistoryActivity"
	CleanupCacheName              = "CleanupCacheActivity"
	NotifyCompensationFailureName = "NotifyCompensationFailure"
)

// CacheKindMetrics 公司指标缓存
const CacheKindMetrics = "metrics"

// FetchProfileInput 获取公司画像输入
type FetchProfileInput struct {
	Ticker string `json:"ticker"`
}

// GenerateDeepMemoInput 深度备忘录生成输入
type GenerateDeepMemoInput struct {
	Ticker  string                     `json:"ticker"`
	Query   string                     `json:"query"`
	Profile profile.UserProfile        `json:"profile"`
	Metrics scoring.FinancialMetrics   `json:"metrics"`
	Source  scoring.DataSource         `json:"source"`
	Peers   []scoring.FinancialMetrics `json:"peers"`
	Context map[string]string          `json:"context,omitempty"`
}

// BuildQuickMemoInput 快速备忘录输入；Reason 非空时表示由深度模式降级
type BuildQuickMemoInput struct {
	Ticker  string                   `json:"ticker"`
	Query   string                   `json:"query"`
	Metrics scoring.FinancialMetrics `json:"metrics"`
	Source  scoring.DataSource       `json:"source"`
	Reason  string                   `json:"reason,omitempty"`
}

// SaveHistoryInput 写入历史输入
type SaveHistoryInput struct {
	Item storage.HistoryItem `json:"item"`
}

// MemoResult 备忘录结果
type MemoResult struct {
	Memo *memo.InvestmentMemo `json:"memo"`
	// ParseFailed 模型输出无法解析，Memo 为兜底内容
	ParseFailed bool `json:"parse_failed"`
}
