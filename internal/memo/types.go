// 投资备忘录：快速模式组装、深度模式解析与提示词构建
package memo

import (
	"github.com/equitymind-ai/equitymind/internal/scoring"
)

// Mode 研究模式
type Mode string

const (
	ModeQuick Mode = "quick"
	ModeDeep  Mode = "deep"
)

// Valid 是否为已知模式
func (m Mode) Valid() bool {
	return m == ModeQuick || m == ModeDeep
}

// BusinessOverview 业务概览
type BusinessOverview struct {
	Summary               string   `json:"summary"`
	CoreProducts          []string `json:"coreProducts"`
	CompetitiveAdvantages []string `json:"competitiveAdvantages"`
	ManagementHighlights  string   `json:"managementHighlights,omitempty"`
}

// FinancialPerformance 财务表现
type FinancialPerformance struct {
	Summary    string                   `json:"summary"`
	Highlights []string                 `json:"highlights"`
	Concerns   []string                 `json:"concerns"`
	Metrics    scoring.FinancialMetrics `json:"metrics"`
}

// PeerComparison 同业对比行
type PeerComparison struct {
	Ticker           string   `json:"ticker"`
	CompanyName      string   `json:"companyName"`
	PERatio          *float64 `json:"peRatio,omitempty"`
	EVToEBITDA       *float64 `json:"evToEbitda,omitempty"`
	RevenueGrowthYoY *float64 `json:"revenueGrowthYoY,omitempty"`
	GrossMargin      *float64 `json:"grossMargin,omitempty"`
	ROE              *float64 `json:"roe,omitempty"`
	DebtToEquity     *float64 `json:"debtToEquity,omitempty"`
	MarketCap        *float64 `json:"marketCap,omitempty"`
}

// InvestmentMemo 完整的投资备忘录
type InvestmentMemo struct {
	ID               string            `json:"id"`
	Ticker           string            `json:"ticker"`
	CompanyName      string            `json:"companyName"`
	AnalysisDate     string            `json:"analysisDate"`
	Mode             Mode              `json:"mode"`
	UserQuery        string            `json:"userQuery"`
	OverallSentiment scoring.Sentiment `json:"overallSentiment"`

	BusinessOverview     BusinessOverview          `json:"businessOverview"`
	FinancialPerformance FinancialPerformance      `json:"financialPerformance"`
	PeerComparison       []PeerComparison          `json:"peerComparison"`
	BullThesis           scoring.Thesis            `json:"bullThesis"`
	BearThesis           scoring.Thesis            `json:"bearThesis"`
	KeyRisks             []scoring.KeyRisk         `json:"keyRisks"`
	ScenarioAnalysis     *scoring.ScenarioAnalysis `json:"scenarioAnalysis,omitempty"`
	ValuationInsight     *scoring.ValuationInsight `json:"valuationInsight,omitempty"`
	ConfidenceScore      scoring.ConfidenceScore   `json:"confidenceScore"`

	Discrepancies        []scoring.Discrepancy `json:"discrepancies,omitempty"`
	Assumptions          []string              `json:"assumptions,omitempty"`
	DataSourcesUsed      []string              `json:"dataSourcesUsed,omitempty"`
	NextStepsRecommended []string              `json:"nextStepsRecommended,omitempty"`
}

// ClarifyQuestion 澄清问题
type ClarifyQuestion struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Type     string   `json:"type"` // text, select, multiselect
	Options  []string `json:"options,omitempty"`
}
