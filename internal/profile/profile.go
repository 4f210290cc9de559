// 用户画像：风险偏好、关注指标与投资期限，可从提问中自动推断
package profile

import (
	"strings"
	"time"

	"github.com/equitymind-ai/equitymind/pkg/config"
)

// 风险偏好
const (
	RiskConservative = "conservative"
	RiskModerate     = "moderate"
	RiskAggressive   = "aggressive"
)

// 投资期限
const (
	HorizonShort  = "short"
	HorizonMedium = "medium"
	HorizonLong   = "long"
)

// maxKPIs 推断后保留的关注指标上限
const maxKPIs = 6

// UserProfile 用户画像
type UserProfile struct {
	RiskTolerance     string    `json:"riskTolerance"`
	PreferredKPIs     []string  `json:"preferredKPIs"`
	SectorsOfInterest []string  `json:"sectorsOfInterest"`
	GeographicFocus   []string  `json:"geographicFocus"`
	InvestmentHorizon string    `json:"investmentHorizon"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// Patch 画像的部分更新，nil 字段保持不变
type Patch struct {
	RiskTolerance     *string  `json:"riskTolerance,omitempty" binding:"omitempty,risk_tolerance"`
	PreferredKPIs     []string `json:"preferredKPIs,omitempty" binding:"omitempty,max=10,dive,required"`
	SectorsOfInterest []string `json:"sectorsOfInterest,omitempty" binding:"omitempty,max=10,dive,required"`
	GeographicFocus   []string `json:"geographicFocus,omitempty" binding:"omitempty,max=10,dive,required"`
	InvestmentHorizon *string  `json:"investmentHorizon,omitempty" binding:"omitempty,horizon"`
}

// Empty 是否没有任何字段需要更新
func (p Patch) Empty() bool {
	return p.RiskTolerance == nil && p.PreferredKPIs == nil && p.SectorsOfInterest == nil &&
		p.GeographicFocus == nil && p.InvestmentHorizon == nil
}

// Default 根据配置生成默认画像
func Default(cfg config.ProfileConfig, now time.Time) UserProfile {
	return UserProfile{
		RiskTolerance:     cfg.RiskTolerance,
		PreferredKPIs:     append([]string{}, cfg.PreferredKPIs...),
		SectorsOfInterest: append([]string{}, cfg.SectorsOfInterest...),
		GeographicFocus:   append([]string{}, cfg.GeographicFocus...),
		InvestmentHorizon: cfg.InvestmentHorizon,
		LastUpdated:       now.UTC(),
	}
}

// Apply 合并 patch 并更新时间戳，不修改原画像
func Apply(p UserProfile, patch Patch, now time.Time) UserProfile {
	out := p
	if patch.RiskTolerance != nil {
		out.RiskTolerance = *patch.RiskTolerance
	}
	if patch.PreferredKPIs != nil {
		out.PreferredKPIs = append([]string{}, patch.PreferredKPIs...)
	}
	if patch.SectorsOfInterest != nil {
		out.SectorsOfInterest = append([]string{}, patch.SectorsOfInterest...)
	}
	if patch.GeographicFocus != nil {
		out.GeographicFocus = append([]string{}, patch.GeographicFocus...)
	}
	if patch.InvestmentHorizon != nil {
		out.InvestmentHorizon = *patch.InvestmentHorizon
	}
	out.LastUpdated = now.UTC()
	return out
}

var (
	aggressiveWords   = []string{"aggressive", "high growth", "speculative"}
	conservativeWords = []string{"conservative", "dividend", "safe"}
	shortWords        = []string{"short-term", "next quarter", "1 year"}
	longWords         = []string{"long-term", "5 year", "decade"}
)

// kpiKeywords 关注指标及其触发关键词，按顺序追加
var kpiKeywords = []struct {
	KPI      string
	Keywords []string
}{
	{"EBITDA", []string{"ebitda"}},
	{"Free Cash Flow", []string{"free cash flow", "fcf"}},
	{"ROE", []string{"roe", "return on equity"}},
	{"EPS", []string{"eps", "earnings per share"}},
	{"Revenue", []string{"revenue growth", "top-line"}},
	{"Margins", []string{"margin", "profitability"}},
}

// InferPreferences 从自然语言提问中推断画像更新
func InferPreferences(query string, p UserProfile) Patch {
	var patch Patch
	q := strings.ToLower(query)

	switch {
	case containsAny(q, aggressiveWords):
		patch.RiskTolerance = strPtr(RiskAggressive)
	case containsAny(q, conservativeWords):
		patch.RiskTolerance = strPtr(RiskConservative)
	}

	switch {
	case containsAny(q, shortWords):
		patch.InvestmentHorizon = strPtr(HorizonShort)
	case containsAny(q, longWords):
		patch.InvestmentHorizon = strPtr(HorizonLong)
	}

	kpis := append([]string{}, p.PreferredKPIs...)
	for _, k := range kpiKeywords {
		if containsAny(q, k.Keywords) && !contains(kpis, k.KPI) {
			kpis = append(kpis, k.KPI)
		}
	}
	if len(kpis) != len(p.PreferredKPIs) {
		if len(kpis) > maxKPIs {
			kpis = kpis[:maxKPIs]
		}
		patch.PreferredKPIs = kpis
	}
	return patch
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
