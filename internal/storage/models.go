// 持久化：分析历史与用户画像（gorm + sqlite）
package storage

import (
	"time"

	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/profile"
	"github.com/equitymind-ai/equitymind/internal/scoring"
)

// HistoryItem 分析历史条目
type HistoryItem struct {
	ID               string            `json:"id"`
	Ticker           string            `json:"ticker"`
	CompanyName      string            `json:"companyName"`
	Mode             memo.Mode         `json:"mode"`
	AnalysisDate     string            `json:"analysisDate"`
	OverallSentiment scoring.Sentiment `json:"overallSentiment"`
	ConfidenceScore  int               `json:"confidenceScore"`
}

// FromMemo 提取备忘录的历史摘要
func FromMemo(m *memo.InvestmentMemo) HistoryItem {
	return HistoryItem{
		ID:               m.ID,
		Ticker:           m.Ticker,
		CompanyName:      m.CompanyName,
		Mode:             m.Mode,
		AnalysisDate:     m.AnalysisDate,
		OverallSentiment: m.OverallSentiment,
		ConfidenceScore:  m.ConfidenceScore.Overall,
	}
}

// historyRecord history 表，Seq 决定新旧顺序
type historyRecord struct {
	Seq              uint   `gorm:"primaryKey;autoIncrement"`
	ID               string `gorm:"uniqueIndex;not null"`
	Ticker           string `gorm:"index;not null"`
	CompanyName      string
	Mode             string `gorm:"not null"`
	AnalysisDate     string
	OverallSentiment string
	ConfidenceScore  int
	CreatedAt        time.Time
}

func (historyRecord) TableName() string { return "analysis_history" }

func (r historyRecord) item() HistoryItem {
	return HistoryItem{
		ID:               r.ID,
		Ticker:           r.Ticker,
		CompanyName:      r.CompanyName,
		Mode:             memo.Mode(r.Mode),
		AnalysisDate:     r.AnalysisDate,
		OverallSentiment: scoring.Sentiment(r.OverallSentiment),
		ConfidenceScore:  r.ConfidenceScore,
	}
}

// profileID 单用户部署，画像只有一行
const profileID = 1

// profileRecord user_profile 表
type profileRecord struct {
	ID                uint     `gorm:"primaryKey"`
	RiskTolerance     string   `gorm:"not null"`
	PreferredKPIs     []string `gorm:"serializer:json"`
	SectorsOfInterest []string `gorm:"serializer:json"`
	GeographicFocus   []string `gorm:"serializer:json"`
	InvestmentHorizon string   `gorm:"not null"`
	LastUpdated       time.Time
}

func (profileRecord) TableName() string { return "user_profile" }

func (r profileRecord) profile() profile.UserProfile {
	return profile.UserProfile{
		RiskTolerance:     r.RiskTolerance,
		PreferredKPIs:     nonNil(r.PreferredKPIs),
		SectorsOfInterest: nonNil(r.SectorsOfInterest),
		GeographicFocus:   nonNil(r.GeographicFocus),
		InvestmentHorizon: r.InvestmentHorizon,
		LastUpdated:       r.LastUpdated.UTC(),
	}
}

func newProfileRecord(p profile.UserProfile) profileRecord {
	return profileRecord{
		ID:                profileID,
		RiskTolerance:     p.RiskTolerance,
		PreferredKPIs:     p.PreferredKPIs,
		SectorsOfInterest: p.SectorsOfInterest,
		GeographicFocus:   p.GeographicFocus,
		InvestmentHorizon: p.InvestmentHorizon,
		LastUpdated:       p.LastUpdated,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// allModels 需要迁移的模型
var allModels = []interface{}{
	&historyRecord{},
	&profileRecord{},
}
