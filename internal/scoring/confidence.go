package scoring

import (
	"fmt"
	"strings"
)

// ScoreConfidence 根据数据完整度、来源可靠性与矛盾惩罚计算置信度
// 快速模式与深度模式共用，覆盖 LLM 自报的置信度
func (e *Engine) ScoreConfidence(m FinancialMetrics, discrepancies []Discrepancy, source DataSource) ConfidenceScore {
	cc := e.cfg.Confidence

	present := 0
	for _, f := range cc.KeyFields {
		if m.Field(f) != nil {
			present++
		}
	}
	completeness := int(roundHalfUp(float64(present) / float64(len(cc.KeyFields)) * 100))

	reliability := cc.MockReliability
	if source == SourceLive {
		reliability = cc.LiveReliability
	}

	penalty := 0
	for _, d := range discrepancies {
		switch d.Severity {
		case SeverityHigh:
			penalty += cc.HighPenalty
		case SeverityMedium:
			penalty += cc.MediumPenalty
		}
	}

	return e.combine(completeness, reliability, penalty, source)
}

func (e *Engine) combine(completeness, reliability, penalty int, source DataSource) ConfidenceScore {
	cc := e.cfg.Confidence
	raw := float64(completeness)*cc.CompletenessWeight + float64(reliability)*cc.ReliabilityWeight - float64(penalty)
	overall := int(roundHalfUp(raw))
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	var label string
	switch {
	case overall >= cc.VeryHighAt:
		label = "Very High"
	case overall >= cc.HighAt:
		label = "High"
	case overall >= cc.MediumAt:
		label = "Medium"
	default:
		label = "Low"
	}

	sourceText := "Reference data"
	if source == SourceLive {
		sourceText = "Live API"
	}
	parts := []string{
		fmt.Sprintf("Data completeness: %d%%", completeness),
		"Source reliability: " + sourceText,
	}
	if penalty > 0 {
		parts = append(parts, fmt.Sprintf("Discrepancy penalty: -%dpts", penalty))
	}

	return ConfidenceScore{
		Overall:              overall,
		DataCompleteness:     completeness,
		SourceReliability:    reliability,
		ContradictionPenalty: penalty,
		Label:                label,
		Explanation:          strings.Join(parts, " | "),
	}
}
