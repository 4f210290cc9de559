package scoring

import "fmt"

const (
	bullFallback = "Requires deeper analysis - run Deep Mode for full thesis"
	bearFallback = "Valuation appears reasonable relative to sector"
)

// BullPoints 多头论点：前 N 个看多信号加上股息、FCF 收益率与回撤补充
func (e *Engine) BullPoints(m FinancialMetrics, signals []Signal) []string {
	tc := e.cfg.Thesis
	points := Highlights(signals, tc.TopSignals)

	if m.DividendYield != nil && *m.DividendYield > tc.DividendYieldMin {
		points = append(points, fmt.Sprintf("Dividend yield of %s provides income cushion", pct(m.DividendYield)))
	}
	if m.FreeCashFlowYield != nil && *m.FreeCashFlowYield > tc.FCFYieldMin {
		points = append(points, fmt.Sprintf("Strong FCF yield of %s indicates cash generation", pct(m.FreeCashFlowYield)))
	}
	if price, high := m.CurrentPrice, m.FiftyTwoWeekHigh; price != nil && high != nil && *price > 0 && *high > 0 &&
		*price < *high*tc.DiscountToHigh {
		discount := (1 - *price / *high) * 100
		points = append(points, fmt.Sprintf("Trades %.0f%% below 52-week high - potential mean-reversion", discount))
	}

	if len(points) == 0 {
		return []string{bullFallback}
	}
	return points
}

// BearPoints 空头论点：前 N 个看空信号加上 beta 与杠杆补充
func (e *Engine) BearPoints(m FinancialMetrics, signals []Signal) []string {
	tc := e.cfg.Thesis
	points := Concerns(signals, tc.TopSignals)

	if m.Beta != nil && *m.Beta > tc.BetaMax {
		points = append(points, fmt.Sprintf("Beta of %.2f indicates high market sensitivity", *m.Beta))
	}
	if m.DebtToEquity != nil && *m.DebtToEquity > tc.LeverageMax {
		points = append(points, fmt.Sprintf("Elevated D/E of %s raises refinancing risk", multiple(m.DebtToEquity)))
	}

	if len(points) == 0 {
		return []string{bearFallback}
	}
	return points
}

// Theses 组装多空论点及其关键指标与催化剂
func (e *Engine) Theses(m FinancialMetrics, signals []Signal) (bull, bear Thesis) {
	tc := e.cfg.Thesis
	bull = Thesis{
		Points:     e.BullPoints(m, signals),
		KeyMetrics: Highlights(signals, tc.KeyMetrics),
		Catalysts:  append([]string(nil), tc.BullCatalysts...),
	}
	bear = Thesis{
		Points:     e.BearPoints(m, signals),
		KeyMetrics: Concerns(signals, tc.KeyMetrics),
		Catalysts:  append([]string(nil), tc.BearCatalysts...),
	}
	return bull, bear
}

// KeyRisks 按优先级评估独立的风险规则，截断到 MaxRisks
func (e *Engine) KeyRisks(m FinancialMetrics) []KeyRisk {
	rc := e.cfg.Risk
	risks := make([]KeyRisk, 0, 6)

	if m.DebtToEquity != nil && *m.DebtToEquity > rc.LeverageMax {
		risks = append(risks, KeyRisk{
			Risk:       fmt.Sprintf("High leverage (D/E: %s) - interest rate sensitive", multiple(m.DebtToEquity)),
			Severity:   SeverityHigh,
			Mitigation: "Review debt maturity schedule and interest coverage",
		})
	}
	if m.RevenueGrowthYoY != nil && *m.RevenueGrowthYoY < rc.GrowthFloor {
		risks = append(risks, KeyRisk{
			Risk:       fmt.Sprintf("Revenue declining %s YoY - demand headwinds", pct(m.RevenueGrowthYoY)),
			Severity:   SeverityHigh,
			Mitigation: "Check segment trends and management guidance for a recovery path",
		})
	}
	if m.PERatio != nil && *m.PERatio > rc.PEMax {
		risks = append(risks, KeyRisk{
			Risk:       fmt.Sprintf("Elevated valuation (P/E: %s) leaves little room for misses", multiple(m.PERatio)),
			Severity:   SeverityMedium,
			Mitigation: "Size positions conservatively ahead of earnings",
		})
	}
	if m.FreeCashFlow != nil && *m.FreeCashFlow < rc.FCFFloor {
		risks = append(risks, KeyRisk{
			Risk:       "Negative free cash flow - depends on external financing",
			Severity:   SeverityMedium,
			Mitigation: "Monitor cash runway and dilution risk",
		})
	}
	if m.Beta != nil && *m.Beta > rc.BetaMax {
		risks = append(risks, KeyRisk{
			Risk:       fmt.Sprintf("High beta (%.2f) - volatile in market downturns", *m.Beta),
			Severity:   SeverityMedium,
			Mitigation: "Hedge or stage entries to manage drawdowns",
		})
	}
	if m.CurrentRatio != nil && *m.CurrentRatio < rc.CurrentRatioMin {
		risks = append(risks, KeyRisk{
			Risk:       fmt.Sprintf("Low current ratio (%s) - near-term liquidity risk", multiple(m.CurrentRatio)),
			Severity:   SeverityHigh,
			Mitigation: "Verify credit facilities and working-capital cycle",
		})
	}

	if len(risks) == 0 {
		return []KeyRisk{{
			Risk:     "No immediate red flags - standard sector and macro risks apply",
			Severity: SeverityLow,
		}}
	}
	if len(risks) > rc.MaxRisks {
		risks = risks[:rc.MaxRisks]
	}
	return risks
}
