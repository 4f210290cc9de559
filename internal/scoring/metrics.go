// 快速模式信号评分引擎
// 将财务指标映射为情绪判断、多空论点、风险与置信度
package scoring

import "math"

// FinancialMetrics 单个公司的标准化财务快照
// 可选数值字段为 nil 表示未知，绝不以 0 代替
type FinancialMetrics struct {
	Ticker      string `json:"ticker"`
	CompanyName string `json:"companyName"`
	Sector      string `json:"sector"`
	Industry    string `json:"industry"`

	MarketCap         *float64 `json:"marketCap,omitempty"`
	Revenue           *float64 `json:"revenue,omitempty"`
	RevenueGrowthYoY  *float64 `json:"revenueGrowthYoY,omitempty"`
	GrossMargin       *float64 `json:"grossMargin,omitempty"`
	OperatingMargin   *float64 `json:"operatingMargin,omitempty"`
	NetMargin         *float64 `json:"netMargin,omitempty"`
	EBITDA            *float64 `json:"ebitda,omitempty"`
	EBITDAMargin      *float64 `json:"ebitdaMargin,omitempty"`
	EPS               *float64 `json:"eps,omitempty"`
	PERatio           *float64 `json:"peRatio,omitempty"`
	PBRatio           *float64 `json:"pbRatio,omitempty"`
	PSRatio           *float64 `json:"psRatio,omitempty"`
	EVToEBITDA        *float64 `json:"evToEbitda,omitempty"`
	ROE               *float64 `json:"roe,omitempty"`
	ROA               *float64 `json:"roa,omitempty"`
	DebtToEquity      *float64 `json:"debtToEquity,omitempty"`
	CurrentRatio      *float64 `json:"currentRatio,omitempty"`
	FreeCashFlow      *float64 `json:"freeCashFlow,omitempty"`
	FreeCashFlowYield *float64 `json:"freeCashFlowYield,omitempty"`
	DividendYield     *float64 `json:"dividendYield,omitempty"`
	FiftyTwoWeekHigh  *float64 `json:"fiftyTwoWeekHigh,omitempty"`
	FiftyTwoWeekLow   *float64 `json:"fiftyTwoWeekLow,omitempty"`
	CurrentPrice      *float64 `json:"currentPrice,omitempty"`
	Beta              *float64 `json:"beta,omitempty"`

	DataTimestamp string `json:"dataTimestamp,omitempty"`
}

// Float 返回指向 v 的指针
func Float(v float64) *float64 {
	return &v
}

// Field 按 JSON 字段名取可选数值
func (m FinancialMetrics) Field(name string) *float64 {
	if p, ok := m.fields()[name]; ok {
		return *p
	}
	return nil
}

// Set 按 JSON 字段名写入数值，字段未知时返回 false
func (m *FinancialMetrics) Set(name string, v float64) bool {
	p, ok := m.fields()[name]
	if !ok {
		return false
	}
	*p = Float(v)
	return true
}

// Normalize 清除 NaN / Inf，保证可选字段要么是有限数要么缺失
func (m *FinancialMetrics) Normalize() {
	for _, p := range m.fields() {
		if *p != nil && (math.IsNaN(**p) || math.IsInf(**p, 0)) {
			*p = nil
		}
	}
}

// PresentCount 统计已填充的可选数值字段数量
func (m FinancialMetrics) PresentCount() int {
	n := 0
	for _, p := range m.fields() {
		if *p != nil {
			n++
		}
	}
	return n
}

// Overlay 用 src 中非空的字段覆盖 m
func (m *FinancialMetrics) Overlay(src FinancialMetrics) {
	if src.Ticker != "" {
		m.Ticker = src.Ticker
	}
	if src.CompanyName != "" {
		m.CompanyName = src.CompanyName
	}
	if src.Sector != "" {
		m.Sector = src.Sector
	}
	if src.Industry != "" {
		m.Industry = src.Industry
	}
	if src.DataTimestamp != "" {
		m.DataTimestamp = src.DataTimestamp
	}
	srcFields := src.fields()
	for name, p := range m.fields() {
		if v := *srcFields[name]; v != nil {
			*p = Float(*v)
		}
	}
}

func (m *FinancialMetrics) fields() map[string]**float64 {
	return map[string]**float64{
		"marketCap":         &m.MarketCap,
		"revenue":           &m.Revenue,
		"revenueGrowthYoY":  &m.RevenueGrowthYoY,
		"grossMargin":       &m.GrossMargin,
		"operatingMargin":   &m.OperatingMargin,
		"netMargin":         &m.NetMargin,
		"ebitda":            &m.EBITDA,
		"ebitdaMargin":      &m.EBITDAMargin,
		"eps":               &m.EPS,
		"peRatio":           &m.PERatio,
		"pbRatio":           &m.PBRatio,
		"psRatio":           &m.PSRatio,
		"evToEbitda":        &m.EVToEBITDA,
		"roe":               &m.ROE,
		"roa":               &m.ROA,
		"debtToEquity":      &m.DebtToEquity,
		"currentRatio":      &m.CurrentRatio,
		"freeCashFlow":      &m.FreeCashFlow,
		"freeCashFlowYield": &m.FreeCashFlowYield,
		"dividendYield":     &m.DividendYield,
		"fiftyTwoWeekHigh":  &m.FiftyTwoWeekHigh,
		"fiftyTwoWeekLow":   &m.FiftyTwoWeekLow,
		"currentPrice":      &m.CurrentPrice,
		"beta":              &m.Beta,
	}
}
