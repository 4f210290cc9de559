package scoring

// RuleKind 信号规则类型
type RuleKind string

const (
	// RuleDirect 数值越高越看多
	RuleDirect RuleKind = "direct"
	// RuleInverted 估值倍数，过高或过低均看空
	RuleInverted RuleKind = "inverted"
	// RuleLeverage 杠杆区间，[Low, High] 看多，超过 Ceiling 看空
	RuleLeverage RuleKind = "leverage"
	// RuleSign 仅看正负号
	RuleSign RuleKind = "sign"
)

// ValueFormat 标签中数值的格式
type ValueFormat string

const (
	FormatPercent  ValueFormat = "percent"
	FormatMultiple ValueFormat = "multiple"
	FormatBillions ValueFormat = "billions"
)

// SignalRule 单个指标的评分规则
type SignalRule struct {
	Metric  string // FinancialMetrics 的 JSON 字段名
	Title   string
	Suffix  string
	Kind    RuleKind
	Low     float64
	High    float64
	Ceiling float64 // 仅 RuleLeverage 使用
	Format  ValueFormat
}

// SentimentConfig 情绪分档
type SentimentConfig struct {
	BullishAt int
	BearishAt int
}

// ThesisConfig 多空论点阈值
type ThesisConfig struct {
	TopSignals       int
	KeyMetrics       int
	DividendYieldMin float64
	FCFYieldMin      float64
	DiscountToHigh   float64
	BetaMax          float64
	LeverageMax      float64
	BullCatalysts    []string
	BearCatalysts    []string
}

// RiskConfig 关键风险阈值
type RiskConfig struct {
	MaxRisks        int
	LeverageMax     float64
	GrowthFloor     float64
	PEMax           float64
	FCFFloor        float64
	BetaMax         float64
	CurrentRatioMin float64
}

// ValuationConfig 估值分档
type ValuationConfig struct {
	UndervaluedBelow float64
	OvervaluedAbove  float64
}

// ScenarioParams 单个情景参数
type ScenarioParams struct {
	GrowthMultiplier float64
	MarginExpansion  float64
	Probability      int
	KeyDriver        string
}

// ScenarioConfig 情景推演参数
type ScenarioConfig struct {
	DefaultGrowth   float64
	Bull            ScenarioParams
	Base            ScenarioParams
	Bear            ScenarioParams
	ImpliedValue    string
	SensitivityNote string
}

// ConfidenceConfig 置信度模型参数
type ConfidenceConfig struct {
	KeyFields          []string
	LiveReliability    int
	MockReliability    int
	HighPenalty        int
	MediumPenalty      int
	CompletenessWeight float64
	ReliabilityWeight  float64
	VeryHighAt         int
	HighAt             int
	MediumAt           int
}

// Config 评分引擎的不可变配置
type Config struct {
	Signals    []SignalRule
	Sentiment  SentimentConfig
	Thesis     ThesisConfig
	Risk       RiskConfig
	Valuation  ValuationConfig
	Scenario   ScenarioConfig
	Confidence ConfidenceConfig
}

// DefaultConfig 返回默认评分配置，每次调用都是新副本
func DefaultConfig() Config {
	return Config{
		Signals: []SignalRule{
			{Metric: "revenueGrowthYoY", Title: "Revenue growth", Suffix: " YoY", Kind: RuleDirect, Low: 5, High: 20, Format: FormatPercent},
			{Metric: "grossMargin", Title: "Gross margin", Kind: RuleDirect, Low: 20, High: 50, Format: FormatPercent},
			{Metric: "operatingMargin", Title: "Operating margin", Kind: RuleDirect, Low: 5, High: 20, Format: FormatPercent},
			{Metric: "netMargin", Title: "Net margin", Kind: RuleDirect, Low: 3, High: 15, Format: FormatPercent},
			{Metric: "roe", Title: "ROE", Kind: RuleDirect, Low: 8, High: 20, Format: FormatPercent},
			{Metric: "freeCashFlow", Title: "Free cash flow", Kind: RuleSign, Format: FormatBillions},
			{Metric: "peRatio", Title: "P/E ratio", Kind: RuleInverted, Low: 5, High: 35, Format: FormatMultiple},
			{Metric: "debtToEquity", Title: "Debt/Equity", Kind: RuleLeverage, Low: 0, High: 1, Ceiling: 2, Format: FormatMultiple},
			{Metric: "currentRatio", Title: "Current ratio", Kind: RuleDirect, Low: 1, High: 2, Format: FormatMultiple},
			{Metric: "evToEbitda", Title: "EV/EBITDA", Kind: RuleInverted, Low: 5, High: 20, Format: FormatMultiple},
		},
		Sentiment: SentimentConfig{BullishAt: 3, BearishAt: -3},
		Thesis: ThesisConfig{
			TopSignals:       3,
			KeyMetrics:       2,
			DividendYieldMin: 1,
			FCFYieldMin:      3,
			DiscountToHigh:   0.85,
			BetaMax:          1.5,
			LeverageMax:      1.5,
			BullCatalysts:    []string{"Earnings beat next quarter", "Sector re-rating", "Margin expansion"},
			BearCatalysts:    []string{"Revenue miss", "Rising interest rates", "Competitive pressure"},
		},
		Risk: RiskConfig{
			MaxRisks:        3,
			LeverageMax:     2,
			GrowthFloor:     0,
			PEMax:           50,
			FCFFloor:        0,
			BetaMax:         1.5,
			CurrentRatioMin: 1,
		},
		Valuation: ValuationConfig{UndervaluedBelow: 12, OvervaluedAbove: 30},
		Scenario: ScenarioConfig{
			DefaultGrowth:   5,
			Bull:            ScenarioParams{GrowthMultiplier: 1.5, MarginExpansion: 2, Probability: 30, KeyDriver: "Faster-than-expected revenue growth + margin expansion"},
			Base:            ScenarioParams{GrowthMultiplier: 1, MarginExpansion: 0, Probability: 50, KeyDriver: "Sustained current growth trajectory"},
			Bear:            ScenarioParams{GrowthMultiplier: 0.3, MarginExpansion: -2, Probability: 20, KeyDriver: "Macro headwinds or increased competition"},
			ImpliedValue:    "N/A - run Deep Mode",
			SensitivityNote: "Scenario assumes current cost structure and no major M&A.",
		},
		Confidence: ConfidenceConfig{
			KeyFields: []string{
				"revenue", "revenueGrowthYoY", "grossMargin", "operatingMargin", "netMargin",
				"ebitda", "peRatio", "roe", "freeCashFlow", "debtToEquity", "currentRatio",
			},
			LiveReliability:    85,
			MockReliability:    65,
			HighPenalty:        15,
			MediumPenalty:      5,
			CompletenessWeight: 0.4,
			ReliabilityWeight:  0.4,
			VeryHighAt:         80,
			HighAt:             65,
			MediumAt:           45,
		},
	}
}

func (c Config) clone() Config {
	out := c
	out.Signals = append([]SignalRule(nil), c.Signals...)
	out.Thesis.BullCatalysts = append([]string(nil), c.Thesis.BullCatalysts...)
	out.Thesis.BearCatalysts = append([]string(nil), c.Thesis.BearCatalysts...)
	out.Confidence.KeyFields = append([]string(nil), c.Confidence.KeyFields...)
	return out
}
