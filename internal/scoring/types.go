package scoring

// Direction 信号方向
type Direction int

const (
	Bearish Direction = -1
	Neutral Direction = 0
	Bullish Direction = 1
)

// Sentiment 总体情绪
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// DataSource 数据来源
type DataSource string

const (
	SourceLive DataSource = "live"
	SourceMock DataSource = "mock"
)

// Severity 严重程度
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Signal 单个指标派生出的评分单元
type Signal struct {
	Metric    string    `json:"metric"`
	Label     string    `json:"label"`
	Value     string    `json:"value"`
	Direction Direction `json:"direction"`
}

// Discrepancy 管理层表述与数据证据之间的矛盾
type Discrepancy struct {
	Category string   `json:"category"` // earnings, guidance, growth, risk, other
	Claim    string   `json:"claim"`
	Evidence string   `json:"evidence"`
	Severity Severity `json:"severity"`
}

// ConfidenceScore 置信度评分
type ConfidenceScore struct {
	Overall              int    `json:"overall"`
	DataCompleteness     int    `json:"dataCompleteness"`
	SourceReliability    int    `json:"sourceReliability"`
	ContradictionPenalty int    `json:"contradictionPenalty"`
	Label                string `json:"label"`
	Explanation          string `json:"explanation"`
}

// Thesis 多头或空头论点
type Thesis struct {
	Points     []string `json:"points"`
	KeyMetrics []string `json:"keyMetrics"`
	Catalysts  []string `json:"catalysts,omitempty"`
}

// KeyRisk 关键风险
type KeyRisk struct {
	Risk       string   `json:"risk"`
	Severity   Severity `json:"severity"`
	Mitigation string   `json:"mitigation,omitempty"`
}

// ValuationInsight 估值判断
type ValuationInsight struct {
	Summary                 string `json:"summary"`
	Methodology             string `json:"methodology"`
	FairValueRange          string `json:"fairValueRange,omitempty"`
	CurrentPriceVsFairValue string `json:"currentPriceVsFairValue,omitempty"`
	Note                    string `json:"note,omitempty"`
}

// ScenarioCase 单个情景
type ScenarioCase struct {
	RevenueGrowth   float64 `json:"revenueGrowth"`
	MarginExpansion float64 `json:"marginExpansion"`
	ImpliedValue    string  `json:"impliedValue,omitempty"`
	KeyDriver       string  `json:"keyDriver"`
	Probability     int     `json:"probability"`
}

// ScenarioAnalysis 牛市 / 基准 / 熊市情景
type ScenarioAnalysis struct {
	Bull            ScenarioCase `json:"bull"`
	Base            ScenarioCase `json:"base"`
	Bear            ScenarioCase `json:"bear"`
	SensitivityNote string       `json:"sensitivityNote,omitempty"`
}
