package memo

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/equitymind-ai/equitymind/internal/scoring"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
)

// DateLayout 备忘录日期格式，毫秒精度的 UTC ISO 8601
const DateLayout = "2006-01-02T15:04:05.000Z"

const maxPeerRows = 3

// Builder 组装备忘录
type Builder struct {
	engine *scoring.Engine
	newID  func() string
	now    func() time.Time
}

// Option Builder 选项
type Option func(*Builder)

// WithIDGenerator 替换 ID 生成器
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) { b.newID = fn }
}

// WithClock 替换时钟
func WithClock(fn func() time.Time) Option {
	return func(b *Builder) { b.now = fn }
}

// NewBuilder 创建备忘录组装器，engine 为 nil 时使用默认评分配置
func NewBuilder(engine *scoring.Engine, opts ...Option) *Builder {
	if engine == nil {
		engine = scoring.Default()
	}
	b := &Builder{engine: engine, newID: uuid.NewString, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Engine 返回评分引擎
func (b *Builder) Engine() *scoring.Engine { return b.engine }

// QuickInput 快速模式输入
type QuickInput struct {
	Ticker  string
	Query   string
	Metrics scoring.FinancialMetrics
	Source  scoring.DataSource
}

// Quick 完全基于规则生成快速模式备忘录，不调用模型
func (b *Builder) Quick(in QuickInput) *InvestmentMemo {
	m := in.Metrics
	ticker := strings.ToUpper(in.Ticker)
	res := b.engine.Analyze(m, nil, in.Source)

	companyName := m.CompanyName
	if companyName == "" {
		companyName = ticker
	}
	sector := m.Sector
	if sector == "" {
		sector = "the sector"
	}

	return &InvestmentMemo{
		ID:               b.newID(),
		Ticker:           ticker,
		CompanyName:      companyName,
		AnalysisDate:     b.date(),
		Mode:             ModeQuick,
		UserQuery:        in.Query,
		OverallSentiment: res.Sentiment,

		BusinessOverview: businessOverview(m, in.Query),
		FinancialPerformance: FinancialPerformance{
			Summary:    performanceSummary(m),
			Highlights: scoring.Highlights(res.Signals, 4),
			Concerns:   scoring.Concerns(res.Signals, 3),
			Metrics:    m,
		},
		PeerComparison:   []PeerComparison{},
		BullThesis:       res.Bull,
		BearThesis:       res.Bear,
		KeyRisks:         res.KeyRisks,
		ScenarioAnalysis: &res.Scenarios,
		ValuationInsight: &res.Valuation,
		ConfidenceScore:  res.Confidence,

		Discrepancies: []scoring.Discrepancy{},
		Assumptions: []string{
			"Based on latest available financial data",
			"Uses trailing twelve months (TTM) figures",
			"Run Deep Mode for forward-looking analysis and peer benchmarking",
		},
		DataSourcesUsed: DataSources(in.Source),
		NextStepsRecommended: []string{
			"Run Deep Mode for comprehensive DCF valuation and peer comparison",
			fmt.Sprintf("Review latest earnings call for %s", ticker),
			fmt.Sprintf("Check sector trends for %s", sector),
		},
	}
}

// Degraded 深度模式不可用时退化为快速模式备忘录，并在假设中注明原因
func (b *Builder) Degraded(in QuickInput, reason string) *InvestmentMemo {
	memo := b.Quick(in)
	note := "Deep Mode was unavailable; this memo was produced by the rule-based Quick Mode"
	if reason != "" {
		note += " (" + reason + ")"
	}
	memo.Assumptions = append([]string{note}, memo.Assumptions...)
	return memo
}

// DataSources 按数据来源列出引用的数据源
func DataSources(source scoring.DataSource) []string {
	if source == scoring.SourceLive {
		return []string{"Finnhub", "Alpha Vantage", "Live Market Data"}
	}
	return []string{"Reference Financial Data"}
}

// ParseDeep 解析模型输出的 JSON 备忘录
// 解析失败时返回基于 fallback 指标的中性备忘录，同时返回 ErrMemoParse
func (b *Builder) ParseDeep(raw, ticker, query string, fallback scoring.FinancialMetrics) (*InvestmentMemo, error) {
	ticker = strings.ToUpper(ticker)
	var memo InvestmentMemo
	if err := json.Unmarshal([]byte(StripFences(raw)), &memo); err != nil {
		return b.deepFallback(ticker, query, fallback), fmt.Errorf("%w: %v", apperrors.ErrMemoParse, err)
	}
	if memo.ID == "" {
		memo.ID = b.newID()
	}
	if memo.AnalysisDate == "" {
		memo.AnalysisDate = b.date()
	}
	if memo.Ticker == "" {
		memo.Ticker = ticker
	}
	if memo.UserQuery == "" {
		memo.UserQuery = query
	}
	if memo.CompanyName == "" {
		memo.CompanyName = fallback.CompanyName
	}
	if memo.OverallSentiment == "" {
		memo.OverallSentiment = scoring.SentimentNeutral
	}
	return &memo, nil
}

// FinalizeDeep 强制深度模式、用评分器重算置信度，并在模型未给出时补齐同业对比
func (b *Builder) FinalizeDeep(memo *InvestmentMemo, m scoring.FinancialMetrics, peers []scoring.FinancialMetrics, source scoring.DataSource) *InvestmentMemo {
	memo.Mode = ModeDeep
	memo.ConfidenceScore = b.engine.ScoreConfidence(m, memo.Discrepancies, source)
	if len(memo.PeerComparison) == 0 {
		memo.PeerComparison = PeerRows(peers)
	}
	return memo
}

// PeerRows 取前三个同业生成对比行
func PeerRows(peers []scoring.FinancialMetrics) []PeerComparison {
	n := len(peers)
	if n > maxPeerRows {
		n = maxPeerRows
	}
	rows := make([]PeerComparison, 0, n)
	for _, p := range peers[:n] {
		row := PeerComparison{
			Ticker:           p.Ticker,
			CompanyName:      p.CompanyName,
			PERatio:          p.PERatio,
			EVToEBITDA:       p.EVToEBITDA,
			RevenueGrowthYoY: p.RevenueGrowthYoY,
			GrossMargin:      p.GrossMargin,
			ROE:              p.ROE,
			DebtToEquity:     p.DebtToEquity,
			MarketCap:        p.MarketCap,
		}
		if row.Ticker == "" {
			row.Ticker = "N/A"
		}
		if row.CompanyName == "" {
			row.CompanyName = "Peer"
		}
		rows = append(rows, row)
	}
	return rows
}

// StripFences 去除 Markdown 代码块标记，并截取最外层 JSON
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if len(s) > 0 && s[0] != '{' && s[0] != '[' {
		if i, j := strings.IndexAny(s, "{["), strings.LastIndexAny(s, "}]"); i >= 0 && j > i {
			s = s[i : j+1]
		}
	}
	return s
}

func (b *Builder) deepFallback(ticker, query string, m scoring.FinancialMetrics) *InvestmentMemo {
	name := m.CompanyName
	if name == "" {
		name = ticker
	}
	return &InvestmentMemo{
		ID:               b.newID(),
		Ticker:           ticker,
		CompanyName:      name,
		AnalysisDate:     b.date(),
		Mode:             ModeDeep,
		UserQuery:        query,
		OverallSentiment: scoring.SentimentNeutral,
		BusinessOverview: BusinessOverview{
			Summary:               fmt.Sprintf("Deep analysis of %s is being synthesized from available data.", ticker),
			CoreProducts:          []string{},
			CompetitiveAdvantages: []string{},
		},
		FinancialPerformance: FinancialPerformance{
			Summary:    "Analysis in progress.",
			Highlights: []string{},
			Concerns:   []string{},
			Metrics:    m,
		},
		BullThesis: scoring.Thesis{Points: []string{"Strong market position", "Secular growth tailwinds"}, KeyMetrics: []string{}},
		BearThesis: scoring.Thesis{Points: []string{"Competitive pressure", "Macroeconomic headwinds"}, KeyMetrics: []string{}},
		KeyRisks:   []scoring.KeyRisk{{Risk: "Macro environment uncertainty", Severity: scoring.SeverityMedium}},
		ConfidenceScore: scoring.ConfidenceScore{
			Overall:           50,
			DataCompleteness:  60,
			SourceReliability: 65,
			Label:             "Medium",
			Explanation:       "Partial data used for deep analysis",
		},
		Assumptions:     []string{"Industry-standard growth assumptions applied"},
		DataSourcesUsed: []string{"Reference Data"},
	}
}

func (b *Builder) date() string {
	return b.now().UTC().Format(DateLayout)
}

func businessOverview(m scoring.FinancialMetrics, query string) BusinessOverview {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s operates in the %s/%s space. ", m.CompanyName, m.Sector, m.Industry)
	if present(m.Revenue) {
		fmt.Fprintf(&sb, "Revenue %s ", scoring.Billions(m.Revenue))
	}
	if present(m.MarketCap) {
		fmt.Fprintf(&sb, "with %s market cap. ", scoring.Billions(m.MarketCap))
	} else {
		sb.WriteString(". ")
	}
	if m.RevenueGrowthYoY != nil {
		fmt.Fprintf(&sb, "Revenue grew %s YoY. ", scoring.Percent(m.RevenueGrowthYoY))
	}
	if m.NetMargin != nil {
		fmt.Fprintf(&sb, "Net margin stands at %s.", scoring.Percent(m.NetMargin))
	}

	products := []string{orDefault(m.Sector, "Diversified"), orDefault(m.Industry, "N/A")}

	advantages := make([]string, 0, 2)
	if m.GrossMargin != nil && *m.GrossMargin > 40 {
		advantages = append(advantages, fmt.Sprintf("High gross margin (%s) indicates pricing power", scoring.Percent(m.GrossMargin)))
	} else {
		advantages = append(advantages, fmt.Sprintf("Operating in %s sector", orDefault(m.Industry, "competitive")))
	}
	if m.ROE != nil && *m.ROE > 15 {
		advantages = append(advantages, fmt.Sprintf("Strong ROE of %s suggests efficient capital allocation", scoring.Percent(m.ROE)))
	} else {
		advantages = append(advantages, "Established market position")
	}

	return BusinessOverview{
		Summary:               strings.TrimSpace(sb.String()),
		CoreProducts:          products,
		CompetitiveAdvantages: advantages,
		ManagementHighlights:  query,
	}
}

func performanceSummary(m scoring.FinancialMetrics) string {
	var sb strings.Builder
	if present(m.Revenue) {
		fmt.Fprintf(&sb, "Revenue %s ", scoring.Billions(m.Revenue))
	}
	if m.RevenueGrowthYoY != nil {
		fmt.Fprintf(&sb, "(%s YoY growth), ", scoring.Percent(m.RevenueGrowthYoY))
	}
	if present(m.EBITDA) {
		fmt.Fprintf(&sb, "EBITDA %s, ", scoring.Billions(m.EBITDA))
	}
	if m.NetMargin != nil {
		fmt.Fprintf(&sb, "net margin %s.", scoring.Percent(m.NetMargin))
	}
	if m.FreeCashFlow != nil {
		fmt.Fprintf(&sb, " FCF: %s.", scoring.Billions(m.FreeCashFlow))
	}
	return strings.TrimSpace(sb.String())
}

// present 非空且非零
func present(v *float64) bool {
	return v != nil && *v != 0
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
