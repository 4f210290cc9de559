package memo

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/equitymind-ai/equitymind/internal/profile"
	"github.com/equitymind-ai/equitymind/internal/scoring"
)

// SystemPrompt 按模式生成系统提示词，并注入用户画像
func SystemPrompt(mode Mode, p profile.UserProfile) string {
	kpis := strings.Join(p.PreferredKPIs, ", ")
	personalization := fmt.Sprintf(`User Profile:
- Risk Tolerance: %s
- Preferred KPIs: %s
- Sectors of Interest: %s
- Investment Horizon: %s
- Geographic Focus: %s`,
		p.RiskTolerance, kpis, strings.Join(p.SectorsOfInterest, ", "), p.InvestmentHorizon, strings.Join(p.GeographicFocus, ", "))

	if mode == ModeQuick {
		return fmt.Sprintf(`You are EquityMind AI, a senior equity research analyst. Your task is to produce a QUICK MODE analysis - a rapid, structured financial snapshot.

%s

QUICK MODE RULES:
1. Prioritize the user's preferred KPIs: %s
2. Be concise but precise - no filler text
3. Lead with numbers and specific evidence
4. Flag any obvious red flags or standout positives
5. End with a 1-sentence investment takeaway

Structure your response as a valid JSON object matching the InvestmentMemo schema exactly.
Motto: Explain. Compare. Justify.`, personalization, kpis)
	}

	return fmt.Sprintf(`You are EquityMind AI, a senior equity research analyst with 20+ years at a top-tier investment bank.

%s

DEEP MODE RULES:
1. Perform comprehensive fundamental analysis
2. Build a rigorous bull thesis AND bear thesis with supporting evidence
3. Compare against 2-3 industry peers using specific metrics
4. Run scenario analysis (bull/base/bear) with explicit assumptions
5. Detect and flag contradictions between management commentary and reported results
6. Highlight risks the user's risk tolerance profile should be most concerned about
7. Every major conclusion must cite specific numbers
8. Assign a confidence score based on data completeness and source reliability

Structure your response as a valid JSON object matching the InvestmentMemo schema exactly.
Philosophy: Explain every assumption. Compare to peers. Justify every conclusion.`, personalization)
}

// FinancialContext 将指标与同业数据渲染为提示词上下文
func FinancialContext(m scoring.FinancialMetrics, peers []scoring.FinancialMetrics, source scoring.DataSource) string {
	sourceLabel := "Reference Data (mock)"
	if source == scoring.SourceLive {
		sourceLabel = "Live API"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "COMPANY: %s (%s)\n", m.CompanyName, m.Ticker)
	fmt.Fprintf(&sb, "Sector: %s | Industry: %s\n", m.Sector, m.Industry)
	fmt.Fprintf(&sb, "Data Source: %s\n", sourceLabel)

	sb.WriteString("\n--- VALUATION ---\n")
	fmt.Fprintf(&sb, "Current Price: %s\n", formatNum(m.CurrentPrice, "$", ""))
	fmt.Fprintf(&sb, "Market Cap: %s\n", billionsOrNA(m.MarketCap))
	fmt.Fprintf(&sb, "P/E Ratio: %s\n", formatNum(m.PERatio, "", "x"))
	fmt.Fprintf(&sb, "P/B Ratio: %s\n", formatNum(m.PBRatio, "", "x"))
	fmt.Fprintf(&sb, "P/S Ratio: %s\n", formatNum(m.PSRatio, "", "x"))
	fmt.Fprintf(&sb, "EV/EBITDA: %s\n", formatNum(m.EVToEBITDA, "", "x"))
	fmt.Fprintf(&sb, "EPS: %s\n", formatNum(m.EPS, "$", ""))
	fmt.Fprintf(&sb, "52-Week High: %s\n", formatNum(m.FiftyTwoWeekHigh, "$", ""))
	fmt.Fprintf(&sb, "52-Week Low: %s\n", formatNum(m.FiftyTwoWeekLow, "$", ""))
	fmt.Fprintf(&sb, "Beta: %s\n", formatNum(m.Beta, "", ""))

	sb.WriteString("\n--- PROFITABILITY ---\n")
	fmt.Fprintf(&sb, "Revenue: %s\n", billionsOrNA(m.Revenue))
	fmt.Fprintf(&sb, "Revenue Growth YoY: %s\n", formatNum(m.RevenueGrowthYoY, "", "%"))
	fmt.Fprintf(&sb, "Gross Margin: %s\n", formatNum(m.GrossMargin, "", "%"))
	fmt.Fprintf(&sb, "Operating Margin: %s\n", formatNum(m.OperatingMargin, "", "%"))
	fmt.Fprintf(&sb, "Net Margin: %s\n", formatNum(m.NetMargin, "", "%"))
	fmt.Fprintf(&sb, "EBITDA: %s\n", billionsOrNA(m.EBITDA))

	sb.WriteString("\n--- RETURNS & EFFICIENCY ---\n")
	fmt.Fprintf(&sb, "ROE: %s\n", formatNum(m.ROE, "", "%"))
	fmt.Fprintf(&sb, "ROA: %s\n", formatNum(m.ROA, "", "%"))
	fmt.Fprintf(&sb, "Free Cash Flow: %s\n", billionsOrNA(m.FreeCashFlow))
	fmt.Fprintf(&sb, "FCF Yield: %s\n", formatNum(m.FreeCashFlowYield, "", "%"))
	fmt.Fprintf(&sb, "Dividend Yield: %s\n", formatNum(m.DividendYield, "", "%"))

	sb.WriteString("\n--- BALANCE SHEET ---\n")
	fmt.Fprintf(&sb, "Debt/Equity: %s\n", formatNum(m.DebtToEquity, "", "x"))
	fmt.Fprintf(&sb, "Current Ratio: %s", formatNum(m.CurrentRatio, "", "x"))

	if len(peers) > 0 {
		sb.WriteString("\n\n--- PEER DATA ---\n")
		for _, p := range peers {
			fmt.Fprintf(&sb, "%s (%s): P/E=%s, Rev Growth=%s, EBITDA Margin=%s, ROE=%s, D/E=%s\n",
				p.Ticker, p.CompanyName,
				formatNum(p.PERatio, "", "x"),
				formatNum(p.RevenueGrowthYoY, "", "%"),
				formatNum(p.EBITDAMargin, "", "%"),
				formatNum(p.ROE, "", "%"),
				formatNum(p.DebtToEquity, "", "x"))
		}
	}
	return sb.String()
}

// MemoSchema 要求模型返回的 JSON 结构
const MemoSchema = `Return ONLY a JSON object with this exact structure (no markdown, no extra text):
{
  "id": "<uuid>",
  "ticker": "<TICKER>",
  "companyName": "<Full Company Name>",
  "analysisDate": "<ISO date>",
  "mode": "quick" | "deep",
  "userQuery": "<original user query>",
  "overallSentiment": "bullish" | "bearish" | "neutral",
  "businessOverview": {
    "summary": "<2-3 sentence business description>",
    "coreProducts": ["<product1>", "<product2>"],
    "competitiveAdvantages": ["<moat1>", "<moat2>"],
    "managementHighlights": "<optional string>"
  },
  "financialPerformance": {
    "summary": "<2-3 sentence financial summary>",
    "highlights": ["<positive highlight 1>", "<positive highlight 2>"],
    "concerns": ["<concern 1>"],
    "metrics": { "ticker": "<TICKER>", "peRatio": 0, "revenueGrowthYoY": 0 }
  },
  "peerComparison": [
    { "ticker": "PEER1", "companyName": "...", "peRatio": 0, "revenueGrowthYoY": 0, "grossMargin": 0, "roe": 0, "debtToEquity": 0, "marketCap": 0 }
  ],
  "bullThesis": {
    "points": ["<bull point 1>", "<bull point 2>", "<bull point 3>"],
    "keyMetrics": ["<metric that supports bull case>"],
    "catalysts": ["<upcoming catalyst>"]
  },
  "bearThesis": {
    "points": ["<bear point 1>", "<bear point 2>"],
    "keyMetrics": ["<metric that supports bear case>"],
    "catalysts": ["<risk that could accelerate bear case>"]
  },
  "keyRisks": [
    { "risk": "<risk description>", "severity": "high" | "medium" | "low", "mitigation": "<optional>" }
  ],
  "scenarioAnalysis": {
    "bull": { "revenueGrowth": 0, "marginExpansion": 0, "impliedValue": "<price target or range>", "keyDriver": "<what drives bull case>", "probability": 30 },
    "base": { "revenueGrowth": 0, "marginExpansion": 0, "impliedValue": "<price target or range>", "keyDriver": "<consensus expectation>", "probability": 50 },
    "bear": { "revenueGrowth": 0, "marginExpansion": 0, "impliedValue": "<price target or range>", "keyDriver": "<what drives bear case>", "probability": 20 },
    "sensitivityNote": "<note on key variables>"
  },
  "valuationInsight": {
    "summary": "<valuation commentary>",
    "methodology": "<DCF / Comps / etc.>",
    "fairValueRange": "<$X - $Y>",
    "currentPriceVsFairValue": "undervalued" | "fairly valued" | "overvalued",
    "note": "<optional caveat>"
  },
  "confidenceScore": {
    "overall": 0,
    "dataCompleteness": 0,
    "sourceReliability": 0,
    "contradictionPenalty": 0,
    "label": "Low" | "Medium" | "High" | "Very High",
    "explanation": "<why this score>"
  },
  "discrepancies": [
    { "category": "earnings" | "guidance" | "growth" | "risk" | "other", "claim": "<what mgmt said>", "evidence": "<what data shows>", "severity": "high" | "medium" | "low" }
  ],
  "assumptions": ["<assumption 1>", "<assumption 2>"],
  "dataSourcesUsed": ["Finnhub", "Alpha Vantage", "Public Filings"],
  "nextStepsRecommended": ["<follow-up analysis suggestion>"]
}`

// DeepPrompt 深度模式提示词的输入
type DeepPrompt struct {
	Ticker  string
	Query   string
	Profile profile.UserProfile
	Metrics scoring.FinancialMetrics
	Peers   []scoring.FinancialMetrics
	Source  scoring.DataSource
	Context map[string]string
}

// DeepUserMessage 组装深度模式的单条用户消息
func DeepUserMessage(in DeepPrompt) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DEEP MODE ANALYSIS: %s\n", in.Ticker)
	sb.WriteString(strings.Repeat("-", 50) + "\n")
	sb.WriteString(SystemPrompt(ModeDeep, in.Profile))
	sb.WriteString("\n\nFINANCIAL DATA:\n")
	sb.WriteString(FinancialContext(in.Metrics, in.Peers, in.Source))
	fmt.Fprintf(&sb, "\n\nUSER QUERY: %s", in.Query)

	if len(in.Context) > 0 {
		keys := make([]string, 0, len(in.Context))
		for k := range in.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\nUser's clarifying answers:")
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n- %s: %s", k, in.Context[k])
		}
	}

	sb.WriteString("\n\nREQUIRED FOCUS:\n")
	fmt.Fprintf(&sb, "- Risk Profile: %s\n", in.Profile.RiskTolerance)
	fmt.Fprintf(&sb, "- Highlight KPIs: %s\n", strings.Join(in.Profile.PreferredKPIs, ", "))
	fmt.Fprintf(&sb, "- Horizon: %s\n\n", in.Profile.InvestmentHorizon)
	sb.WriteString(MemoSchema)
	return sb.String()
}

// ClarifyPrompt 生成澄清问题的提示词
func ClarifyPrompt(ticker string, mode Mode, query string) string {
	return fmt.Sprintf(`You are EquityMind AI. A user wants a %s MODE analysis of %s.

User Query: %q

Generate 2-3 targeted clarifying questions to sharpen the analysis. Focus on:
- Time horizon (short/medium/long-term)
- Specific metrics they care about most
- Peer companies to include in comparison
- Specific risks or scenarios to stress-test

Return ONLY a JSON array of question objects:
[
  {
    "id": "q1",
    "question": "<question text>",
    "type": "select",
    "options": ["<option1>", "<option2>", "<option3>"]
  }
]
Types can be: "text", "select", "multiselect"`, strings.ToUpper(string(mode)), ticker, query)
}

// DefaultQuestions 模型不可用或输出无法解析时的默认澄清问题
func DefaultQuestions() []ClarifyQuestion {
	return []ClarifyQuestion{
		{
			ID:       "q1",
			Question: "What is your investment time horizon for this analysis?",
			Type:     "select",
			Options:  []string{"Short-term (< 1 year)", "Medium-term (1-3 years)", "Long-term (3+ years)"},
		},
		{
			ID:       "q2",
			Question: "Which metrics matter most to you?",
			Type:     "multiselect",
			Options:  []string{"Revenue Growth", "EBITDA Margins", "Free Cash Flow", "ROE", "P/E Ratio", "Dividend Yield"},
		},
		{
			ID:       "q3",
			Question: "Are there specific risks you want us to stress-test?",
			Type:     "select",
			Options:  []string{"Interest rate sensitivity", "Competitive disruption", "Regulatory risk", "Macro slowdown", "No specific risk"},
		},
	}
}

// ParseQuestions 解析模型返回的问题数组，失败或为空时返回默认问题
func ParseQuestions(raw string) []ClarifyQuestion {
	var qs []ClarifyQuestion
	if err := json.Unmarshal([]byte(StripFences(raw)), &qs); err != nil {
		return DefaultQuestions()
	}
	out := make([]ClarifyQuestion, 0, len(qs))
	for _, q := range qs {
		if strings.TrimSpace(q.Question) == "" {
			continue
		}
		if q.ID == "" {
			q.ID = "q" + strconv.Itoa(len(out)+1)
		}
		switch q.Type {
		case "text", "select", "multiselect":
		default:
			q.Type = "text"
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return DefaultQuestions()
	}
	return out
}

func billionsOrNA(v *float64) string {
	if !present(v) {
		return "N/A"
	}
	return scoring.Billions(v)
}

// formatNum 千分位分组，最多保留三位小数
func formatNum(v *float64, prefix, suffix string) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "N/A"
	}
	s := strconv.FormatFloat(math.Abs(*v), 'f', 3, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	out := grouped.String()
	if frac != "" {
		out += "." + frac
	}
	if *v < 0 && out != "0" {
		out = "-" + out
	}
	return prefix + out + suffix
}
