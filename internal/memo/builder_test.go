package memo

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitymind-ai/equitymind/internal/scoring"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
)

var f = scoring.Float

func testBuilder() *Builder {
	return NewBuilder(nil,
		WithIDGenerator(func() string { return "memo-1" }),
		WithClock(func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }),
	)
}

func appleMetrics() scoring.FinancialMetrics {
	return scoring.FinancialMetrics{
		Ticker: "AAPL", CompanyName: "Apple Inc.", Sector: "Technology", Industry: "Consumer Electronics",
		MarketCap: f(3.2e12), CurrentPrice: f(225.50), Revenue: f(383.285e9), RevenueGrowthYoY: f(2.8),
		GrossMargin: f(44.1), OperatingMargin: f(29.8), NetMargin: f(25.3), EBITDA: f(130e9),
		PERatio: f(32.5), EVToEBITDA: f(25.1), ROE: f(147.9), DebtToEquity: f(2.4), CurrentRatio: f(0.94),
		FreeCashFlow: f(111e9), FreeCashFlowYield: f(3.4), DividendYield: f(0.44),
		FiftyTwoWeekHigh: f(260.10), FiftyTwoWeekLow: f(164.08), Beta: f(1.24),
	}
}

func TestBuilder_Quick(t *testing.T) {
	b := testBuilder()
	m := appleMetrics()
	memo := b.Quick(QuickInput{Ticker: "aapl", Query: "Is Apple a buy?", Metrics: m, Source: scoring.SourceMock})

	assert.Equal(t, "memo-1", memo.ID)
	assert.Equal(t, "AAPL", memo.Ticker)
	assert.Equal(t, "2025-03-14T09:30:00.000Z", memo.AnalysisDate)
	assert.Equal(t, ModeQuick, memo.Mode)
	assert.Equal(t, "Is Apple a buy?", memo.UserQuery)

	assert.Equal(t,
		"Apple Inc. operates in the Technology/Consumer Electronics space. Revenue $383.3B with $3200.0B market cap. Revenue grew 2.8% YoY. Net margin stands at 25.3%.",
		memo.BusinessOverview.Summary)
	assert.Equal(t, []string{"Technology", "Consumer Electronics"}, memo.BusinessOverview.CoreProducts)
	assert.Equal(t, []string{
		"High gross margin (44.1%) indicates pricing power",
		"Strong ROE of 147.9% suggests efficient capital allocation",
	}, memo.BusinessOverview.CompetitiveAdvantages)
	assert.Equal(t, "Is Apple a buy?", memo.BusinessOverview.ManagementHighlights)

	assert.Equal(t, "Revenue $383.3B (2.8% YoY growth), EBITDA $130.0B, net margin 25.3%. FCF: $111.0B.",
		memo.FinancialPerformance.Summary)
	assert.LessOrEqual(t, len(memo.FinancialPerformance.Highlights), 4)
	assert.LessOrEqual(t, len(memo.FinancialPerformance.Concerns), 3)

	res := b.Engine().Analyze(m, nil, scoring.SourceMock)
	assert.Equal(t, res.Sentiment, memo.OverallSentiment)
	assert.Equal(t, res.Bull, memo.BullThesis)
	assert.Equal(t, res.KeyRisks, memo.KeyRisks)
	assert.Equal(t, res.Confidence, memo.ConfidenceScore)
	require.NotNil(t, memo.ValuationInsight)
	assert.Equal(t, "overvalued", memo.ValuationInsight.CurrentPriceVsFairValue)

	assert.Empty(t, memo.PeerComparison)
	assert.NotNil(t, memo.PeerComparison)
	assert.Equal(t, []string{"Reference Financial Data"}, memo.DataSourcesUsed)
	assert.Equal(t, "Review latest earnings call for AAPL", memo.NextStepsRecommended[1])
	assert.Equal(t, "Check sector trends for Technology", memo.NextStepsRecommended[2])
}

func TestBuilder_QuickSparseMetrics(t *testing.T) {
	memo := testBuilder().Quick(QuickInput{
		Ticker:  "ZZZZ",
		Metrics: scoring.FinancialMetrics{Ticker: "ZZZZ"},
		Source:  scoring.SourceLive,
	})

	assert.Equal(t, "ZZZZ", memo.CompanyName)
	assert.Equal(t, "operates in the / space. .", memo.BusinessOverview.Summary)
	assert.Equal(t, []string{"Diversified", "N/A"}, memo.BusinessOverview.CoreProducts)
	assert.Equal(t, []string{"Operating in competitive sector", "Established market position"}, memo.BusinessOverview.CompetitiveAdvantages)
	assert.Empty(t, memo.FinancialPerformance.Summary)
	assert.Equal(t, scoring.SentimentNeutral, memo.OverallSentiment)
	assert.Equal(t, []string{"Finnhub", "Alpha Vantage", "Live Market Data"}, memo.DataSourcesUsed)
	assert.Equal(t, "Check sector trends for the sector", memo.NextStepsRecommended[2])
}

func TestBuilder_Degraded(t *testing.T) {
	memo := testBuilder().Degraded(QuickInput{Ticker: "AAPL", Metrics: appleMetrics()}, "all models failed")
	assert.Equal(t, ModeQuick, memo.Mode)
	assert.Equal(t, "Deep Mode was unavailable; this memo was produced by the rule-based Quick Mode (all models failed)", memo.Assumptions[0])
	assert.Len(t, memo.Assumptions, 4)
}

func TestBuilder_ParseDeep(t *testing.T) {
	raw := "```json\n{\"companyName\":\"Apple Inc.\",\"overallSentiment\":\"bullish\",\"bullThesis\":{\"points\":[\"Services growth\"],\"keyMetrics\":[]},\"discrepancies\":[{\"category\":\"guidance\",\"claim\":\"c\",\"evidence\":\"e\",\"severity\":\"high\"}]}\n```"
	memo, err := testBuilder().ParseDeep(raw, "aapl", "deep dive", scoring.FinancialMetrics{})
	require.NoError(t, err)

	assert.Equal(t, "memo-1", memo.ID)
	assert.Equal(t, "AAPL", memo.Ticker)
	assert.Equal(t, "deep dive", memo.UserQuery)
	assert.Equal(t, "2025-03-14T09:30:00.000Z", memo.AnalysisDate)
	assert.Equal(t, scoring.SentimentBullish, memo.OverallSentiment)
	assert.Equal(t, []string{"Services growth"}, memo.BullThesis.Points)
	require.Len(t, memo.Discrepancies, 1)
	assert.Equal(t, scoring.SeverityHigh, memo.Discrepancies[0].Severity)
}

func TestBuilder_ParseDeepKeepsModelFields(t *testing.T) {
	raw := `Here is the memo: {"id":"llm-id","ticker":"MSFT","analysisDate":"2025-01-01T00:00:00.000Z","userQuery":"q"} Thanks!`
	memo, err := testBuilder().ParseDeep(raw, "AAPL", "other", scoring.FinancialMetrics{CompanyName: "Fallback Co"})
	require.NoError(t, err)
	assert.Equal(t, "llm-id", memo.ID)
	assert.Equal(t, "MSFT", memo.Ticker)
	assert.Equal(t, "q", memo.UserQuery)
	assert.Equal(t, "Fallback Co", memo.CompanyName)
	assert.Equal(t, scoring.SentimentNeutral, memo.OverallSentiment)
}

func TestBuilder_ParseDeepFallback(t *testing.T) {
	memo, err := testBuilder().ParseDeep("I cannot help with that", "jnj", "q", scoring.FinancialMetrics{CompanyName: "Johnson & Johnson"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMemoParse))

	require.NotNil(t, memo)
	assert.Equal(t, "JNJ", memo.Ticker)
	assert.Equal(t, "Johnson & Johnson", memo.CompanyName)
	assert.Equal(t, ModeDeep, memo.Mode)
	assert.Equal(t, scoring.SentimentNeutral, memo.OverallSentiment)
	assert.Equal(t, "Deep analysis of JNJ is being synthesized from available data.", memo.BusinessOverview.Summary)
	assert.Equal(t, 50, memo.ConfidenceScore.Overall)
	assert.Equal(t, []string{"Reference Data"}, memo.DataSourcesUsed)
}

func TestBuilder_FinalizeDeep(t *testing.T) {
	b := testBuilder()
	memo := &InvestmentMemo{
		Mode: ModeQuick,
		Discrepancies: []scoring.Discrepancy{
			{Category: "growth", Severity: scoring.SeverityHigh},
		},
		ConfidenceScore: scoring.ConfidenceScore{Overall: 99},
	}
	peers := []scoring.FinancialMetrics{
		{Ticker: "MSFT", CompanyName: "Microsoft", PERatio: f(38.4)},
		{CompanyName: ""},
		{Ticker: "META"},
		{Ticker: "AMZN"},
	}

	out := b.FinalizeDeep(memo, appleMetrics(), peers, scoring.SourceLive)
	assert.Equal(t, ModeDeep, out.Mode)
	assert.Equal(t, b.Engine().ScoreConfidence(appleMetrics(), memo.Discrepancies, scoring.SourceLive), out.ConfidenceScore)
	assert.Equal(t, 15, out.ConfidenceScore.ContradictionPenalty)

	require.Len(t, out.PeerComparison, 3)
	assert.Equal(t, "MSFT", out.PeerComparison[0].Ticker)
	assert.Equal(t, 38.4, *out.PeerComparison[0].PERatio)
	assert.Equal(t, "N/A", out.PeerComparison[1].Ticker)
	assert.Equal(t, "Peer", out.PeerComparison[1].CompanyName)
}

func TestBuilder_FinalizeDeepKeepsModelPeers(t *testing.T) {
	memo := &InvestmentMemo{PeerComparison: []PeerComparison{{Ticker: "GOOGL"}}}
	out := testBuilder().FinalizeDeep(memo, appleMetrics(), []scoring.FinancialMetrics{{Ticker: "MSFT"}}, scoring.SourceMock)
	require.Len(t, out.PeerComparison, 1)
	assert.Equal(t, "GOOGL", out.PeerComparison[0].Ticker)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n[1,2]\n```", "[1,2]"},
		{"Sure! {\"a\":1} done", "{\"a\":1}"},
		{"no json here", "no json here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFences(tt.in))
	}
}

func TestInvestmentMemo_JSONFieldNames(t *testing.T) {
	memo := testBuilder().Quick(QuickInput{Ticker: "AAPL", Metrics: appleMetrics()})
	data, err := json.Marshal(memo)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{
		"id", "ticker", "companyName", "analysisDate", "mode", "userQuery", "overallSentiment",
		"businessOverview", "financialPerformance", "peerComparison", "bullThesis", "bearThesis",
		"keyRisks", "scenarioAnalysis", "valuationInsight", "confidenceScore",
		"assumptions", "dataSourcesUsed", "nextStepsRecommended",
	} {
		assert.Contains(t, raw, key)
	}
}
