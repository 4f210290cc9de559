package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitymind-ai/equitymind/pkg/config"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func baseProfile() UserProfile {
	return Default(config.ProfileConfig{
		RiskTolerance:     RiskModerate,
		PreferredKPIs:     []string{"Revenue Growth", "EBITDA"},
		SectorsOfInterest: []string{"Pharma"},
		GeographicFocus:   []string{"India"},
		InvestmentHorizon: HorizonMedium,
	}, testNow)
}

func TestInferPreferences(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantRisk    string
		wantHorizon string
		wantKPIs    []string
	}{
		{
			name:  "no signal",
			query: "Tell me about Apple",
		},
		{
			name:     "aggressive wins over conservative",
			query:    "Is this a speculative or a safe bet?",
			wantRisk: RiskAggressive,
		},
		{
			name:        "conservative dividend long-term",
			query:       "Looking for dividend income over a decade",
			wantRisk:    RiskConservative,
			wantHorizon: HorizonLong,
		},
		{
			name:        "short horizon",
			query:       "What happens next quarter?",
			wantHorizon: HorizonShort,
		},
		{
			name:     "kpis appended in keyword order",
			query:    "Focus on FCF, margin trends and return on equity; EBITDA too",
			wantKPIs: []string{"Revenue Growth", "EBITDA", "Free Cash Flow", "ROE", "Margins"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch := InferPreferences(tt.query, baseProfile())
			if tt.wantRisk == "" {
				assert.Nil(t, patch.RiskTolerance)
			} else {
				require.NotNil(t, patch.RiskTolerance)
				assert.Equal(t, tt.wantRisk, *patch.RiskTolerance)
			}
			if tt.wantHorizon == "" {
				assert.Nil(t, patch.InvestmentHorizon)
			} else {
				require.NotNil(t, patch.InvestmentHorizon)
				assert.Equal(t, tt.wantHorizon, *patch.InvestmentHorizon)
			}
			assert.Equal(t, tt.wantKPIs, patch.PreferredKPIs)
		})
	}
}

func TestInferPreferences_CapsKPIs(t *testing.T) {
	p := baseProfile()
	p.PreferredKPIs = []string{"A", "B", "C", "D"}
	patch := InferPreferences("ebitda fcf roe eps top-line profitability", p)
	assert.Equal(t, []string{"A", "B", "C", "D", "EBITDA", "Free Cash Flow"}, patch.PreferredKPIs)
}

func TestApply(t *testing.T) {
	p := baseProfile()
	later := testNow.Add(time.Hour)
	risk := RiskAggressive

	out := Apply(p, Patch{RiskTolerance: &risk, GeographicFocus: []string{"US"}}, later)
	assert.Equal(t, RiskAggressive, out.RiskTolerance)
	assert.Equal(t, []string{"US"}, out.GeographicFocus)
	assert.Equal(t, HorizonMedium, out.InvestmentHorizon)
	assert.Equal(t, later, out.LastUpdated)

	assert.Equal(t, RiskModerate, p.RiskTolerance)
	assert.Equal(t, []string{"India"}, p.GeographicFocus)
}

func TestPatch_Empty(t *testing.T) {
	assert.True(t, Patch{}.Empty())
	assert.False(t, Patch{PreferredKPIs: []string{}}.Empty())
}

func TestNextRecommendations(t *testing.T) {
	tests := []struct {
		name    string
		studied []string
		current string
		want    []string
	}{
		{
			name:    "peers first then popular",
			studied: []string{"MSFT"},
			current: "AAPL",
			want:    []string{"GOOGL", "META", "AMZN", "NVDA", "TSLA"},
		},
		{
			name:    "unknown current uses popular",
			studied: []string{"AAPL", "MSFT"},
			current: "IBM",
			want:    []string{"GOOGL", "NVDA", "AMZN", "META", "TSLA"},
		},
		{
			name:    "current never recommended",
			studied: []string{"NVDA"},
			current: "nvda",
			want:    []string{"AMD", "INTC", "AVGO", "QCOM", "AAPL"},
		},
		{
			name:    "everything studied",
			studied: []string{"AAPL", "MSFT", "GOOGL", "NVDA", "AMZN", "META", "TSLA", "JNJ"},
			want:    []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRecommendations(tt.studied, tt.current))
		})
	}
}
