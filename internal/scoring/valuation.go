package scoring

import "fmt"

const (
	Undervalued   = "undervalued"
	FairlyValued  = "fairly valued"
	Overvalued    = "overvalued"
	valuationMeth = "Comparable multiples (P/E, EV/EBITDA, P/S)"
	valuationFV   = "N/A - run Deep Mode for price target"
	valuationNote = "Quick scan uses trailing multiples only. Enable Deep Mode for DCF-based fair value."
)

// ClassifyValuation 基于 P/E 的估值分档
func (e *Engine) ClassifyValuation(m FinancialMetrics) ValuationInsight {
	vc := e.cfg.Valuation
	insight := ValuationInsight{
		Methodology:             valuationMeth,
		FairValueRange:          valuationFV,
		CurrentPriceVsFairValue: FairlyValued,
		Note:                    valuationNote,
	}

	pe := m.PERatio
	switch {
	case pe == nil:
		insight.Summary = fmt.Sprintf("Limited valuation data available. Current price %s, 52W range %s-%s.",
			usd(m.CurrentPrice), usd(m.FiftyTwoWeekLow), usd(m.FiftyTwoWeekHigh))
	case *pe < vc.UndervaluedBelow:
		insight.Summary = fmt.Sprintf("P/E of %s is below typical market multiples, suggesting potential undervaluation relative to peers.",
			multiple(pe))
		insight.CurrentPriceVsFairValue = Undervalued
	case *pe <= vc.OvervaluedAbove:
		insight.Summary = fmt.Sprintf("P/E of %s is within a reasonable range. Current price %s appears fairly valued vs fundamentals.",
			multiple(pe), usd(m.CurrentPrice))
	default:
		insight.Summary = fmt.Sprintf("Elevated P/E of %s implies premium valuation and requires above-average growth to justify. Check EV/EBITDA (%s) for confirmation.",
			multiple(pe), multiple(m.EVToEBITDA))
		insight.CurrentPriceVsFairValue = Overvalued
	}
	return insight
}
