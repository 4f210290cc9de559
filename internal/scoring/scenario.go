package scoring

// ProjectScenarios 以营收增速为基线推演三种情景
func (e *Engine) ProjectScenarios(m FinancialMetrics) ScenarioAnalysis {
	sc := e.cfg.Scenario
	baseline := sc.DefaultGrowth
	if m.RevenueGrowthYoY != nil {
		baseline = *m.RevenueGrowthYoY
	}

	project := func(p ScenarioParams) ScenarioCase {
		return ScenarioCase{
			RevenueGrowth:   roundHalfUp(baseline * p.GrowthMultiplier),
			MarginExpansion: p.MarginExpansion,
			ImpliedValue:    sc.ImpliedValue,
			KeyDriver:       p.KeyDriver,
			Probability:     p.Probability,
		}
	}

	return ScenarioAnalysis{
		Bull:            project(sc.Bull),
		Base:            project(sc.Base),
		Bear:            project(sc.Bear),
		SensitivityNote: sc.SensitivityNote,
	}
}
