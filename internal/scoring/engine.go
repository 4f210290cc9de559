package scoring

import (
	"fmt"

	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
)

// Engine 快速模式评分引擎
// 所有方法均为纯函数，可被多个 goroutine 并发调用
type Engine struct {
	cfg Config
}

// Result 一次评分的全部产出
type Result struct {
	Signals    []Signal         `json:"signals"`
	Sentiment  Sentiment        `json:"overallSentiment"`
	Bull       Thesis           `json:"bullThesis"`
	Bear       Thesis           `json:"bearThesis"`
	KeyRisks   []KeyRisk        `json:"keyRisks"`
	Valuation  ValuationInsight `json:"valuationInsight"`
	Scenarios  ScenarioAnalysis `json:"scenarioAnalysis"`
	Confidence ConfidenceScore  `json:"confidenceScore"`
}

// NewEngine 校验配置并创建评分引擎
func NewEngine(cfg Config) (*Engine, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg.clone()}, nil
}

// Default 使用默认配置创建评分引擎
func Default() *Engine {
	return &Engine{cfg: DefaultConfig()}
}

// Analyze 运行全部评分组件
func (e *Engine) Analyze(m FinancialMetrics, discrepancies []Discrepancy, source DataSource) Result {
	signals := e.DeriveSignals(m)
	bull, bear := e.Theses(m, signals)
	return Result{
		Signals:    signals,
		Sentiment:  e.Aggregate(signals),
		Bull:       bull,
		Bear:       bear,
		KeyRisks:   e.KeyRisks(m),
		Valuation:  e.ClassifyValuation(m),
		Scenarios:  e.ProjectScenarios(m),
		Confidence: e.ScoreConfidence(m, discrepancies, source),
	}
}

func validate(cfg Config) error {
	var probe FinancialMetrics
	known := probe.fields()

	if len(cfg.Signals) == 0 {
		return fmt.Errorf("%w: no signal rules", apperrors.ErrConfigInvalid)
	}
	for _, r := range cfg.Signals {
		if _, ok := known[r.Metric]; !ok {
			return fmt.Errorf("%w: unknown signal metric %q", apperrors.ErrConfigInvalid, r.Metric)
		}
		switch r.Kind {
		case RuleDirect, RuleInverted:
			if r.Low >= r.High {
				return fmt.Errorf("%w: %s low %.2f must be below high %.2f", apperrors.ErrConfigInvalid, r.Metric, r.Low, r.High)
			}
		case RuleLeverage:
			if r.Low > r.High || r.High > r.Ceiling {
				return fmt.Errorf("%w: %s leverage band must satisfy low <= high <= ceiling", apperrors.ErrConfigInvalid, r.Metric)
			}
		case RuleSign:
		default:
			return fmt.Errorf("%w: %s has unknown rule kind %q", apperrors.ErrConfigInvalid, r.Metric, r.Kind)
		}
	}

	if len(cfg.Confidence.KeyFields) == 0 {
		return fmt.Errorf("%w: confidence key fields are empty", apperrors.ErrConfigInvalid)
	}
	for _, f := range cfg.Confidence.KeyFields {
		if _, ok := known[f]; !ok {
			return fmt.Errorf("%w: unknown confidence key field %q", apperrors.ErrConfigInvalid, f)
		}
	}

	sc := cfg.Scenario
	if sum := sc.Bull.Probability + sc.Base.Probability + sc.Bear.Probability; sum != 100 {
		return fmt.Errorf("%w: scenario probabilities sum to %d, want 100", apperrors.ErrConfigInvalid, sum)
	}
	if cfg.Sentiment.BearishAt >= cfg.Sentiment.BullishAt {
		return fmt.Errorf("%w: sentiment bands overlap", apperrors.ErrConfigInvalid)
	}
	if cfg.Valuation.UndervaluedBelow > cfg.Valuation.OvervaluedAbove {
		return fmt.Errorf("%w: valuation bands overlap", apperrors.ErrConfigInvalid)
	}
	return nil
}
