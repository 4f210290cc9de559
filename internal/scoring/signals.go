package scoring

// DeriveSignals 按固定顺序为每条规则生成一个信号
// 顺序有意义，后续的 top N 截断依赖它
func (e *Engine) DeriveSignals(m FinancialMetrics) []Signal {
	signals := make([]Signal, 0, len(e.cfg.Signals))
	for _, rule := range e.cfg.Signals {
		v := m.Field(rule.Metric)
		value := FormatValue(rule.Format, v)
		signals = append(signals, Signal{
			Metric:    rule.Metric,
			Label:     rule.Title + " " + value + rule.Suffix,
			Value:     value,
			Direction: rule.direction(v),
		})
	}
	return signals
}

func (r SignalRule) direction(v *float64) Direction {
	if v == nil {
		return Neutral
	}
	switch r.Kind {
	case RuleSign:
		if *v > 0 {
			return Bullish
		}
		return Bearish
	case RuleInverted:
		// 高倍数意味着昂贵，低于 Low 通常是亏损或异常数据
		if *v >= r.High || *v <= r.Low {
			return Bearish
		}
		return Neutral
	case RuleLeverage:
		switch {
		case *v < r.Low:
			return Bearish // 负权益
		case *v <= r.High:
			return Bullish
		case *v > r.Ceiling:
			return Bearish
		default:
			return Neutral
		}
	default:
		return threshold(*v, r.Low, r.High)
	}
}

func threshold(v, low, high float64) Direction {
	switch {
	case v >= high:
		return Bullish
	case v <= low:
		return Bearish
	default:
		return Neutral
	}
}

// filterLabels 返回前 n 个指定方向信号的标签
func filterLabels(signals []Signal, dir Direction, n int) []string {
	out := make([]string, 0, n)
	for _, s := range signals {
		if len(out) == n {
			break
		}
		if s.Direction == dir {
			out = append(out, s.Label)
		}
	}
	return out
}

// Highlights 返回前 n 个看多信号的标签
func Highlights(signals []Signal, n int) []string {
	return filterLabels(signals, Bullish, n)
}

// Concerns 返回前 n 个看空信号的标签
func Concerns(signals []Signal, n int) []string {
	return filterLabels(signals, Bearish, n)
}
