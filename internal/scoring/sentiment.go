package scoring

// Aggregate 将信号方向求和后分档
func (e *Engine) Aggregate(signals []Signal) Sentiment {
	total := 0
	for _, s := range signals {
		total += int(s.Direction)
	}
	switch {
	case total >= e.cfg.Sentiment.BullishAt:
		return SentimentBullish
	case total <= e.cfg.Sentiment.BearishAt:
		return SentimentBearish
	default:
		return SentimentNeutral
	}
}
