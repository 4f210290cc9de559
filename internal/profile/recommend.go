package profile

import "strings"

const maxRecommendations = 5

// sectorPeers 推荐时优先展示的同业公司
var sectorPeers = map[string][]string{
	"AAPL":  {"MSFT", "GOOGL", "META", "AMZN"},
	"MSFT":  {"AAPL", "GOOGL", "CRM", "ORCL"},
	"GOOGL": {"META", "AMZN", "MSFT", "SNAP"},
	"NVDA":  {"AMD", "INTC", "AVGO", "QCOM"},
	"TSLA":  {"RIVN", "GM", "F", "NIO"},
	"JNJ":   {"PFE", "ABBV", "MRK", "BMY"},
	"META":  {"GOOGL", "SNAP", "PINS", "TWTR"},
	"AMZN":  {"MSFT", "GOOGL", "WMT", "SHOP"},
}

var popularTickers = []string{"AAPL", "MSFT", "GOOGL", "NVDA", "AMZN", "META", "TSLA", "JNJ"}

// NextRecommendations 推荐下一步研究的代码：先同业，再补充尚未研究的热门代码
// studied 为历史中已分析过的代码，current 自身不会被推荐
func NextRecommendations(studied []string, current string) []string {
	current = strings.ToUpper(strings.TrimSpace(current))
	seen := make(map[string]bool, len(studied)+1)
	for _, t := range studied {
		seen[strings.ToUpper(t)] = true
	}
	delete(seen, current)

	out := make([]string, 0, maxRecommendations)
	add := func(t string) {
		if len(out) < maxRecommendations && t != current && !seen[t] && !contains(out, t) {
			out = append(out, t)
		}
	}
	for _, peer := range sectorPeers[current] {
		add(peer)
	}
	for _, t := range popularTickers {
		add(t)
	}
	return out
}
