package marketdata

import (
	"strings"

	"github.com/equitymind-ai/equitymind/internal/scoring"
)

var f = scoring.Float

// referenceCompanies 内置参考数据，实时接口不可用时使用
var referenceCompanies = map[string]scoring.FinancialMetrics{
	"AAPL": {
		Ticker: "AAPL", CompanyName: "Apple Inc.", Sector: "Technology", Industry: "Consumer Electronics",
		MarketCap: f(3_200_000_000_000), CurrentPrice: f(225.50), Revenue: f(383_285_000_000), RevenueGrowthYoY: f(2.8),
		GrossMargin: f(44.1), OperatingMargin: f(29.8), NetMargin: f(25.3), EBITDA: f(130_000_000_000), EBITDAMargin: f(33.9),
		PERatio: f(32.5), PBRatio: f(48.2), PSRatio: f(8.3), EVToEBITDA: f(25.1), EPS: f(6.42),
		ROE: f(147.9), ROA: f(28.3), DebtToEquity: f(2.4), CurrentRatio: f(0.94),
		FreeCashFlow: f(111_000_000_000), FreeCashFlowYield: f(3.4), DividendYield: f(0.44),
		FiftyTwoWeekHigh: f(260.10), FiftyTwoWeekLow: f(164.08), Beta: f(1.24),
	},
	"MSFT": {
		Ticker: "MSFT", CompanyName: "Microsoft Corporation", Sector: "Technology", Industry: "Software",
		MarketCap: f(3_050_000_000_000), CurrentPrice: f(410.20), Revenue: f(245_122_000_000), RevenueGrowthYoY: f(15.7),
		GrossMargin: f(69.8), OperatingMargin: f(44.7), NetMargin: f(35.9), EBITDA: f(130_500_000_000), EBITDAMargin: f(53.2),
		PERatio: f(38.4), PBRatio: f(13.1), PSRatio: f(12.4), EVToEBITDA: f(26.5), EPS: f(11.80),
		ROE: f(34.8), ROA: f(19.3), DebtToEquity: f(0.72), CurrentRatio: f(1.31),
		FreeCashFlow: f(74_100_000_000), FreeCashFlowYield: f(2.4), DividendYield: f(0.65),
		FiftyTwoWeekHigh: f(468.35), FiftyTwoWeekLow: f(310.56), Beta: f(0.90),
	},
	"GOOGL": {
		Ticker: "GOOGL", CompanyName: "Alphabet Inc.", Sector: "Technology", Industry: "Internet Content",
		MarketCap: f(2_200_000_000_000), CurrentPrice: f(178.50), Revenue: f(307_394_000_000), RevenueGrowthYoY: f(15.1),
		GrossMargin: f(56.6), OperatingMargin: f(27.4), NetMargin: f(23.7), EBITDA: f(100_000_000_000), EBITDAMargin: f(32.5),
		PERatio: f(24.8), PBRatio: f(6.8), PSRatio: f(7.2), EVToEBITDA: f(18.9), EPS: f(7.31),
		ROE: f(29.4), ROA: f(17.2), DebtToEquity: f(0.10), CurrentRatio: f(2.10),
		FreeCashFlow: f(72_800_000_000), FreeCashFlowYield: f(3.3), DividendYield: f(0.0),
		FiftyTwoWeekHigh: f(207.05), FiftyTwoWeekLow: f(120.21), Beta: f(1.06),
	},
	"AMZN": {
		Ticker: "AMZN", CompanyName: "Amazon.com Inc.", Sector: "Consumer Cyclical", Industry: "Internet Retail",
		MarketCap: f(2_100_000_000_000), CurrentPrice: f(205.00), Revenue: f(637_959_000_000), RevenueGrowthYoY: f(12.1),
		GrossMargin: f(47.0), OperatingMargin: f(10.8), NetMargin: f(8.0), EBITDA: f(120_000_000_000), EBITDAMargin: f(18.8),
		PERatio: f(44.2), PBRatio: f(9.5), PSRatio: f(3.3), EVToEBITDA: f(20.1), EPS: f(4.60),
		ROE: f(20.8), ROA: f(8.5), DebtToEquity: f(1.45), CurrentRatio: f(1.05),
		FreeCashFlow: f(38_200_000_000), FreeCashFlowYield: f(1.8),
		FiftyTwoWeekHigh: f(242.52), FiftyTwoWeekLow: f(118.35), Beta: f(1.19),
	},
	"NVDA": {
		Ticker: "NVDA", CompanyName: "NVIDIA Corporation", Sector: "Technology", Industry: "Semiconductors",
		MarketCap: f(3_400_000_000_000), CurrentPrice: f(138.85), Revenue: f(130_497_000_000), RevenueGrowthYoY: f(122.4),
		GrossMargin: f(74.6), OperatingMargin: f(62.1), NetMargin: f(55.0), EBITDA: f(88_540_000_000), EBITDAMargin: f(67.8),
		PERatio: f(58.7), PBRatio: f(55.0), PSRatio: f(26.0), EVToEBITDA: f(45.2), EPS: f(2.48),
		ROE: f(113.8), ROA: f(55.1), DebtToEquity: f(0.41), CurrentRatio: f(4.20),
		FreeCashFlow: f(60_850_000_000), FreeCashFlowYield: f(1.8),
		FiftyTwoWeekHigh: f(153.13), FiftyTwoWeekLow: f(47.32), Beta: f(1.66),
	},
	"META": {
		Ticker: "META", CompanyName: "Meta Platforms Inc.", Sector: "Technology", Industry: "Social Media",
		MarketCap: f(1_500_000_000_000), CurrentPrice: f(590.00), Revenue: f(164_501_000_000), RevenueGrowthYoY: f(21.9),
		GrossMargin: f(81.5), OperatingMargin: f(41.8), NetMargin: f(36.3), EBITDA: f(82_000_000_000), EBITDAMargin: f(49.8),
		PERatio: f(28.9), PBRatio: f(9.3), PSRatio: f(9.1), EVToEBITDA: f(21.5), EPS: f(21.62),
		ROE: f(36.8), ROA: f(22.9), DebtToEquity: f(0.18), CurrentRatio: f(2.68),
		FreeCashFlow: f(53_000_000_000), FreeCashFlowYield: f(3.5),
		FiftyTwoWeekHigh: f(638.40), FiftyTwoWeekLow: f(304.79), Beta: f(1.22),
	},
	"TSLA": {
		Ticker: "TSLA", CompanyName: "Tesla Inc.", Sector: "Consumer Cyclical", Industry: "Auto Manufacturers",
		MarketCap: f(1_200_000_000_000), CurrentPrice: f(380.00), Revenue: f(97_690_000_000), RevenueGrowthYoY: f(1.1),
		GrossMargin: f(17.9), OperatingMargin: f(7.2), NetMargin: f(5.8), EBITDA: f(12_100_000_000), EBITDAMargin: f(12.4),
		PERatio: f(125.0), PBRatio: f(18.5), PSRatio: f(12.3), EVToEBITDA: f(105.0), EPS: f(2.04),
		ROE: f(15.0), ROA: f(7.4), DebtToEquity: f(0.17), CurrentRatio: f(1.84),
		FreeCashFlow: f(3_630_000_000), FreeCashFlowYield: f(0.3),
		FiftyTwoWeekHigh: f(488.54), FiftyTwoWeekLow: f(138.80), Beta: f(2.29),
	},
	"JNJ": {
		Ticker: "JNJ", CompanyName: "Johnson & Johnson", Sector: "Healthcare", Industry: "Drug Manufacturers",
		MarketCap: f(380_000_000_000), CurrentPrice: f(158.00), Revenue: f(88_821_000_000), RevenueGrowthYoY: f(6.5),
		GrossMargin: f(68.8), OperatingMargin: f(19.7), NetMargin: f(16.8), EBITDA: f(27_400_000_000), EBITDAMargin: f(30.8),
		PERatio: f(15.2), PBRatio: f(5.1), PSRatio: f(4.3), EVToEBITDA: f(13.5), EPS: f(10.40),
		ROE: f(33.4), ROA: f(11.3), DebtToEquity: f(0.54), CurrentRatio: f(1.13),
		FreeCashFlow: f(18_500_000_000), FreeCashFlowYield: f(4.9), DividendYield: f(3.1),
		FiftyTwoWeekHigh: f(175.97), FiftyTwoWeekLow: f(143.13), Beta: f(0.57),
	},
}

// defaultPeers 深度模式未指定同业时使用
var defaultPeers = map[string][]string{
	"AAPL":  {"MSFT", "GOOGL", "META"},
	"MSFT":  {"AAPL", "GOOGL", "AMZN"},
	"GOOGL": {"META", "MSFT", "AMZN"},
	"NVDA":  {"AMD", "INTC", "AVGO"},
	"TSLA":  {"GM", "F", "RIVN"},
	"JNJ":   {"PFE", "ABBV", "MRK"},
	"META":  {"GOOGL", "SNAP", "PINS"},
}

// Reference 返回参考数据副本，未知代码返回通用画像
func Reference(ticker string) scoring.FinancialMetrics {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	var out scoring.FinancialMetrics
	if m, ok := referenceCompanies[t]; ok {
		out.Overlay(m)
		return out
	}
	return scoring.FinancialMetrics{
		Ticker:           t,
		CompanyName:      t + " Corporation",
		Sector:           "Unknown",
		Industry:         "Unknown",
		MarketCap:        f(10_000_000_000),
		CurrentPrice:     f(100),
		PERatio:          f(20),
		RevenueGrowthYoY: f(8),
		GrossMargin:      f(40),
		NetMargin:        f(10),
		ROE:              f(15),
		DebtToEquity:     f(0.5),
	}
}

// IsReference 是否有内置参考数据
func IsReference(ticker string) bool {
	_, ok := referenceCompanies[strings.ToUpper(strings.TrimSpace(ticker))]
	return ok
}

// DefaultPeers 默认同业列表副本
func DefaultPeers(ticker string) []string {
	return append([]string{}, defaultPeers[strings.ToUpper(strings.TrimSpace(ticker))]...)
}
