package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/equitymind-ai/equitymind/internal/scoring"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// MetricsProvider 返回部分填充的财务快照
type MetricsProvider interface {
	Name() string
	Fetch(ctx context.Context, ticker string) (scoring.FinancialMetrics, error)
}

// FinnhubProvider 公司概况、报价与基础财务指标
type FinnhubProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	apiKey     string
	now        func() time.Time
}

// NewFinnhubProvider 创建 Finnhub 数据源
func NewFinnhubProvider(httpClient *http.Client, baseURL, apiKey string) *FinnhubProvider {
	if baseURL == "" {
		baseURL = finnhubBaseURL
	}
	return &FinnhubProvider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		now:        time.Now,
	}
}

func (p *FinnhubProvider) Name() string { return "finnhub" }

type finnhubProfile struct {
	Name                 string   `json:"name"`
	FinnhubIndustry      string   `json:"finnhubIndustry"`
	MarketCapitalization *float64 `json:"marketCapitalization"`
}

type finnhubQuote struct {
	Current *float64 `json:"c"`
}

type finnhubMetrics struct {
	Metric map[string]interface{} `json:"metric"`
}

// finnhubMetricFields Finnhub metric 字段到 FinancialMetrics JSON 字段的映射
var finnhubMetricFields = map[string]string{
	"peInclExtraTTM":                 "peRatio",
	"pbQuarterly":                    "pbRatio",
	"epsInclExtraItemsTTM":           "eps",
	"52WeekHigh":                     "fiftyTwoWeekHigh",
	"52WeekLow":                      "fiftyTwoWeekLow",
	"beta":                           "beta",
	"roeTTM":                         "roe",
	"roaTTM":                         "roa",
	"grossMarginTTM":                 "grossMargin",
	"operatingMarginTTM":             "operatingMargin",
	"netMarginTTM":                   "netMargin",
	"revenueGrowthTTMYoy":            "revenueGrowthYoY",
	"totalDebt/totalEquityQuarterly": "debtToEquity",
	"currentRatioQuarterly":          "currentRatio",
	"dividendYieldIndicatedAnnual":   "dividendYield",
}

// Fetch 并发请求三个接口，任一成功即返回部分数据；未配置密钥时返回空快照
func (p *FinnhubProvider) Fetch(ctx context.Context, ticker string) (scoring.FinancialMetrics, error) {
	out := scoring.FinancialMetrics{}
	if p.apiKey == "" {
		return out, nil
	}
	symbol := url.QueryEscape(ticker)

	var (
		wg      sync.WaitGroup
		profile finnhubProfile
		quote   finnhubQuote
		basics  finnhubMetrics
		errs    [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		errs[0] = getJSON(ctx, p.httpClient, p.Name(), p.endpoint("/stock/profile2?symbol="+symbol), &profile)
	}()
	go func() {
		defer wg.Done()
		errs[1] = getJSON(ctx, p.httpClient, p.Name(), p.endpoint("/quote?symbol="+symbol), &quote)
	}()
	go func() {
		defer wg.Done()
		errs[2] = getJSON(ctx, p.httpClient, p.Name(), p.endpoint("/stock/metric?symbol="+symbol+"&metric=all"), &basics)
	}()
	wg.Wait()

	if errs[0] != nil && errs[1] != nil && errs[2] != nil {
		return out, errors.Join(errs[:]...)
	}

	out.Ticker = strings.ToUpper(ticker)
	out.CompanyName = profile.Name
	out.Sector = profile.FinnhubIndustry
	out.Industry = profile.FinnhubIndustry
	if mc := nonZero(profile.MarketCapitalization); mc != nil {
		out.MarketCap = scoring.Float(*mc * 1e6)
	}
	out.CurrentPrice = nonZero(quote.Current)

	for src, dst := range finnhubMetricFields {
		v := numberFromAny(basics.Metric[src])
		if v == nil {
			continue
		}
		out.Set(dst, *v)
	}
	out.DataTimestamp = p.now().UTC().Format(time.RFC3339)
	return out, nil
}

func (p *FinnhubProvider) endpoint(path string) string {
	return p.baseURL + path + "&token=" + url.QueryEscape(p.apiKey)
}
