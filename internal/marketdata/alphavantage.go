package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"

	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// Fundamentals Alpha Vantage 年报派生的基本面
type Fundamentals struct {
	Revenue          *float64 `json:"revenue,omitempty"`
	RevenueGrowthYoY *float64 `json:"revenueGrowthYoY,omitempty"`
	EBITDA           *float64 `json:"ebitda,omitempty"`
	FreeCashFlow     *float64 `json:"freeCashFlow,omitempty"`
}

// FundamentalsProvider 年报数据源
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, ticker string) (Fundamentals, error)
}

// AlphaVantageProvider 利润表与现金流量表
type AlphaVantageProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	apiKey     string
}

// NewAlphaVantageProvider 创建 Alpha Vantage 数据源
func NewAlphaVantageProvider(httpClient *http.Client, baseURL, apiKey string) *AlphaVantageProvider {
	if baseURL == "" {
		baseURL = alphaVantageBaseURL
	}
	return &AlphaVantageProvider{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

type avIncomeReport struct {
	TotalRevenue string `json:"totalRevenue"`
	EBITDA       string `json:"ebitda"`
}

type avCashFlowReport struct {
	OperatingCashflow   string `json:"operatingCashflow"`
	CapitalExpenditures string `json:"capitalExpenditures"`
}

type avResponse[T any] struct {
	Information   string `json:"Information"`
	Note          string `json:"Note"`
	AnnualReports []T    `json:"annualReports"`
}

// Fundamentals 并发拉取利润表与现金流量表
// 营收增速需要至少两期年报；FCF = 经营现金流 - |资本开支|
func (p *AlphaVantageProvider) Fundamentals(ctx context.Context, ticker string) (Fundamentals, error) {
	var out Fundamentals
	if p.apiKey == "" {
		return out, nil
	}

	var (
		wg       sync.WaitGroup
		income   avResponse[avIncomeReport]
		cashflow avResponse[avCashFlowReport]
		incErr   error
		cfErr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		incErr = fetchAV(ctx, p, "INCOME_STATEMENT", ticker, &income)
	}()
	go func() {
		defer wg.Done()
		cfErr = fetchAV(ctx, p, "CASH_FLOW", ticker, &cashflow)
	}()
	wg.Wait()

	if incErr == nil && len(income.AnnualReports) > 0 {
		latest := income.AnnualReports[0]
		out.Revenue = nonZero(numberFromString(latest.TotalRevenue))
		out.EBITDA = nonZero(numberFromString(latest.EBITDA))
		if len(income.AnnualReports) > 1 {
			prev := nonZero(numberFromString(income.AnnualReports[1].TotalRevenue))
			if out.Revenue != nil && prev != nil {
				growth := (*out.Revenue - *prev) / *prev * 100
				out.RevenueGrowthYoY = &growth
			}
		}
	}

	if cfErr == nil && len(cashflow.AnnualReports) > 0 {
		cf := cashflow.AnnualReports[0]
		if ocf := numberFromString(cf.OperatingCashflow); ocf != nil {
			capex := 0.0
			if c := numberFromString(cf.CapitalExpenditures); c != nil {
				capex = math.Abs(*c)
			}
			fcf := *ocf - capex
			out.FreeCashFlow = &fcf
		}
	}

	if incErr != nil && cfErr != nil {
		return out, fmt.Errorf("alpha vantage: income: %v; cash flow: %w", incErr, cfErr)
	}
	return out, nil
}

func fetchAV[T any](ctx context.Context, p *AlphaVantageProvider, function, ticker string, out *avResponse[T]) error {
	q := url.Values{}
	q.Set("function", function)
	q.Set("symbol", ticker)
	q.Set("apikey", p.apiKey)

	if err := getJSON(ctx, p.httpClient, "alpha_vantage", p.baseURL+"?"+q.Encode(), out); err != nil {
		return err
	}
	// 限流时返回 200 且只带 Information / Note 字段
	if out.Information != "" || out.Note != "" {
		return fmt.Errorf("alpha vantage %s: %w", function, apperrors.ErrRateLimited)
	}
	return nil
}
