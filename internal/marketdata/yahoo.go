package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/equitymind-ai/equitymind/internal/scoring"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooProvider NSE / BSE 个股的 quoteSummary 数据
type YahooProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	now        func() time.Time
}

// NewYahooProvider 创建 Yahoo Finance 数据源
func NewYahooProvider(httpClient *http.Client, baseURL string) *YahooProvider {
	if baseURL == "" {
		baseURL = yahooBaseURL
	}
	return &YahooProvider{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (p *YahooProvider) Name() string { return "yahoo" }

type yahooRaw struct {
	Raw *float64 `json:"raw"`
}

type yahooSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				RegularMarketPrice yahooRaw `json:"regularMarketPrice"`
				MarketCap          yahooRaw `json:"marketCap"`
				ShortName          string   `json:"shortName"`
				LongName           string   `json:"longName"`
			} `json:"price"`
			SummaryDetail struct {
				PreviousClose    yahooRaw `json:"previousClose"`
				FiftyTwoWeekHigh yahooRaw `json:"fiftyTwoWeekHigh"`
				FiftyTwoWeekLow  yahooRaw `json:"fiftyTwoWeekLow"`
				MarketCap        yahooRaw `json:"marketCap"`
				TrailingPE       yahooRaw `json:"trailingPE"`
				Beta             yahooRaw `json:"beta"`
				DividendYield    yahooRaw `json:"dividendYield"`
				PriceToSalesTTM  yahooRaw `json:"priceToSalesTrailing12Months"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				TrailingPE         yahooRaw `json:"trailingPE"`
				PriceToBook        yahooRaw `json:"priceToBook"`
				TrailingEps        yahooRaw `json:"trailingEps"`
				EnterpriseToEbitda yahooRaw `json:"enterpriseToEbitda"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				TotalRevenue     yahooRaw `json:"totalRevenue"`
				GrossProfits     yahooRaw `json:"grossProfits"`
				FreeCashflow     yahooRaw `json:"freeCashflow"`
				ReturnOnEquity   yahooRaw `json:"returnOnEquity"`
				ReturnOnAssets   yahooRaw `json:"returnOnAssets"`
				CurrentRatio     yahooRaw `json:"currentRatio"`
				DebtToEquity     yahooRaw `json:"debtToEquity"`
				OperatingMargins yahooRaw `json:"operatingMargins"`
				ProfitMargins    yahooRaw `json:"profitMargins"`
				GrossMargins     yahooRaw `json:"grossMargins"`
				RevenueGrowth    yahooRaw `json:"revenueGrowth"`
				EBITDA           yahooRaw `json:"ebitda"`
			} `json:"financialData"`
			AssetProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"assetProfile"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// HasExchangeSuffix 判断是否为带交易所后缀的代码，例如 TCS.NS
func HasExchangeSuffix(ticker string) bool {
	return strings.Contains(ticker, ".")
}

// Fetch 先查询 NSE 代码，失败时退回 BSE
func (p *YahooProvider) Fetch(ctx context.Context, ticker string) (scoring.FinancialMetrics, error) {
	symbol := strings.ToUpper(ticker)
	if !HasExchangeSuffix(symbol) {
		symbol += ".NS"
	}

	m, err := p.fetchSymbol(ctx, ticker, symbol)
	if err != nil && strings.HasSuffix(symbol, ".NS") {
		return p.fetchSymbol(ctx, ticker, strings.TrimSuffix(symbol, ".NS")+".BO")
	}
	return m, err
}

func (p *YahooProvider) fetchSymbol(ctx context.Context, ticker, symbol string) (scoring.FinancialMetrics, error) {
	modules := "summaryDetail,financialData,defaultKeyStatistics,assetProfile,price"
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s", p.baseURL, url.PathEscape(symbol), modules)

	var resp yahooSummaryResponse
	if err := getJSON(ctx, p.httpClient, p.Name(), endpoint, &resp); err != nil {
		return scoring.FinancialMetrics{}, err
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return scoring.FinancialMetrics{}, fmt.Errorf("yahoo: no result for %s", symbol)
	}
	r := resp.QuoteSummary.Result[0]
	fd := r.FinancialData

	out := scoring.FinancialMetrics{
		Ticker:           strings.ToUpper(ticker),
		CompanyName:      firstNonEmpty(r.Price.LongName, r.Price.ShortName, strings.ToUpper(ticker)+" Ltd"),
		Sector:           r.AssetProfile.Sector,
		Industry:         r.AssetProfile.Industry,
		CurrentPrice:     firstNonNil(r.Price.RegularMarketPrice.Raw, r.SummaryDetail.PreviousClose.Raw),
		FiftyTwoWeekHigh: r.SummaryDetail.FiftyTwoWeekHigh.Raw,
		FiftyTwoWeekLow:  r.SummaryDetail.FiftyTwoWeekLow.Raw,
		MarketCap:        firstNonNil(r.Price.MarketCap.Raw, r.SummaryDetail.MarketCap.Raw),
		PERatio:          firstNonNil(r.SummaryDetail.TrailingPE.Raw, r.DefaultKeyStatistics.TrailingPE.Raw),
		PBRatio:          r.DefaultKeyStatistics.PriceToBook.Raw,
		PSRatio:          r.SummaryDetail.PriceToSalesTTM.Raw,
		EVToEBITDA:       r.DefaultKeyStatistics.EnterpriseToEbitda.Raw,
		EPS:              r.DefaultKeyStatistics.TrailingEps.Raw,
		Beta:             r.SummaryDetail.Beta.Raw,
		DividendYield:    scaled(nonZero(r.SummaryDetail.DividendYield.Raw), 100),
		Revenue:          fd.TotalRevenue.Raw,
		EBITDA:           fd.EBITDA.Raw,
		OperatingMargin:  scaled(nonZero(fd.OperatingMargins.Raw), 100),
		NetMargin:        scaled(nonZero(fd.ProfitMargins.Raw), 100),
		RevenueGrowthYoY: scaled(nonZero(fd.RevenueGrowth.Raw), 100),
		ROE:              scaled(nonZero(fd.ReturnOnEquity.Raw), 100),
		ROA:              scaled(nonZero(fd.ReturnOnAssets.Raw), 100),
		DebtToEquity:     scaled(nonZero(fd.DebtToEquity.Raw), 0.01), // Yahoo 以百分比返回
		CurrentRatio:     fd.CurrentRatio.Raw,
		FreeCashFlow:     fd.FreeCashflow.Raw,
		DataTimestamp:    p.now().UTC().Format(time.RFC3339),
	}

	out.GrossMargin = scaled(nonZero(fd.GrossMargins.Raw), 100)
	if out.GrossMargin == nil {
		if rev, gp := nonZero(fd.TotalRevenue.Raw), fd.GrossProfits.Raw; rev != nil && gp != nil {
			out.GrossMargin = scoring.Float(*gp / *rev * 100)
		}
	}
	out.Normalize()
	return out, nil
}

func scaled(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	return scoring.Float(*v * factor)
}

func firstNonNil(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
