package marketdata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/equitymind-ai/equitymind/pkg/cache"
)

// TickerItem 行情条目
type TickerItem struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	Change        string `json:"change"`
	ChangePercent string `json:"changePercent"`
	Up            bool   `json:"up"`
	Region        string `json:"region"`
}

// Tape 行情带快照
type Tape struct {
	Tickers []TickerItem `json:"tickers"`
	Source  string       `json:"source"`
	TS      int64        `json:"ts"`
}

// 行情带来源
const (
	TapeLive     = "live"
	TapeFallback = "fallback"
)

type tapeSymbol struct {
	Symbol string
	Name   string
	Region string
}

// tapeSymbols 默认展示的指数、蓝筹股与汇率
var tapeSymbols = []tapeSymbol{
	{"^NSEI", "NIFTY 50", "IN"},
	{"^BSESN", "SENSEX", "IN"},
	{"^NSEBANK", "BANK NIFTY", "IN"},
	{"^CNXIT", "NIFTY IT", "IN"},
	{"^CNXAUTO", "NIFTY AUTO", "IN"},
	{"^CNXPHARMA", "NIFTY PHARMA", "IN"},
	{"^CNXFMCG", "NIFTY FMCG", "IN"},
	{"^CNXMIDCAP", "NIFTY MIDCAP 100", "IN"},
	{"^CNXSMALLCAP", "NIFTY SMALLCAP", "IN"},
	{"^NSMIDCP100", "MIDCAP SELECT", "IN"},
	{"RELIANCE.NS", "RELIANCE", "IN"},
	{"TCS.NS", "TCS", "IN"},
	{"HDFCBANK.NS", "HDFC BANK", "IN"},
	{"INFY.NS", "INFOSYS", "IN"},
	{"ICICIBANK.NS", "ICICI BANK", "IN"},
	{"WIPRO.NS", "WIPRO", "IN"},
	{"SBIN.NS", "SBI", "IN"},
	{"BAJFINANCE.NS", "BAJAJ FIN", "IN"},
	{"USDINR=X", "USD/INR", "FX"},
	{"GBPINR=X", "GBP/INR", "FX"},
}

// fallbackTape 实时行情不可用时的静态数据
var fallbackTape = []TickerItem{
	{Symbol: "^NSEI", Name: "NIFTY 50", Price: "22,147.00", Change: "+112.35", ChangePercent: "+0.51%", Up: true, Region: "IN"},
	{Symbol: "^BSESN", Name: "SENSEX", Price: "73,018.00", Change: "+381.60", ChangePercent: "+0.52%", Up: true, Region: "IN"},
	{Symbol: "^NSEBANK", Name: "BANK NIFTY", Price: "47,340.00", Change: "-234.20", ChangePercent: "-0.49%", Up: false, Region: "IN"},
	{Symbol: "^CNXIT", Name: "NIFTY IT", Price: "37,825.00", Change: "+523.10", ChangePercent: "+1.40%", Up: true, Region: "IN"},
	{Symbol: "^CNXAUTO", Name: "NIFTY AUTO", Price: "21,450.00", Change: "+98.40", ChangePercent: "+0.46%", Up: true, Region: "IN"},
	{Symbol: "RELIANCE.NS", Name: "RELIANCE", Price: "₹2,879.45", Change: "+34.20", ChangePercent: "+1.20%", Up: true, Region: "IN"},
	{Symbol: "TCS.NS", Name: "TCS", Price: "₹4,012.30", Change: "-18.70", ChangePercent: "-0.46%", Up: false, Region: "IN"},
	{Symbol: "HDFCBANK.NS", Name: "HDFC BANK", Price: "₹1,653.20", Change: "+12.50", ChangePercent: "+0.76%", Up: true, Region: "IN"},
	{Symbol: "INFY.NS", Name: "INFOSYS", Price: "₹1,876.55", Change: "+29.80", ChangePercent: "+1.61%", Up: true, Region: "IN"},
	{Symbol: "USDINR=X", Name: "USD/INR", Price: "₹83.42", Change: "+0.12", ChangePercent: "+0.14%", Up: true, Region: "FX"},
}

type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			ShortName                  string   `json:"shortName"`
			RegularMarketPrice         *float64 `json:"regularMarketPrice"`
			RegularMarketChange        *float64 `json:"regularMarketChange"`
			RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// TickerTape 定时刷新并缓存行情带
type TickerTape struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
	cache      cache.Cache
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.RWMutex
	current *Tape
	cron    *cron.Cron
}

// NewTickerTape 创建行情带，c 可为 nil
func NewTickerTape(httpClient *http.Client, baseURL string, c cache.Cache, logger *zap.Logger) *TickerTape {
	if baseURL == "" {
		baseURL = yahooBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickerTape{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cache:      c,
		logger:     logger.With(zap.String("component", "ticker_tape")),
		now:        time.Now,
	}
}

// Refresh 拉取实时报价，失败或无有效报价时使用静态数据
func (t *TickerTape) Refresh(ctx context.Context) *Tape {
	var tape *Tape
	items, err := t.fetch(ctx)
	if err != nil || len(items) == 0 {
		if err != nil {
			t.logger.Warn("Ticker tape refresh failed, using fallback", zap.Error(err))
		}
		tape = FallbackTape(t.now())
	} else {
		tape = &Tape{Tickers: items, Source: TapeLive, TS: t.now().UnixMilli()}
	}

	t.mu.Lock()
	t.current = tape
	t.mu.Unlock()

	if t.cache != nil {
		if err := cache.SetJSON(ctx, t.cache, cache.TickerTapeKey, tape, 0); err != nil {
			t.logger.Warn("Failed to cache ticker tape", zap.Error(err))
		}
	}
	return tape
}

// FallbackTape 静态行情带
func FallbackTape(now time.Time) *Tape {
	return &Tape{
		Tickers: append([]TickerItem{}, fallbackTape...),
		Source:  TapeFallback,
		TS:      now.UnixMilli(),
	}
}

// Current 返回最近一次快照；内存为空时读缓存，再不行则同步刷新
func (t *TickerTape) Current(ctx context.Context) *Tape {
	t.mu.RLock()
	cur := t.current
	t.mu.RUnlock()
	if cur != nil {
		return cur
	}

	if t.cache != nil {
		var tape Tape
		if hit, err := cache.GetJSON(ctx, t.cache, cache.TickerTapeKey, &tape); err == nil && hit {
			t.mu.Lock()
			t.current = &tape
			t.mu.Unlock()
			return &tape
		}
	}
	return t.Refresh(ctx)
}

// Start 按 cron 表达式定时刷新，例如 "@every 60s"
func (t *TickerTape) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		t.Refresh(ctx)
	}); err != nil {
		return fmt.Errorf("schedule ticker tape refresh: %w", err)
	}
	c.Start()

	t.mu.Lock()
	t.cron = c
	t.mu.Unlock()
	return nil
}

// Stop 停止定时刷新
func (t *TickerTape) Stop() {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (t *TickerTape) fetch(ctx context.Context) ([]TickerItem, error) {
	symbols := make([]string, len(tapeSymbols))
	for i, s := range tapeSymbols {
		symbols[i] = s.Symbol
	}
	endpoint := fmt.Sprintf("%s/v7/finance/quote?symbols=%s&lang=en-US&region=IN&corsDomain=finance.yahoo.com",
		t.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	var resp yahooQuoteResponse
	if err := getJSON(ctx, t.httpClient, "yahoo_quote", endpoint, &resp); err != nil {
		return nil, err
	}

	items := make([]TickerItem, 0, len(resp.QuoteResponse.Result))
	for _, q := range resp.QuoteResponse.Result {
		if q.RegularMarketPrice == nil {
			continue
		}
		change, pct := 0.0, 0.0
		if q.RegularMarketChange != nil {
			change = *q.RegularMarketChange
		}
		if q.RegularMarketChangePercent != nil {
			pct = *q.RegularMarketChangePercent
		}
		name, region := lookupSymbol(q.Symbol, q.ShortName)
		price := FormatIndian(*q.RegularMarketPrice)
		if strings.HasSuffix(q.Symbol, ".NS") || region == "FX" {
			price = "₹" + price
		}
		items = append(items, TickerItem{
			Symbol:        q.Symbol,
			Name:          name,
			Price:         price,
			Change:        signed(change, ""),
			ChangePercent: signed(pct, "%"),
			Up:            change >= 0,
			Region:        region,
		})
	}
	return items, nil
}

func lookupSymbol(symbol, shortName string) (string, string) {
	for _, s := range tapeSymbols {
		if s.Symbol == symbol {
			return s.Name, s.Region
		}
	}
	if shortName == "" {
		shortName = symbol
	}
	return shortName, "GL"
}

func signed(v float64, suffix string) string {
	if v >= 0 {
		return fmt.Sprintf("+%.2f%s", v, suffix)
	}
	return fmt.Sprintf("%.2f%s", v, suffix)
}

// FormatIndian 按印度数字分组格式化，保留两位小数，例如 1234567.5 -> 12,34,567.50
func FormatIndian(v float64) string {
	neg := v < 0
	s := fmt.Sprintf("%.2f", math.Abs(v))
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	if len(intPart) > 3 {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		intPart = strings.Join(groups, ",") + "," + tail
	}
	if neg {
		return "-" + intPart + frac
	}
	return intPart + frac
}
