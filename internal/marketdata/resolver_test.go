package marketdata

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitymind-ai/equitymind/internal/scoring"
	"github.com/equitymind-ai/equitymind/pkg/cache"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
)

type stubMetrics struct {
	name  string
	m     scoring.FinancialMetrics
	err   error
	calls int32
}

func (s *stubMetrics) Name() string { return s.name }

func (s *stubMetrics) Fetch(_ context.Context, ticker string) (scoring.FinancialMetrics, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.m, s.err
}

type stubFundamentals struct {
	f   Fundamentals
	err error
}

func (s *stubFundamentals) Fundamentals(context.Context, string) (Fundamentals, error) {
	return s.f, s.err
}

func liveFinnhub() *stubMetrics {
	return &stubMetrics{name: "finnhub", m: scoring.FinancialMetrics{
		Ticker:       "AAPL",
		CompanyName:  "Apple Inc",
		Sector:       "Technology",
		Industry:     "Technology",
		CurrentPrice: scoring.Float(230),
		PERatio:      scoring.Float(34),
		Revenue:      scoring.Float(1),
	}}
}

func TestResolver_BlankTicker(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
}

func TestResolver_NoProvidersUsesReference(t *testing.T) {
	r := NewResolver(nil)
	p, err := r.Resolve(context.Background(), " aapl ")
	require.NoError(t, err)

	assert.Equal(t, scoring.SourceMock, p.Source)
	assert.Equal(t, "AAPL", p.Metrics.Ticker)
	assert.Equal(t, "Apple Inc.", p.Metrics.CompanyName)
	assert.Equal(t, []string{"MSFT", "GOOGL", "META"}, p.DefaultPeers)
	require.NotNil(t, p.Metrics.PERatio)
	assert.Equal(t, 32.5, *p.Metrics.PERatio)
	assert.NotEmpty(t, p.Metrics.DataTimestamp)
}

func TestResolver_LiveMerge(t *testing.T) {
	fund := &stubFundamentals{f: Fundamentals{
		Revenue:          scoring.Float(400e9),
		RevenueGrowthYoY: scoring.Float(4.5),
	}}
	r := NewResolver(nil, WithFinnhub(liveFinnhub()), WithFundamentals(fund))

	p, err := r.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, scoring.SourceLive, p.Source)

	m := p.Metrics
	assert.Equal(t, "Apple Inc", m.CompanyName)
	assert.Equal(t, 230.0, *m.CurrentPrice)
	assert.Equal(t, 34.0, *m.PERatio)
	// 未被实时数据覆盖的字段保留参考值
	assert.Equal(t, 44.1, *m.GrossMargin)
	// 营收、EBITDA、FCF 只取 Alpha Vantage
	assert.Equal(t, 400e9, *m.Revenue)
	assert.Nil(t, m.EBITDA)
	assert.Nil(t, m.FreeCashFlow)
	assert.Equal(t, 4.5, *m.RevenueGrowthYoY)
}

func TestResolver_GrowthFallsBackToFinnhub(t *testing.T) {
	fh := liveFinnhub()
	fh.m.RevenueGrowthYoY = scoring.Float(6)
	r := NewResolver(nil, WithFinnhub(fh), WithFundamentals(&stubFundamentals{err: errors.New("boom")}))

	p, err := r.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, scoring.SourceLive, p.Source)
	assert.Equal(t, 6.0, *p.Metrics.RevenueGrowthYoY)
	assert.Nil(t, p.Metrics.Revenue)
}

func TestResolver_SparseLiveDataIsMock(t *testing.T) {
	fh := &stubMetrics{name: "finnhub", m: scoring.FinancialMetrics{
		CompanyName:  "Apple Inc",
		CurrentPrice: scoring.Float(230),
		PERatio:      scoring.Float(34),
	}}
	r := NewResolver(nil, WithFinnhub(fh))

	p, err := r.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, scoring.SourceMock, p.Source)
	assert.Equal(t, 225.50, *p.Metrics.CurrentPrice)
}

func TestResolver_ProviderErrorDegradesToMock(t *testing.T) {
	fh := &stubMetrics{name: "finnhub", err: errors.New("connection refused")}
	r := NewResolver(nil, WithFinnhub(fh))

	p, err := r.Resolve(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.Equal(t, scoring.SourceMock, p.Source)
	assert.Equal(t, "ZZZZ Corporation", p.Metrics.CompanyName)
	assert.Equal(t, "Unknown", p.Metrics.Sector)
	assert.Empty(t, p.DefaultPeers)
}

func TestResolver_YahooForExchangeSuffix(t *testing.T) {
	yahoo := &stubMetrics{name: "yahoo", m: scoring.FinancialMetrics{
		CompanyName:  "Reliance Industries Limited",
		Sector:       "Energy",
		Industry:     "Oil & Gas Refining & Marketing",
		CurrentPrice: scoring.Float(2879.45),
		PERatio:      scoring.Float(27),
	}}
	r := NewResolver(nil, WithYahoo(yahoo))

	p, err := r.Resolve(context.Background(), "RELIANCE.NS")
	require.NoError(t, err)
	assert.Equal(t, scoring.SourceLive, p.Source)
	assert.Equal(t, "Reliance Industries Limited", p.Metrics.CompanyName)

	_, err = r.Resolve(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&yahoo.calls))
}

func TestResolver_CacheAside(t *testing.T) {
	c := cache.NewMemoryCache()
	fh := liveFinnhub()
	r := NewResolver(nil, WithFinnhub(fh), WithCache(c, 0))

	first, err := r.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "aapl")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&fh.calls))
	assert.Equal(t, first.Source, second.Source)
	assert.Equal(t, *first.Metrics.PERatio, *second.Metrics.PERatio)

	raw, err := c.Get(context.Background(), "company:AAPL:metrics")
	require.NoError(t, err)
	assert.Contains(t, raw, `"source":"live"`)

	require.NoError(t, r.Evict(context.Background(), "AAPL"))
	_, err = r.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fh.calls))
}

func TestReference_ReturnsCopy(t *testing.T) {
	a := Reference("AAPL")
	*a.PERatio = 1
	b := Reference("AAPL")
	assert.Equal(t, 32.5, *b.PERatio)

	peers := DefaultPeers("nvda")
	peers[0] = "XXX"
	assert.Equal(t, []string{"AMD", "INTC", "AVGO"}, DefaultPeers("NVDA"))
	assert.True(t, IsReference("jnj"))
	assert.False(t, IsReference("RIVN"))
}
