package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitymind-ai/equitymind/internal/analysis"
	"github.com/equitymind-ai/equitymind/internal/marketdata"
	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/profile"
	"github.com/equitymind-ai/equitymind/internal/scoring"
	"github.com/equitymind-ai/equitymind/internal/storage"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- mock analysis service ---

type mockService struct {
	analyzeFn         func(ctx context.Context, req analysis.AnalyzeRequest) (*memo.InvestmentMemo, error)
	historyFn         func(ctx context.Context, limit int) ([]storage.HistoryItem, error)
	updateProfileFn   func(ctx context.Context, patch profile.Patch) (profile.UserProfile, error)
	recommendationsFn func(ctx context.Context, current string) ([]string, error)
	metricsFn         func(ctx context.Context, ticker string) (*marketdata.Profile, error)
}

func (m *mockService) Analyze(ctx context.Context, req analysis.AnalyzeRequest) (*memo.InvestmentMemo, error) {
	if m.analyzeFn != nil {
		return m.analyzeFn(ctx, req)
	}
	return &memo.InvestmentMemo{ID: "memo-1", Ticker: req.Ticker, Mode: req.Mode}, nil
}

func (m *mockService) Clarify(ctx context.Context, req analysis.ClarifyRequest) analysis.ClarifyResponse {
	return analysis.ClarifyResponse{Questions: memo.DefaultQuestions()}
}

func (m *mockService) History(ctx context.Context, limit int) ([]storage.HistoryItem, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, limit)
	}
	return []storage.HistoryItem{}, nil
}

func (m *mockService) Profile(ctx context.Context) (profile.UserProfile, error) {
	return profile.UserProfile{RiskTolerance: profile.RiskModerate}, nil
}

func (m *mockService) UpdateProfile(ctx context.Context, patch profile.Patch) (profile.UserProfile, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, patch)
	}
	return profile.UserProfile{}, nil
}

func (m *mockService) Recommendations(ctx context.Context, current string) ([]string, error) {
	if m.recommendationsFn != nil {
		return m.recommendationsFn(ctx, current)
	}
	return []string{}, nil
}

func (m *mockService) Metrics(ctx context.Context, ticker string) (*marketdata.Profile, error) {
	if m.metricsFn != nil {
		return m.metricsFn(ctx, ticker)
	}
	return &marketdata.Profile{Metrics: marketdata.Reference(ticker), Source: scoring.SourceMock}, nil
}

func (m *mockService) TickerTape(ctx context.Context) *marketdata.Tape {
	return &marketdata.Tape{Source: marketdata.TapeFallback, Tickers: []marketdata.TickerItem{{Symbol: "^NSEI"}}}
}

func setupRouter(svc AnalysisService, checks map[string]ReadinessCheck) *gin.Engine {
	return NewRouter(NewHandler(svc), checks, nil)
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHandler_Analyze(t *testing.T) {
	var got analysis.AnalyzeRequest
	svc := &mockService{analyzeFn: func(ctx context.Context, req analysis.AnalyzeRequest) (*memo.InvestmentMemo, error) {
		got = req
		return &memo.InvestmentMemo{ID: "memo-1", Ticker: "AAPL", Mode: memo.ModeQuick}, nil
	}}
	r := setupRouter(svc, nil)

	w := doRequest(r, http.MethodPost, "/api/analyze", gin.H{
		"ticker":      "AAPL",
		"mode":        "quick",
		"userQuery":   "Is Apple a buy?",
		"peerTickers": []string{"MSFT", "TCS.NS"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var m memo.InvestmentMemo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, "memo-1", m.ID)
	assert.Equal(t, []string{"MSFT", "TCS.NS"}, got.PeerTickers)
}

func TestHandler_AnalyzeValidation(t *testing.T) {
	r := setupRouter(&mockService{}, nil)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing query", gin.H{"ticker": "AAPL", "mode": "quick"}},
		{"bad mode", gin.H{"ticker": "AAPL", "mode": "turbo", "userQuery": "q"}},
		{"bad ticker", gin.H{"ticker": "AAPL; DROP", "mode": "quick", "userQuery": "q"}},
		{"bad peer", gin.H{"ticker": "AAPL", "mode": "deep", "userQuery": "q", "peerTickers": []string{"!!"}}},
		{"too many peers", gin.H{"ticker": "AAPL", "mode": "deep", "userQuery": "q", "peerTickers": []string{"A", "B", "C", "D", "E", "F"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, http.MethodPost, "/api/analyze", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_INPUT", errorCode(t, w))
		})
	}
}

func TestHandler_AnalyzeErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"api error", apperrors.Wrap(apperrors.ErrDeepModeUnavailable, errors.New("no models")), http.StatusServiceUnavailable, "DEEP_MODE_UNAVAILABLE"},
		{"classified error", apperrors.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unexpected error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{analyzeFn: func(context.Context, analysis.AnalyzeRequest) (*memo.InvestmentMemo, error) {
				return nil, tt.err
			}}
			r := setupRouter(svc, nil)

			w := doRequest(r, http.MethodPost, "/api/analyze", gin.H{"ticker": "AAPL", "mode": "deep", "userQuery": "q"})
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

func TestHandler_Clarify(t *testing.T) {
	r := setupRouter(&mockService{}, nil)

	w := doRequest(r, http.MethodPost, "/api/clarify", gin.H{"ticker": "AAPL", "mode": "deep", "userQuery": "growth"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp analysis.ClarifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Questions, 3)
}

func TestHandler_History(t *testing.T) {
	var gotLimit int
	svc := &mockService{historyFn: func(ctx context.Context, limit int) ([]storage.HistoryItem, error) {
		gotLimit = limit
		return []storage.HistoryItem{{ID: "memo-1", Ticker: "AAPL"}}, nil
	}}
	r := setupRouter(svc, nil)

	w := doRequest(r, http.MethodGet, "/api/history?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)

	var items []storage.HistoryItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 1)

	w = doRequest(r, http.MethodGet, "/api/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Memory(t *testing.T) {
	var got profile.Patch
	svc := &mockService{updateProfileFn: func(ctx context.Context, patch profile.Patch) (profile.UserProfile, error) {
		got = patch
		return profile.UserProfile{RiskTolerance: *patch.RiskTolerance}, nil
	}}
	r := setupRouter(svc, nil)

	w := doRequest(r, http.MethodGet, "/api/memory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"riskTolerance":"moderate"`)

	w = doRequest(r, http.MethodPost, "/api/memory", gin.H{"riskTolerance": "aggressive", "preferredKPIs": []string{"ROE"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got.RiskTolerance)
	assert.Equal(t, profile.RiskAggressive, *got.RiskTolerance)
	assert.Equal(t, []string{"ROE"}, got.PreferredKPIs)

	w = doRequest(r, http.MethodPost, "/api/memory", gin.H{"riskTolerance": "yolo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/memory", gin.H{"investmentHorizon": "forever"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Recommendations(t *testing.T) {
	var gotCurrent string
	svc := &mockService{recommendationsFn: func(ctx context.Context, current string) ([]string, error) {
		gotCurrent = current
		return []string{"MSFT", "GOOGL"}, nil
	}}
	r := setupRouter(svc, nil)

	w := doRequest(r, http.MethodGet, "/api/recommendations?ticker=AAPL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AAPL", gotCurrent)
	assert.JSONEq(t, `{"recommendations":["MSFT","GOOGL"]}`, w.Body.String())
}

func TestHandler_Metrics(t *testing.T) {
	r := setupRouter(&mockService{}, nil)

	w := doRequest(r, http.MethodGet, "/api/metrics/AAPL", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var p marketdata.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Apple Inc.", p.Metrics.CompanyName)
	assert.Equal(t, scoring.SourceMock, p.Source)
}

func TestHandler_TickerData(t *testing.T) {
	r := setupRouter(&mockService{}, nil)

	w := doRequest(r, http.MethodGet, "/api/ticker-data", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "s-maxage=30")

	var tape marketdata.Tape
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tape))
	assert.Equal(t, marketdata.TapeFallback, tape.Source)
}

func TestRouter_HealthAndReadiness(t *testing.T) {
	healthy := setupRouter(&mockService{}, map[string]ReadinessCheck{
		"store": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, doRequest(healthy, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(healthy, http.MethodGet, "/readyz", nil).Code)

	unhealthy := setupRouter(&mockService{}, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w := doRequest(unhealthy, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = doRequest(healthy, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	svc := &mockService{analyzeFn: func(context.Context, analysis.AnalyzeRequest) (*memo.InvestmentMemo, error) {
		panic("unexpected nil")
	}}
	r := setupRouter(svc, nil)

	w := doRequest(r, http.MethodPost, "/api/analyze", gin.H{"ticker": "AAPL", "mode": "quick", "userQuery": "q"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}

func TestRouter_PropagatesRequestID(t *testing.T) {
	r := setupRouter(&mockService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))
}
