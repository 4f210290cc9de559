package analysis

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/mocks"

	"github.com/equitymind-ai/equitymind/internal/marketdata"
	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/profile"
	"github.com/equitymind-ai/equitymind/internal/scoring"
	"github.com/equitymind-ai/equitymind/internal/storage"
	"github.com/equitymind-ai/equitymind/internal/workflow"
	"github.com/equitymind-ai/equitymind/pkg/config"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
	"github.com/equitymind-ai/equitymind/pkg/llm"
)

type mockResolver struct {
	ResolveFunc func(ctx context.Context, ticker string) (*marketdata.Profile, error)
}

func (m *mockResolver) Resolve(ctx context.Context, ticker string) (*marketdata.Profile, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, ticker)
	}
	return &marketdata.Profile{
		Metrics:      marketdata.Reference(ticker),
		DefaultPeers: marketdata.DefaultPeers(ticker),
		Source:       scoring.SourceMock,
	}, nil
}

type mockStore struct {
	saved   []storage.HistoryItem
	patches []profile.Patch
	current profile.UserProfile

	HistoryFunc        func(ctx context.Context, limit int) ([]storage.HistoryItem, error)
	StudiedTickersFunc func(ctx context.Context) ([]string, error)
	SaveErr            error
}

func (m *mockStore) SaveAnalysis(ctx context.Context, item storage.HistoryItem) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.saved = append(m.saved, item)
	return nil
}

func (m *mockStore) History(ctx context.Context, limit int) ([]storage.HistoryItem, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, limit)
	}
	return m.saved, nil
}

func (m *mockStore) StudiedTickers(ctx context.Context) ([]string, error) {
	if m.StudiedTickersFunc != nil {
		return m.StudiedTickersFunc(ctx)
	}
	return nil, nil
}

func (m *mockStore) Profile(ctx context.Context) (profile.UserProfile, error) {
	return m.current, nil
}

func (m *mockStore) UpdateProfile(ctx context.Context, patch profile.Patch) (profile.UserProfile, error) {
	m.patches = append(m.patches, patch)
	m.current = profile.Apply(m.current, patch, time.Now())
	return m.current, nil
}

type mockRunner struct {
	RunDeepFunc func(ctx context.Context, input workflow.DeepMemoInput) (*memo.InvestmentMemo, error)
}

func (m *mockRunner) RunDeep(ctx context.Context, input workflow.DeepMemoInput) (*memo.InvestmentMemo, error) {
	return m.RunDeepFunc(ctx, input)
}

type mockGenerator struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return m.GenerateFunc(ctx, req)
}

func testBuilder() *memo.Builder {
	return memo.NewBuilder(nil,
		memo.WithIDGenerator(func() string { return "memo-1" }),
		memo.WithClock(func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }),
	)
}

func newTestService(store *mockStore, opts ...Option) *Service {
	cfg := config.AnalysisConfig{QuickTimeout: 30 * time.Second, DeepTimeout: 180 * time.Second, MaxPeers: 3}
	return NewService(&mockResolver{}, store, testBuilder(), cfg, nil, opts...)
}

func baseProfile() profile.UserProfile {
	return profile.UserProfile{
		RiskTolerance:     profile.RiskModerate,
		PreferredKPIs:     []string{"Revenue Growth"},
		InvestmentHorizon: profile.HorizonMedium,
	}
}

func TestService_AnalyzeQuick(t *testing.T) {
	store := &mockStore{current: baseProfile()}
	svc := newTestService(store)

	m, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Ticker:    " aapl ",
		Mode:      memo.ModeQuick,
		UserQuery: "How strong is Apple's free cash flow?",
	})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", m.Ticker)
	assert.Equal(t, memo.ModeQuick, m.Mode)
	assert.Equal(t, "memo-1", m.ID)

	require.Len(t, store.saved, 1)
	assert.Equal(t, "memo-1", store.saved[0].ID)

	require.Len(t, store.patches, 1)
	assert.Contains(t, store.current.PreferredKPIs, "Free Cash Flow")
}

func TestService_AnalyzeValidation(t *testing.T) {
	svc := newTestService(&mockStore{current: baseProfile()})

	tests := []struct {
		name string
		req  AnalyzeRequest
	}{
		{"blank ticker", AnalyzeRequest{Ticker: "  ", Mode: memo.ModeQuick, UserQuery: "q"}},
		{"bad mode", AnalyzeRequest{Ticker: "AAPL", Mode: "turbo", UserQuery: "q"}},
		{"blank query", AnalyzeRequest{Ticker: "AAPL", Mode: memo.ModeQuick, UserQuery: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Analyze(context.Background(), tt.req)
			var apiErr *apperrors.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		})
	}
}

func TestService_AnalyzeDeepUsesRunner(t *testing.T) {
	store := &mockStore{current: baseProfile()}
	var got workflow.DeepMemoInput
	runner := &mockRunner{RunDeepFunc: func(ctx context.Context, in workflow.DeepMemoInput) (*memo.InvestmentMemo, error) {
		got = in
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return &memo.InvestmentMemo{ID: "deep-1", Ticker: in.Ticker, Mode: memo.ModeDeep, OverallSentiment: scoring.SentimentBullish}, nil
	}}
	svc := newTestService(store, WithDeepRunner(runner))

	m, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Ticker:      "msft",
		Mode:        memo.ModeDeep,
		UserQuery:   "Compare cloud margins",
		PeerTickers: []string{"GOOGL"},
		Context:     map[string]string{"q1": "Long-term (3+ years)"},
	})
	require.NoError(t, err)
	assert.Equal(t, "deep-1", m.ID)

	assert.Equal(t, "MSFT", got.Ticker)
	assert.Equal(t, []string{"GOOGL"}, got.Peers)
	assert.Equal(t, "Long-term (3+ years)", got.Context["q1"])
	assert.Equal(t, 3, got.MaxPeers)
	assert.Empty(t, store.saved, "deep workflow persists its own history")
}

func TestService_AnalyzeDeepDegrades(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		reason string
	}{
		{"no runner", nil, ReasonDeepDisabled},
		{"engine unreachable", []Option{WithDeepRunner(&mockRunner{RunDeepFunc: func(context.Context, workflow.DeepMemoInput) (*memo.InvestmentMemo, error) {
			return nil, errors.Join(ErrRunnerUnavailable, errors.New("connection refused"))
		}})}, ReasonRunnerUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{current: baseProfile()}
			svc := newTestService(store, tt.opts...)

			m, err := svc.Analyze(context.Background(), AnalyzeRequest{Ticker: "AAPL", Mode: memo.ModeDeep, UserQuery: "Is it cheap?"})
			require.NoError(t, err)
			assert.Equal(t, memo.ModeQuick, m.Mode)
			require.NotEmpty(t, m.Assumptions)
			assert.Contains(t, m.Assumptions[0], tt.reason)
			assert.Len(t, store.saved, 1)
		})
	}
}

func TestService_AnalyzeDeepFailure(t *testing.T) {
	runner := &mockRunner{RunDeepFunc: func(context.Context, workflow.DeepMemoInput) (*memo.InvestmentMemo, error) {
		return nil, context.DeadlineExceeded
	}}
	svc := newTestService(&mockStore{current: baseProfile()}, WithDeepRunner(runner))

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{Ticker: "AAPL", Mode: memo.ModeDeep, UserQuery: "q"})
	var apiErr *apperrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusGatewayTimeout, apiErr.StatusCode)
}

func TestService_AnalyzeSaveFailureIsNotFatal(t *testing.T) {
	store := &mockStore{current: baseProfile(), SaveErr: errors.New("disk full")}
	svc := newTestService(store)

	m, err := svc.Analyze(context.Background(), AnalyzeRequest{Ticker: "AAPL", Mode: memo.ModeQuick, UserQuery: "q"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestService_Clarify(t *testing.T) {
	t.Run("model questions", func(t *testing.T) {
		gen := &mockGenerator{GenerateFunc: func(ctx context.Context, req llm.Request) (*llm.Response, error) {
			assert.Equal(t, llm.ModeQuick, req.Mode)
			assert.Contains(t, req.Prompt, "AAPL")
			return &llm.Response{Text: `[{"question":"Which segment?","type":"select","options":["iPhone","Services"]}]`}, nil
		}}
		svc := newTestService(&mockStore{}, WithGenerator(gen))

		resp := svc.Clarify(context.Background(), ClarifyRequest{Ticker: "aapl", Mode: memo.ModeDeep, UserQuery: "growth?"})
		require.Len(t, resp.Questions, 1)
		assert.Equal(t, "q1", resp.Questions[0].ID)
		assert.Equal(t, "Which segment?", resp.Questions[0].Question)
	})

	t.Run("model failure", func(t *testing.T) {
		gen := &mockGenerator{GenerateFunc: func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, apperrors.ErrLLMUnavailable
		}}
		svc := newTestService(&mockStore{}, WithGenerator(gen))

		resp := svc.Clarify(context.Background(), ClarifyRequest{Ticker: "AAPL", Mode: memo.ModeDeep})
		assert.Equal(t, memo.DefaultQuestions(), resp.Questions)
	})

	t.Run("no model", func(t *testing.T) {
		svc := newTestService(&mockStore{})
		resp := svc.Clarify(context.Background(), ClarifyRequest{Ticker: "AAPL", Mode: memo.ModeQuick})
		assert.Len(t, resp.Questions, 3)
	})
}

func TestService_HistoryDefaultLimit(t *testing.T) {
	var gotLimit int
	store := &mockStore{HistoryFunc: func(ctx context.Context, limit int) ([]storage.HistoryItem, error) {
		gotLimit = limit
		return []storage.HistoryItem{}, nil
	}}
	svc := newTestService(store)

	_, err := svc.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 20, gotLimit)
}

func TestService_Recommendations(t *testing.T) {
	store := &mockStore{StudiedTickersFunc: func(context.Context) ([]string, error) {
		return []string{"AAPL", "MSFT"}, nil
	}}
	svc := newTestService(store)

	recs, err := svc.Recommendations(context.Background(), "aapl")
	require.NoError(t, err)
	assert.NotContains(t, recs, "AAPL")
	assert.NotContains(t, recs, "MSFT")
	assert.LessOrEqual(t, len(recs), 5)
	assert.Equal(t, "GOOGL", recs[0])
}

func TestService_TickerTapeFallback(t *testing.T) {
	svc := newTestService(&mockStore{})
	tape := svc.TickerTape(context.Background())
	assert.Equal(t, marketdata.TapeFallback, tape.Source)
	assert.NotEmpty(t, tape.Tickers)
}

func TestTemporalRunner_RunDeep(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("deep-memo-aapl-1")
	run.On("GetRunID").Return("run-1")
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(1).(*memo.InvestmentMemo)
		*out = memo.InvestmentMemo{ID: "deep-1", Ticker: "AAPL", Mode: memo.ModeDeep}
	}).Return(nil)
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, workflow.DeepMemoWorkflowName, mock.Anything).Return(run, nil)

	r := NewTemporalRunner(c, "equitymind-deep", nil)
	m, err := r.RunDeep(context.Background(), workflow.DeepMemoInput{Ticker: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "deep-1", m.ID)
	c.AssertExpectations(t)
}

func TestTemporalRunner_StartFailure(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, workflow.DeepMemoWorkflowName, mock.Anything).
		Return(nil, errors.New("connection refused"))

	r := NewTemporalRunner(c, "equitymind-deep", nil)
	_, err := r.RunDeep(context.Background(), workflow.DeepMemoInput{Ticker: "AAPL"})
	assert.ErrorIs(t, err, ErrRunnerUnavailable)
}

func TestTemporalRunner_CancelsOnDeadline(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("deep-memo-aapl-2")
	run.On("GetRunID").Return("run-2")
	run.On("Get", mock.Anything, mock.Anything).Return(context.DeadlineExceeded)
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, workflow.DeepMemoWorkflowName, mock.Anything).Return(run, nil)
	c.On("CancelWorkflow", mock.Anything, "deep-memo-aapl-2", "run-2").Return(nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	r := NewTemporalRunner(c, "equitymind-deep", nil)
	_, err := r.RunDeep(ctx, workflow.DeepMemoInput{Ticker: "AAPL"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	c.AssertCalled(t, "CancelWorkflow", mock.Anything, "deep-memo-aapl-2", "run-2")
}
