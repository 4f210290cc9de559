package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/equitymind-ai/equitymind/internal/analysis"
	"github.com/equitymind-ai/equitymind/internal/marketdata"
	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/profile"
	"github.com/equitymind-ai/equitymind/internal/storage"
	apperrors "github.com/equitymind-ai/equitymind/pkg/errors"
)

// AnalysisService 由 analysis.Service 实现
type AnalysisService interface {
	Analyze(ctx context.Context, req analysis.AnalyzeRequest) (*memo.InvestmentMemo, error)
	Clarify(ctx context.Context, req analysis.ClarifyRequest) analysis.ClarifyResponse
	History(ctx context.Context, limit int) ([]storage.HistoryItem, error)
	Profile(ctx context.Context) (profile.UserProfile, error)
	UpdateProfile(ctx context.Context, patch profile.Patch) (profile.UserProfile, error)
	Recommendations(ctx context.Context, current string) ([]string, error)
	Metrics(ctx context.Context, ticker string) (*marketdata.Profile, error)
	TickerTape(ctx context.Context) *marketdata.Tape
}

// Handler HTTP 处理器
type Handler struct {
	svc AnalysisService
}

// NewHandler 创建处理器
func NewHandler(svc AnalysisService) *Handler {
	return &Handler{svc: svc}
}

func invalidInput(c *gin.Context, err error) {
	_ = c.Error(apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
}

// Analyze POST /api/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req analysis.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}

	m, err := h.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Clarify POST /api/clarify
func (h *Handler) Clarify(c *gin.Context) {
	var req analysis.ClarifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Clarify(c.Request.Context(), req))
}

// History GET /api/history?limit=
func (h *Handler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			_ = c.Error(apperrors.WithMessage(apperrors.ErrInvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	items, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetMemory GET /api/memory
func (h *Handler) GetMemory(c *gin.Context) {
	p, err := h.svc.Profile(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateMemory POST /api/memory
func (h *Handler) UpdateMemory(c *gin.Context) {
	var patch profile.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		invalidInput(c, err)
		return
	}

	p, err := h.svc.UpdateProfile(c.Request.Context(), patch)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Recommendations GET /api/recommendations?ticker=
func (h *Handler) Recommendations(c *gin.Context) {
	recs, err := h.svc.Recommendations(c.Request.Context(), c.Query("ticker"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recs})
}

// Metrics GET /api/metrics/:ticker
func (h *Handler) Metrics(c *gin.Context) {
	p, err := h.svc.Metrics(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// TickerData GET /api/ticker-data
func (h *Handler) TickerData(c *gin.Context) {
	c.Header("Cache-Control", "public, s-maxage=30, stale-while-revalidate=60")
	c.JSON(http.StatusOK, h.svc.TickerTape(c.Request.Context()))
}
