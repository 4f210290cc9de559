// Package server HTTP API：路由、中间件、请求校验与健康检查
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessCheck 就绪检查，返回 nil 表示依赖可用
type ReadinessCheck func(ctx context.Context) error

const readinessTimeout = 2 * time.Second

// NewRouter 注册所有路由
func NewRouter(h *Handler, checks map[string]ReadinessCheck, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	RegisterValidators()

	r := gin.New()
	r.Use(RequestLogging(logger), Recovery(logger), ErrorHandler(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", readyz(checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/analyze", h.Analyze)
	api.POST("/clarify", h.Clarify)
	api.GET("/history", h.History)
	api.GET("/memory", h.GetMemory)
	api.POST("/memory", h.UpdateMemory)
	api.GET("/recommendations", h.Recommendations)
	api.GET("/metrics/:ticker", h.Metrics)
	api.GET("/ticker-data", h.TickerData)

	return r
}

// CheckReadiness 执行全部检查，返回失败项及原因
func CheckReadiness(ctx context.Context, checks map[string]ReadinessCheck) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	failures := map[string]string{}
	for name, check := range checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	return failures
}

func readyz(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if failures := CheckReadiness(c.Request.Context(), checks); len(failures) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "failures": failures})
			return
		}
		c.String(http.StatusOK, "ready")
	}
}
