// EquityMind API 入口
// 提供分析、澄清、历史、画像与行情接口；深度模式通过 Temporal 提交工作流
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/equitymind-ai/equitymind/internal/analysis"
	"github.com/equitymind-ai/equitymind/internal/app"
	"github.com/equitymind-ai/equitymind/internal/marketdata"
	"github.com/equitymind-ai/equitymind/internal/server"
	"github.com/equitymind-ai/equitymind/pkg/config"
	"github.com/equitymind-ai/equitymind/pkg/logging"
	"github.com/equitymind-ai/equitymind/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Observability.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded", logging.Fields(logging.SanitizeForLog(cfg.Summary()))...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracer(ctx, cfg.System, cfg.Observability.Tracing)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", zap.Error(err))
	}
	defer deps.Close()

	// 行情滚动条
	tape := marketdata.NewTickerTape(deps.HTTPClient, cfg.MarketData.YahooURL, deps.Cache, logger)
	if err := tape.Start(cfg.MarketData.TickerRefresh); err != nil {
		logger.Warn("Ticker tape refresh not scheduled", zap.Error(err))
	}
	defer tape.Stop()

	opts := []analysis.Option{
		analysis.WithGenerator(deps.Generator()),
		analysis.WithTickerTape(tape),
	}

	// 深度模式需要 Temporal，连接失败时降级为快速模式
	if cfg.Temporal.Enabled {
		c, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.Address,
			Namespace: cfg.Temporal.Namespace,
			Logger:    logging.NewTemporalLogger(logger),
		})
		if err != nil {
			logger.Warn("Temporal unavailable, deep mode will degrade", zap.Error(err))
		} else {
			defer c.Close()
			opts = append(opts, analysis.WithDeepRunner(analysis.NewTemporalRunner(c, cfg.Temporal.TaskQueue, logger)))
		}
	}

	svc := analysis.NewService(deps.Resolver, deps.Store, deps.Builder, cfg.Analysis, logger, opts...)

	gin.SetMode(cfg.Server.Mode)
	router := server.NewRouter(server.NewHandler(svc), deps.ReadinessChecks(), logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout,
	}

	go func() {
		logger.Info("Starting EquityMind API", zap.String("addr", srv.Addr), zap.Bool("temporal_enabled", cfg.Temporal.Enabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.System.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("API server stopped")
}
