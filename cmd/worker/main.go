// EquityMind Worker 入口
// 启动 Temporal Worker 处理深度备忘录工作流和活动
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/equitymind-ai/equitymind/internal/activity"
	"github.com/equitymind-ai/equitymind/internal/app"
	"github.com/equitymind-ai/equitymind/internal/server"
	"github.com/equitymind-ai/equitymind/internal/workflow"
	"github.com/equitymind-ai/equitymind/pkg/config"
	"github.com/equitymind-ai/equitymind/pkg/logging"
	"github.com/equitymind-ai/equitymind/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger, err := logging.NewLogger(cfg.Observability.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded", logging.Fields(logging.SanitizeForLog(cfg.Summary()))...)

	ctx := context.Background()

	// 初始化 Tracing
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

	// 启动 Metrics 服务器
	if cfg.Observability.Metrics.Enabled {
		go startMetricsServer(cfg.Observability.Metrics, deps.ReadinessChecks(), logger)
	}

	// gRPC 健康检查
	healthSrv, grpcSrv := startHealthServer(cfg.Server.HealthPort, logger)
	defer grpcSrv.GracefulStop()

	// 创建 Temporal 客户端
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalLogger(logger),
	})
	if err != nil {
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	activities := activity.NewActivities(deps.Resolver, deps.Generator(), deps.Builder, deps.Store, cfg.LLM, logger)

	// 创建 Worker
	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Temporal.Worker.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.Temporal.Worker.MaxConcurrentWorkflows,
	})

	// 注册工作流
	w.RegisterWorkflow(workflow.DeepMemoWorkflow)
	w.RegisterWorkflow(workflow.PeerComparisonWorkflow) // 同业对比子工作流

	// 注册活动
	w.RegisterActivity(activities.FetchProfileActivity)
	w.RegisterActivity(activities.GenerateDeepMemoActivity)
	w.RegisterActivity(activities.BuildQuickMemoActivity)
	w.RegisterActivity(activities.SaveHistoryActivity)
	w.RegisterActivity(activities.CleanupCacheActivity)
	w.RegisterActivity(activities.NotifyCompensationFailure)

	logger.Info("Starting EquityMind Worker",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("namespace", cfg.Temporal.Namespace),
		zap.Bool("llm_configured", deps.LLM != nil),
	)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("Worker failed", zap.Error(err))
	}

	healthSrv.Shutdown()
	logger.Info("Worker stopped")
}

func startMetricsServer(cfg config.MetricsConfig, checks map[string]server.ReadinessCheck, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if failures := server.CheckReadiness(r.Context(), checks); len(failures) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "not ready", "failures": failures})
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting metrics server", zap.String("addr", addr))

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server failed", zap.Error(err))
	}
}

func startHealthServer(port int, logger *zap.Logger) (*health.Server, *grpc.Server) {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("Failed to listen for gRPC health", zap.String("addr", addr), zap.Error(err))
	}

	go func() {
		logger.Info("Starting gRPC health server", zap.String("addr", addr))
		if err := srv.Serve(lis); err != nil {
			logger.Error("gRPC health server failed", zap.Error(err))
		}
	}()
	return hs, srv
}
