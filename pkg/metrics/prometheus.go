// Prometheus 指标定义
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorkflowDuration 工作流执行时长
	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equitymind_workflow_duration_seconds",
			Help:    "Workflow execution duration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"workflow_type", "status"},
	)

	// ActivityDuration 活动执行时长
	ActivityDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equitymind_activity_duration_seconds",
			Help:    "Activity execution duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"activity_name", "status"},
	)

	// AnalysisDuration 单次分析耗时
	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equitymind_analysis_duration_seconds",
			Help:    "End-to-end analysis duration",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 180},
		},
		[]string{"mode", "status"},
	)

	// SentimentTotal 情绪分布
	SentimentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equitymind_sentiment_total",
			Help: "Memos produced by overall sentiment",
		},
		[]string{"mode", "sentiment"},
	)

	// ConfidenceScore 置信度分布
	ConfidenceScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equitymind_confidence_score",
			Help:    "Overall confidence score of produced memos",
			Buckets: []float64{20, 35, 45, 55, 65, 80, 90, 100},
		},
		[]string{"mode", "source"},
	)

	// DataSourceTotal 数据来源分布
	DataSourceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equitymind_data_source_total",
			Help: "Metric resolutions by data source",
		},
		[]string{"source"},
	)

	// ProviderRequests 行情接口调用
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equitymind_provider_requests_total",
			Help: "Market data provider requests",
		},
		[]string{"provider", "status"},
	)

	// LLMTokenUsage Token 使用量
	LLMTokenUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equitymind_llm_token_usage_total",
			Help: "Total LLM tokens consumed",
		},
		[]string{"model", "type"}, // type: prompt/completion
	)

	// LLMLatency LLM 调用延迟
	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "equitymind_llm_latency_seconds",
			Help:    "LLM inference latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "status"},
	)

	// LLMFallbacks 模型降级次数
	LLMFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equitymind_llm_fallbacks_total",
			Help: "Model fallbacks by reason",
		},
		[]string{"from_model", "reason"}, // reason: rate_limited/unavailable/provider
	)

	// CacheOperations 缓存命中情况
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equitymind_cache_operations_total",
			Help: "Cache operations count",
		},
		[]string{"operation", "result"}, // result: hit/miss/ok/error
	)

	// HTTPRequests HTTP 请求计数
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equitymind_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	// ErrorsTotal 错误计数
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "equitymind_errors_total",
			Help: "Total errors by level and code",
		},
		[]string{"level", "code"},
	)

	// ActiveWorkflows 活跃工作流数
	ActiveWorkflows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "equitymind_active_workflows",
			Help: "Number of currently active workflows",
		},
	)
)
