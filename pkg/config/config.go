// 配置管理
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 主配置结构
type Config struct {
	System        SystemConfig        `mapstructure:"system"`
	Server        ServerConfig        `mapstructure:"server"`
	Temporal      TemporalConfig      `mapstructure:"temporal"`
	Storage       StorageConfig       `mapstructure:"storage"`
	LLM           LLMConfig           `mapstructure:"llm"`
	MarketData    MarketDataConfig    `mapstructure:"market_data"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	Env             string        `mapstructure:"env"`
	ServiceName     string        `mapstructure:"service_name"`
	Version         string        `mapstructure:"version"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	HealthPort     int           `mapstructure:"health_port"` // worker gRPC 健康检查
}

// TemporalConfig Temporal 配置
type TemporalConfig struct {
	Enabled   bool         `mapstructure:"enabled"`
	Address   string       `mapstructure:"address"`
	Namespace string       `mapstructure:"namespace"`
	TaskQueue string       `mapstructure:"task_queue"`
	Worker    WorkerConfig `mapstructure:"worker"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	MaxConcurrentActivities int `mapstructure:"max_concurrent_activities"`
	MaxConcurrentWorkflows  int `mapstructure:"max_concurrent_workflows"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 历史记录与用户画像存储
type DatabaseConfig struct {
	DSN        string `mapstructure:"dsn"`
	MaxHistory int    `mapstructure:"max_history"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	Provider    string          `mapstructure:"provider"`
	APIKey      string          `mapstructure:"api_key"`
	QuickModels []string        `mapstructure:"quick_models"`
	DeepModels  []string        `mapstructure:"deep_models"`
	Temperature float64         `mapstructure:"temperature"`
	MaxTokens   int             `mapstructure:"max_tokens"`
	Timeout     time.Duration   `mapstructure:"timeout"`
	RetryWait   time.Duration   `mapstructure:"retry_wait"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Fallback    FallbackConfig  `mapstructure:"fallback"`
}

// RateLimitConfig 限速配置
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// FallbackConfig 降级配置
type FallbackConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// MarketDataConfig 行情数据配置
type MarketDataConfig struct {
	FinnhubURL      string        `mapstructure:"finnhub_url"`
	FinnhubKey      string        `mapstructure:"finnhub_key"`
	AlphaVantageURL string        `mapstructure:"alpha_vantage_url"`
	AlphaVantageKey string        `mapstructure:"alpha_vantage_key"`
	YahooURL        string        `mapstructure:"yahoo_url"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	TickerRefresh   string        `mapstructure:"ticker_refresh"` // cron 表达式
}

// AnalysisConfig 分析流程配置
type AnalysisConfig struct {
	QuickTimeout time.Duration `mapstructure:"quick_timeout"`
	DeepTimeout  time.Duration `mapstructure:"deep_timeout"`
	MaxPeers     int           `mapstructure:"max_peers"`
	Profile      ProfileConfig `mapstructure:"profile"`
}

// ProfileConfig 默认用户画像
type ProfileConfig struct {
	RiskTolerance     string   `mapstructure:"risk_tolerance"`
	PreferredKPIs     []string `mapstructure:"preferred_kpis"`
	SectorsOfInterest []string `mapstructure:"sectors_of_interest"`
	GeographicFocus   []string `mapstructure:"geographic_focus"`
	InvestmentHorizon string   `mapstructure:"investment_horizon"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Load 加载配置，配置文件不存在时仅使用默认值与环境变量
func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	return LoadFile(configPath)
}

// LoadFile 从指定路径加载配置
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// 环境变量替换，例如 LLM_API_KEY 覆盖 llm.api_key
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 处理环境变量中的密钥
	config.LLM.APIKey = os.ExpandEnv(config.LLM.APIKey)
	config.LLM.Fallback.APIKey = os.ExpandEnv(config.LLM.Fallback.APIKey)
	config.MarketData.FinnhubKey = os.ExpandEnv(config.MarketData.FinnhubKey)
	config.MarketData.AlphaVantageKey = os.ExpandEnv(config.MarketData.AlphaVantageKey)
	config.Storage.Redis.Password = os.ExpandEnv(config.Storage.Redis.Password)

	setDefaults(&config)

	return &config, nil
}

// AutomaticEnv 只对 viper 已知的键生效，未写入配置文件的密钥需要显式绑定
func bindEnv(v *viper.Viper) {
	for key, env := range map[string]string{
		"llm.api_key":                   "GEMINI_API_KEY",
		"llm.fallback.api_key":          "ANTHROPIC_API_KEY",
		"market_data.finnhub_key":       "FINNHUB_API_KEY",
		"market_data.alpha_vantage_key": "ALPHA_VANTAGE_API_KEY",
		"temporal.address":              "TEMPORAL_ADDRESS",
		"storage.redis.address":         "REDIS_ADDRESS",
	} {
		_ = v.BindEnv(key, env)
	}
}

func setDefaults(cfg *Config) {
	if cfg.System.ServiceName == "" {
		cfg.System.ServiceName = "equitymind"
	}
	if cfg.System.ShutdownTimeout == 0 {
		cfg.System.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 200 * time.Second
	}
	if cfg.Server.HealthPort == 0 {
		cfg.Server.HealthPort = 9091
	}
	if cfg.Temporal.Address == "" {
		cfg.Temporal.Address = "localhost:7233"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "equitymind-deep-memo"
	}
	if cfg.Temporal.Worker.MaxConcurrentActivities == 0 {
		cfg.Temporal.Worker.MaxConcurrentActivities = 20
	}
	if cfg.Temporal.Worker.MaxConcurrentWorkflows == 0 {
		cfg.Temporal.Worker.MaxConcurrentWorkflows = 10
	}
	if cfg.Storage.Redis.PoolSize == 0 {
		cfg.Storage.Redis.PoolSize = 20
	}
	if cfg.Storage.Database.DSN == "" {
		cfg.Storage.Database.DSN = "equitymind.db"
	}
	if cfg.Storage.Database.MaxHistory == 0 {
		cfg.Storage.Database.MaxHistory = 50
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if len(cfg.LLM.QuickModels) == 0 {
		cfg.LLM.QuickModels = []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-flash-8b"}
	}
	if len(cfg.LLM.DeepModels) == 0 {
		cfg.LLM.DeepModels = []string{"gemini-2.5-pro-exp-03-25", "gemini-2.0-flash", "gemini-1.5-pro", "gemini-1.5-flash"}
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2500
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120 * time.Second
	}
	if cfg.LLM.RetryWait == 0 {
		cfg.LLM.RetryWait = 65 * time.Second
	}
	if cfg.LLM.RateLimit.RequestsPerMinute == 0 {
		cfg.LLM.RateLimit.RequestsPerMinute = 15
	}
	if cfg.LLM.RateLimit.Burst == 0 {
		cfg.LLM.RateLimit.Burst = 2
	}
	if cfg.LLM.Fallback.Provider == "" {
		cfg.LLM.Fallback.Provider = "anthropic"
	}
	if cfg.LLM.Fallback.Model == "" {
		cfg.LLM.Fallback.Model = "claude-3-5-haiku-latest"
	}
	if cfg.MarketData.FinnhubURL == "" {
		cfg.MarketData.FinnhubURL = "https://finnhub.io/api/v1"
	}
	if cfg.MarketData.AlphaVantageURL == "" {
		cfg.MarketData.AlphaVantageURL = "https://www.alphavantage.co/query"
	}
	if cfg.MarketData.YahooURL == "" {
		cfg.MarketData.YahooURL = "https://query1.finance.yahoo.com"
	}
	if cfg.MarketData.HTTPTimeout == 0 {
		cfg.MarketData.HTTPTimeout = 10 * time.Second
	}
	if cfg.MarketData.CacheTTL == 0 {
		cfg.MarketData.CacheTTL = 15 * time.Minute
	}
	if cfg.MarketData.TickerRefresh == "" {
		cfg.MarketData.TickerRefresh = "@every 60s"
	}
	if cfg.Analysis.QuickTimeout == 0 {
		cfg.Analysis.QuickTimeout = 30 * time.Second
	}
	if cfg.Analysis.DeepTimeout == 0 {
		cfg.Analysis.DeepTimeout = 180 * time.Second
	}
	if cfg.Analysis.MaxPeers == 0 {
		cfg.Analysis.MaxPeers = 3
	}
	setProfileDefaults(&cfg.Analysis.Profile)
	if cfg.Observability.Tracing.SampleRate == 0 {
		cfg.Observability.Tracing.SampleRate = 0.1
	}
	if cfg.Observability.Tracing.Endpoint == "" {
		cfg.Observability.Tracing.Endpoint = "localhost:4318"
	}
	if cfg.Observability.Metrics.Port == 0 {
		cfg.Observability.Metrics.Port = 9090
	}
	if cfg.Observability.Metrics.Path == "" {
		cfg.Observability.Metrics.Path = "/metrics"
	}
}

func setProfileDefaults(p *ProfileConfig) {
	if p.RiskTolerance == "" {
		p.RiskTolerance = "moderate"
	}
	if len(p.PreferredKPIs) == 0 {
		p.PreferredKPIs = []string{"Revenue Growth", "EBITDA", "Free Cash Flow", "Debt/Equity"}
	}
	if len(p.SectorsOfInterest) == 0 {
		p.SectorsOfInterest = []string{"Information Technology", "Banking & Finance", "FMCG", "Pharma"}
	}
	if len(p.GeographicFocus) == 0 {
		p.GeographicFocus = []string{"India", "NSE", "BSE"}
	}
	if p.InvestmentHorizon == "" {
		p.InvestmentHorizon = "medium"
	}
}

// Summary 启动日志用的配置摘要
func (c *Config) Summary() map[string]interface{} {
	return map[string]interface{}{
		"env":               c.System.Env,
		"service":           c.System.ServiceName,
		"llm_provider":      c.LLM.Provider,
		"api_key":           c.LLM.APIKey,
		"finnhub_key":       c.MarketData.FinnhubKey,
		"alpha_vantage_key": c.MarketData.AlphaVantageKey,
		"temporal":          c.Temporal.Address,
		"temporal_enabled":  c.Temporal.Enabled,
		"redis_enabled":     c.Storage.Redis.Enabled,
		"database":          c.Storage.Database.DSN,
	}
}
