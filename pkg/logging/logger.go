// 结构化日志
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/equitymind-ai/equitymind/pkg/config"
)

const redacted = "***REDACTED***"

// NewLogger 创建日志记录器
// Output 支持 stdout、stderr、discard 或文件路径；未知级别按 info 处理
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	if cfg.Output == "discard" {
		return zap.NewNop(), nil
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	sink, err := openSink(cfg.Output)
	if err != nil {
		return nil, err
	}

	return zap.New(zapcore.NewCore(encoder, sink, level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

func openSink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	ws, _, err := zap.Open(output)
	if err != nil {
		return nil, fmt.Errorf("open log output %s: %w", output, err)
	}
	return ws, nil
}

// TemporalLogger 把 Temporal SDK 的 keyvals 日志转为 zap 字段
type TemporalLogger struct {
	logger *zap.Logger
}

// NewTemporalLogger 创建 Temporal 日志适配器
func NewTemporalLogger(logger *zap.Logger) log.Logger {
	return &TemporalLogger{logger: logger.With(zap.String("component", "temporal"))}
}

func (l *TemporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvalFields(keyvals)...)
}

func (l *TemporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvalFields(keyvals)...)
}

func (l *TemporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvalFields(keyvals)...)
}

func (l *TemporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvalFields(keyvals)...)
}

// keyvals 个数为奇数时整体丢弃，避免键值错位
func keyvalFields(keyvals []interface{}) []zap.Field {
	if len(keyvals)%2 != 0 {
		return nil
	}
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		if key, ok := keyvals[i].(string); ok {
			fields = append(fields, zap.Any(key, keyvals[i+1]))
		}
	}
	return fields
}

// isSecret 匹配 api_key、password 以及 *_key / *_token / *_secret
func isSecret(field string) bool {
	f := strings.ToLower(field)
	switch f {
	case "api_key", "password", "token", "secret", "key":
		return true
	}
	return strings.HasSuffix(f, "_key") || strings.HasSuffix(f, "_token") || strings.HasSuffix(f, "_secret")
}

// SanitizeForLog 启动摘要脱敏；空字符串原样保留，便于看出密钥未配置
func SanitizeForLog(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if !isSecret(k) {
			out[k] = v
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			out[k] = ""
			continue
		}
		out[k] = redacted
	}
	return out
}

// Fields 将脱敏后的摘要转换为 zap 字段
func Fields(data map[string]interface{}) []zap.Field {
	sanitized := SanitizeForLog(data)
	fields := make([]zap.Field, 0, len(sanitized))
	for k, v := range sanitized {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}
