// 错误分类与处理
package errors

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"
)

// ErrorLevel 错误级别
type ErrorLevel int

const (
	// L1Recoverable 可恢复错误 - 自动重试或降级
	L1Recoverable ErrorLevel = iota + 1
	// L2Intervention 需要人工干预
	L2Intervention
	// L3Fatal 致命错误 - 直接失败
	L3Fatal
)

func (l ErrorLevel) String() string {
	switch l {
	case L1Recoverable:
		return "L1_RECOVERABLE"
	case L2Intervention:
		return "L2_INTERVENTION"
	case L3Fatal:
		return "L3_FATAL"
	default:
		return "UNKNOWN"
	}
}

// 预定义错误类型
var (
	ErrRateLimited      = errors.New("rate limited")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrLLMUnavailable   = errors.New("LLM service unavailable")
	ErrValidationFailed = errors.New("validation failed")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrAuthFailed       = errors.New("authentication failed")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrDataUnavailable  = errors.New("market data unavailable")
	ErrMemoParse        = errors.New("memo parse failed")
)

// Temporal ApplicationError 类型名，与 RetryPolicy.NonRetryableErrorTypes 对应
const (
	TypeRateLimited      = "RateLimited"
	TypeModelUnavailable = "ModelUnavailable"
	TypeLLMUnavailable   = "LLMUnavailable"
	TypeValidation       = "ValidationError"
	TypeFatal            = "FatalError"
)

// ClassifiedError 分类后的错误
type ClassifiedError struct {
	Level      ErrorLevel
	Code       string
	Message    string
	Cause      error
	Retryable  bool
	MaxRetries int
	Metadata   map[string]interface{}
}

func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ClassifyError 对错误进行分类
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classifiedErr *ClassifiedError
	if errors.As(err, &classifiedErr) {
		return classifiedErr
	}

	// 活动错误经过 Temporal 序列化后只剩类型名
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		if c := classifyApplicationError(appErr); c != nil {
			return c
		}
	}
	return classifySentinel(err)
}

func classifySentinel(err error) *ClassifiedError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "TIMEOUT",
			Message:    "Operation timed out",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 3,
		}

	case errors.Is(err, ErrRateLimited):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "RATE_LIMITED",
			Message:    "Rate limit exceeded",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 1,
			Metadata:   map[string]interface{}{"backoff": "fixed"},
		}

	case errors.Is(err, ErrModelUnavailable):
		return &ClassifiedError{
			Level:     L1Recoverable,
			Code:      "MODEL_UNAVAILABLE",
			Message:   "Model not available",
			Cause:     err,
			Retryable: false,
			Metadata:  map[string]interface{}{"try_next_model": true},
		}

	case errors.Is(err, ErrCacheUnavailable):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "CACHE_UNAVAILABLE",
			Message:    "Cache service unavailable",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 3,
		}

	case errors.Is(err, ErrDataUnavailable):
		return &ClassifiedError{
			Level:     L1Recoverable,
			Code:      "DATA_UNAVAILABLE",
			Message:   "Market data unavailable",
			Cause:     err,
			Retryable: false,
			Metadata:  map[string]interface{}{"use_reference_data": true},
		}

	case errors.Is(err, ErrLLMUnavailable):
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "LLM_UNAVAILABLE",
			Message:    "LLM service unavailable",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 2,
			Metadata:   map[string]interface{}{"try_fallback": true},
		}

	case errors.Is(err, ErrValidationFailed):
		return &ClassifiedError{
			Level:     L2Intervention,
			Code:      "VALIDATION_FAILED",
			Message:   "Data validation failed",
			Cause:     err,
			Retryable: false,
		}

	case errors.Is(err, ErrMemoParse):
		return &ClassifiedError{
			Level:     L2Intervention,
			Code:      "MEMO_PARSE_FAILED",
			Message:   "LLM output could not be parsed",
			Cause:     err,
			Retryable: false,
			Metadata:  map[string]interface{}{"require_human_review": true},
		}

	case errors.Is(err, ErrConfigInvalid), errors.Is(err, ErrAuthFailed):
		return &ClassifiedError{
			Level:     L3Fatal,
			Code:      "FATAL_CONFIG",
			Message:   "Fatal configuration or authentication error",
			Cause:     err,
			Retryable: false,
		}

	default:
		return &ClassifiedError{
			Level:      L1Recoverable,
			Code:       "UNKNOWN",
			Message:    "Unknown error",
			Cause:      err,
			Retryable:  true,
			MaxRetries: 1,
		}
	}
}

func classifyApplicationError(appErr *temporal.ApplicationError) *ClassifiedError {
	switch appErr.Type() {
	case TypeRateLimited:
		return classifySentinel(errors.Join(ErrRateLimited, appErr))
	case TypeModelUnavailable:
		return classifySentinel(errors.Join(ErrModelUnavailable, appErr))
	case TypeLLMUnavailable:
		return classifySentinel(errors.Join(ErrLLMUnavailable, appErr))
	case TypeValidation:
		return classifySentinel(errors.Join(ErrValidationFailed, appErr))
	case TypeFatal:
		return &ClassifiedError{
			Level:     L3Fatal,
			Code:      "FATAL",
			Message:   "Non-retryable activity failure",
			Cause:     appErr,
			Retryable: false,
		}
	default:
		return nil
	}
}

// NewClassifiedError 创建分类错误
func NewClassifiedError(level ErrorLevel, code, message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Level:   level,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithLevel 包装错误并指定级别
func WrapWithLevel(err error, level ErrorLevel, message string) *ClassifiedError {
	classified := ClassifyError(err)
	classified.Level = level
	if message != "" {
		classified.Message = message
	}
	return classified
}

// ToApplicationError 将错误转换为 Temporal ApplicationError，保留可重试语义
func ToApplicationError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return temporal.NewApplicationErrorWithCause(err.Error(), TypeRateLimited, err)
	case errors.Is(err, ErrLLMUnavailable), errors.Is(err, ErrModelUnavailable):
		return temporal.NewApplicationErrorWithCause(err.Error(), TypeLLMUnavailable, err)
	case errors.Is(err, ErrValidationFailed):
		return temporal.NewNonRetryableApplicationError(err.Error(), TypeValidation, err)
	}

	if ClassifyError(err).Level == L3Fatal {
		return temporal.NewNonRetryableApplicationError(err.Error(), TypeFatal, err)
	}
	return err
}
