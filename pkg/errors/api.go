package errors

import (
	"errors"
	"net/http"
)

// APIError 面向 HTTP 客户端的错误，Internal 不会输出到响应体
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Internal }

// Wrap 复制 sentinel 并附带内部错误
func Wrap(sentinel *APIError, internal error) *APIError {
	return &APIError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage 复制 sentinel 并替换消息
func WithMessage(sentinel *APIError, message string) *APIError {
	return &APIError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

var (
	ErrInvalidInput        = &APIError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound            = &APIError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrAnalysisFailed      = &APIError{Code: "ANALYSIS_FAILED", Message: "Analysis failed", StatusCode: http.StatusBadGateway}
	ErrDeepModeUnavailable = &APIError{Code: "DEEP_MODE_UNAVAILABLE", Message: "Deep mode is temporarily unavailable, try Quick mode", StatusCode: http.StatusServiceUnavailable}
	ErrRateLimitedAPI      = &APIError{Code: "RATE_LIMITED", Message: "Upstream rate limit reached, retry shortly", StatusCode: http.StatusTooManyRequests}
	ErrTimeout             = &APIError{Code: "TIMEOUT", Message: "Analysis timed out", StatusCode: http.StatusGatewayTimeout}
	ErrInternal            = &APIError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// FromClassified 将内部错误映射为 API 错误
func FromClassified(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	c := ClassifyError(err)
	switch c.Code {
	case "TIMEOUT":
		return Wrap(ErrTimeout, err)
	case "RATE_LIMITED":
		return Wrap(ErrRateLimitedAPI, err)
	case "LLM_UNAVAILABLE", "MODEL_UNAVAILABLE":
		return Wrap(ErrDeepModeUnavailable, err)
	case "VALIDATION_FAILED":
		return Wrap(ErrInvalidInput, err)
	case "MEMO_PARSE_FAILED", "DATA_UNAVAILABLE":
		return Wrap(ErrAnalysisFailed, err)
	default:
		return Wrap(ErrInternal, err)
	}
}
