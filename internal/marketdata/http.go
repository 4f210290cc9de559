// 行情与基本面数据：Finnhub、Alpha Vantage、Yahoo Finance 以及内置参考数据
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/equitymind-ai/equitymind/pkg/metrics"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// getJSON 发起 GET 请求并解码 JSON 响应
func getJSON(ctx context.Context, client *http.Client, provider, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(provider, "error").Inc()
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequests.WithLabelValues(provider, strconv.Itoa(resp.StatusCode)).Inc()
		return fmt.Errorf("%s: unexpected status %d", provider, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		metrics.ProviderRequests.WithLabelValues(provider, "decode_error").Inc()
		return fmt.Errorf("decoding response: %w", err)
	}
	metrics.ProviderRequests.WithLabelValues(provider, "ok").Inc()
	return nil
}

// numberFromString 解析 Alpha Vantage 的字符串数值，"None" 或空串视为缺失
func numberFromString(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// numberFromAny 从 interface{} 中取出 float64
func numberFromAny(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// nonZero 0 视为缺失
func nonZero(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

// populated 统计有效字段数，用于判断实时数据是否可用
func populated(m interface {
	PresentCount() int
}, strs ...string) int {
	n := m.PresentCount()
	for _, s := range strs {
		if s != "" {
			n++
		}
	}
	return n
}
