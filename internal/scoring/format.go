package scoring

import (
	"fmt"
	"math"
)

const notAvailable = "N/A"

func pct(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func multiple(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("%.1fx", *v)
}

func usd(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("$%.2f", *v)
}

func billions(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("$%.1fB", *v/1e9)
}

// FormatValue 按规则格式化数值，缺失时返回 N/A
func FormatValue(f ValueFormat, v *float64) string {
	switch f {
	case FormatPercent:
		return pct(v)
	case FormatBillions:
		return billions(v)
	default:
		return multiple(v)
	}
}

// Percent 格式化百分比
func Percent(v *float64) string { return pct(v) }

// Billions 格式化十亿美元金额
func Billions(v *float64) string { return billions(v) }

// Multiple 格式化倍数
func Multiple(v *float64) string { return multiple(v) }

// roundHalfUp 0.5 向正无穷取整，负数增长率也保持一致
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
