package server

import (
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/equitymind-ai/equitymind/internal/memo"
	"github.com/equitymind-ai/equitymind/internal/profile"
)

// 美股代码、带交易所后缀的代码 (TCS.NS) 与指数代码 (^NSEI)
var tickerRegex = regexp.MustCompile(`^\^?[A-Za-z0-9][A-Za-z0-9.\-=]{0,14}$`)

var registerOnce sync.Once

// RegisterValidators 向 gin 绑定引擎注册自定义校验，可重复调用
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("ticker", validateTicker)
			_ = v.RegisterValidation("research_mode", validateResearchMode)
			_ = v.RegisterValidation("risk_tolerance", validateRiskTolerance)
			_ = v.RegisterValidation("horizon", validateHorizon)
		}
	})
}

func validateTicker(fl validator.FieldLevel) bool {
	return tickerRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

func validateResearchMode(fl validator.FieldLevel) bool {
	return memo.Mode(fl.Field().String()).Valid()
}

func validateRiskTolerance(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case profile.RiskConservative, profile.RiskModerate, profile.RiskAggressive:
		return true
	}
	return false
}

func validateHorizon(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case profile.HorizonShort, profile.HorizonMedium, profile.HorizonLong:
		return true
	}
	return false
}
