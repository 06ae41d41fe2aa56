package api

import (
	"reflect"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	// 商户订单号：6-32 位数字、大小写字母及 _-|*
	outTradeNoPattern = regexp.MustCompile(`^[0-9A-Za-z_\-|*]{6,32}$`)
	// 商户退款单号：1-64 位数字、大小写字母及 _-|*@
	outRefundNoPattern = regexp.MustCompile(`^[0-9A-Za-z_\-|*@]{1,64}$`)
)

// registerCustomValidators 注册自定义验证器
func registerCustomValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		// decimal 金额按 float64 参与 gt/lte 等比较
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		v.RegisterValidation("outTradeNo", validOutTradeNo)
		v.RegisterValidation("outRefundNo", validOutRefundNo)
	}
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

var validOutTradeNo validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	return ok && outTradeNoPattern.MatchString(s)
}

var validOutRefundNo validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	return ok && outRefundNoPattern.MatchString(s)
}
