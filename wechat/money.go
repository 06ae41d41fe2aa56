package wechat

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// CurrencyCNY 人民币
const CurrencyCNY = "CNY"

var (
	hundred     = decimal.NewFromInt(100)
	maxMinorAmt = decimal.NewFromInt(math.MaxInt64)
)

// ToMinor 元转分：先乘100，再四舍五入到整数
// 负数、溢出金额返回 ErrInvalidAmount
func ToMinor(major decimal.Decimal) (int64, error) {
	if major.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, major.String())
	}

	// 对非负数 Round 即 half-up
	minor := major.Mul(hundred).Round(0)
	if minor.GreaterThan(maxMinorAmt) {
		return 0, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, major.String())
	}
	return minor.IntPart(), nil
}

// ToMajor 分转元，用于日志与对账展示
func ToMajor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}
