package ta

import "github.com/shopspring/decimal"

// TickSize KRX 价格最小变动单位
func TickSize(price int64) int64 {
	switch {
	case price < 1000:
		return 1
	case price < 5000:
		return 5
	case price < 10000:
		return 10
	case price < 50000:
		return 50
	case price < 100000:
		return 100
	case price < 500000:
		return 500
	default:
		return 1000
	}
}

// FloorToTick 向下对齐到最小变动单位
func FloorToTick(price int64) int64 {
	if price <= 0 {
		return 0
	}
	tick := TickSize(price)
	return price - price%tick
}

// CeilToTick 向上对齐到最小变动单位
func CeilToTick(price int64) int64 {
	if price <= 0 {
		return 0
	}
	tick := TickSize(price)
	if rem := price % tick; rem != 0 {
		return price + tick - rem
	}
	return price
}

// FloorToTickDecimal 先取整数部分再向下对齐
func FloorToTickDecimal(price decimal.Decimal) int64 {
	return FloorToTick(price.Floor().IntPart())
}

// CeilToTickDecimal 先向上取整再向上对齐
func CeilToTickDecimal(price decimal.Decimal) int64 {
	return CeilToTick(price.Ceil().IntPart())
}

// SMA 简单移动平均，closes 按最新在前排列，取前 period 根
// 数据不足时 ok 为 false
func SMA(closes []int64, period int) (decimal.Decimal, bool) {
	if period <= 0 || len(closes) < period {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, c := range closes[:period] {
		sum = sum.Add(decimal.NewFromInt(c))
	}
	return sum.Div(decimal.NewFromInt(int64(period))), true
}

// Envelope 包络线：ma ± ma·pct/100
func Envelope(ma decimal.Decimal, pct int64) (upper, lower decimal.Decimal) {
	band := ma.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100))
	return ma.Add(band), ma.Sub(band)
}

// PctBelow 返回 base·(1 − pct/100)
func PctBelow(base decimal.Decimal, pct int64) decimal.Decimal {
	return base.Mul(decimal.NewFromInt(100 - pct)).Div(decimal.NewFromInt(100))
}

// ApplyRate 返回 base·rate，rate 形如 1.0295
func ApplyRate(base int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(base).Mul(rate)
}
