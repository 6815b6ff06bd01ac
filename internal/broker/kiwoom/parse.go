package kiwoom

import (
	"strconv"
	"strings"

	"github.com/stockbot/gostock/internal/domain"
)

// 키움接口的数值都是带符号字符串（"-69000"、"+1.23"），
// 价格类字段的符号表示涨跌方向而非数值正负，按需取绝对值。

// parseInt 解析带符号整数字符串，空串和非法输入返回 0
func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.TrimPrefix(s, "+")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseAbs 解析并取绝对值（现价等带方向符号的价格字段）
func parseAbs(s string) int64 {
	v := parseInt(s)
	if v < 0 {
		return -v
	}
	return v
}

// parseFloat 解析带符号小数字符串
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.TrimPrefix(s, "+")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// formatInt 整数转十进制字符串（请求正文的数量与价格字段）
func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// sideFromOrderName 从 주문구분 原文判别方向（"+매수" / "-매도" / "매수취소" 等）
func sideFromOrderName(name string) domain.Side {
	switch {
	case strings.Contains(name, "매수취소"):
		return domain.SideCancelBuy
	case strings.Contains(name, "매도취소"):
		return domain.SideCancelSell
	case strings.Contains(name, "매수"):
		return domain.SideBuy
	case strings.Contains(name, "매도"):
		return domain.SideSell
	}
	return ""
}
