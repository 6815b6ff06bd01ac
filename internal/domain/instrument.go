package domain

import "strings"

// CanonicalCode 规范化股票代码
// 券商接口会在代码前加一位前缀字母（如 "A005930"），统一剥掉
func CanonicalCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if len(code) == 7 && (code[0] < '0' || code[0] > '9') {
		return code[1:]
	}
	return code
}

// IsValidCode 检查是否为 6 位数字代码
func IsValidCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
