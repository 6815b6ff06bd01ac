package trader

import "time"

// 交易时段（交易所本地时间）
const (
	preMarketOpenHM = 830  // 盘前 08:30
	marketOpenHM    = 900  // 开盘 09:00
	marketCloseHM   = 1530 // 收盘 15:30
)

func hhmm(t time.Time) int {
	return t.Hour()*100 + t.Minute()
}

// isMarketOpen 是否处于交易时段 [09:00, 15:30]
func isMarketOpen(t time.Time) bool {
	v := hhmm(t)
	return v >= marketOpenHM && v <= marketCloseHM
}

// isPreMarket 是否处于盘前时段 [08:30, 09:00)
func isPreMarket(t time.Time) bool {
	v := hhmm(t)
	return v >= preMarketOpenHM && v < marketOpenHM
}

// tradingDate 返回 YYYYMMDD 格式的交易日
func tradingDate(t time.Time) string {
	return t.Format("20060102")
}
