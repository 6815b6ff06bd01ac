package domain

// Candle 日线数据，价格为韩元整数
type Candle struct {
	Date   string `json:"date"`   // YYYYMMDD
	Open   int64  `json:"open"`   // 开盘价
	High   int64  `json:"high"`   // 最高价
	Low    int64  `json:"low"`    // 最低价
	Close  int64  `json:"close"`  // 收盘价
	Volume int64  `json:"volume"` // 成交量
}

// Closes 提取收盘价序列，保持最新在前的顺序
func Closes(candles []Candle) []int64 {
	out := make([]int64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
