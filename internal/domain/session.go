package domain

// Session 交易日会话状态
type Session struct {
	LastTradingDate string `json:"last_trading_date"`    // YYYYMMDD，换日触发重置
	AutoEnabled     bool   `json:"auto_trading_enabled"` // 自动交易开关
	OrdersRestored  bool   `json:"orders_restored"`      // 当日挂单是否已恢复
	StateSynced     bool   `json:"state_synced"`         // 当日状态是否已与券商同步
}
