package domain

import "time"

// Side 订单方向
type Side string

const (
	SideBuy        Side = "buy"
	SideSell       Side = "sell"
	SideCancelBuy  Side = "cancel_buy"
	SideCancelSell Side = "cancel_sell"
)

// PriceKind 报价类型
type PriceKind string

const (
	PriceLimit  PriceKind = "limit"  // 限价
	PriceMarket PriceKind = "market" // 市价
)

// SellTarget 卖出档位名称，持久化为韩文字符串（与历史状态文件兼容）
type SellTarget string

const (
	TargetProfit1  SellTarget = "익절1"   // 止盈一档 +2.95%
	TargetProfit2  SellTarget = "익절2"   // 止盈二档 +4.95%
	TargetProfit3  SellTarget = "익절3"   // 止盈三档 +6.95%
	TargetMA       SellTarget = "MA"     // 均线档
	TargetStoploss SellTarget = "스탑로스" // 止损
)

// PendingOrder 挂单台账条目
type PendingOrder struct {
	Side       Side       `json:"side"`                  // 方向
	Quantity   int64      `json:"quantity"`              // 数量
	LimitPrice int64      `json:"limit_price"`           // 限价
	BuyCount   int        `json:"buy_count,omitempty"`   // 买入批次（买单）
	TargetName SellTarget `json:"target_name,omitempty"` // 卖出档位（卖单）
	CreatedAt  time.Time  `json:"created_at"`            // 创建时间
	Persist    bool       `json:"persist"`               // 跨交易日保留（止损单）
}

// SameOrder 判断是否为同一笔挂单（按方向+价格+批次去重）
func (p PendingOrder) SameOrder(o PendingOrder) bool {
	return p.Side == o.Side && p.LimitPrice == o.LimitPrice && p.BuyCount == o.BuyCount
}

// OpenOrder 券商侧未成交订单
type OpenOrder struct {
	OrderNo     string // 订单号
	Code        string // 股票代码
	Name        string // 股票名称
	Side        Side   // 方向
	Quantity    int64  // 委托数量
	Price       int64  // 委托价格
	UnfilledQty int64  // 未成交数量
}
