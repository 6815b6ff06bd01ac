package broker

import "github.com/stockbot/gostock/internal/domain"

// Event 适配器事件的标签联合，协调器用单个 select 循环消费
type Event interface {
	isEvent()
}

// PriceEvent 实时价格事件
type PriceEvent struct {
	Code   string // 股票代码
	Price  int64  // 最新价
	Volume int64  // 成交量
}

// OrderEvent 委托/成交回报（체결）
type OrderEvent struct {
	Code      string      // 股票代码
	Status    string      // 回报状态（접수/체결 等原文）
	Side      domain.Side // 方向
	OrderQty  int64       // 委托数量
	ExecQty   int64       // 该订单累计成交数量（체결량按单累计）
	ExecPrice int64       // 最近一笔成交价格
	OrderNo   string      // 订单号
}

// BalanceEvent 余额回报，Quantity/AvgPrice 为权威值
type BalanceEvent struct {
	Code     string // 股票代码
	Quantity int64  // 持仓数量
	AvgPrice int64  // 持仓均价
}

// MessageEvent 服务器消息
type MessageEvent struct {
	ScreenID string
	RqName   string
	TrCode   string
	Msg      string
}

// DisconnectEvent 连接断开
type DisconnectEvent struct {
	Err error
}

func (PriceEvent) isEvent()      {}
func (OrderEvent) isEvent()      {}
func (BalanceEvent) isEvent()    {}
func (MessageEvent) isEvent()    {}
func (DisconnectEvent) isEvent() {}
