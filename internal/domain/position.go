package domain

import "time"

// Position 单只股票的持仓状态
// Quantity/AvgPrice 以券商余额事件为准，其余字段由执行处理器维护
type Position struct {
	Code                    string       `json:"-"`                         // 股票代码（map key，不重复持久化）
	Name                    string       `json:"name,omitempty"`            // 股票名称
	Quantity                int64        `json:"quantity"`                  // 当前持仓数量
	AvgPrice                int64        `json:"avg_price"`                 // 持仓均价
	InitialQuantity         int64        `json:"initial_quantity"`          // 卖出阶梯的分母数量
	OriginalInitialQuantity int64        `json:"original_initial_quantity"` // 首次建仓数量（仅审计）
	BuyCount                int          `json:"buy_count"`                 // 已执行的分批买入次数
	FirstBuyPrice           int64        `json:"first_buy_price"`           // 首次买入价，二三批挂价基准
	LastBuyPrice            int64        `json:"last_buy_price"`            // 最近一次买入价
	SoldTargets             []SellTarget `json:"sold_targets"`              // 已成交的卖出档位（有序、只增）
	SellOccurred            bool         `json:"sell_occurred"`             // 本周期是否发生过卖出（粘滞）
	StoplossTriggered       bool         `json:"stoploss_triggered"`        // 止损是否已触发（粘滞）
	StoplossPrice           int64        `json:"stoploss_price"`            // 止损挂单价
	LastExecutedPrice       int64        `json:"last_executed_price"`       // 买入成交滚动均价
	LastExecutedQty         int64        `json:"last_executed_qty"`         // 买入成交累计数量
	LastUpdate              time.Time    `json:"last_update"`               // 最后更新时间
}

// IsOpen 是否仍有持仓
func (p *Position) IsOpen() bool {
	return p != nil && p.Quantity > 0
}

// HasSoldTarget 检查某个卖出档位是否已成交
func (p *Position) HasSoldTarget(t SellTarget) bool {
	if p == nil {
		return false
	}
	for _, s := range p.SoldTargets {
		if s == t {
			return true
		}
	}
	return false
}

// AddSoldTarget 追加卖出档位，重复追加为空操作
func (p *Position) AddSoldTarget(t SellTarget) {
	if p.HasSoldTarget(t) {
		return
	}
	p.SoldTargets = append(p.SoldTargets, t)
}

// RecordBuyFill 更新买入成交滚动均价
func (p *Position) RecordBuyFill(price, qty int64) {
	if qty <= 0 {
		return
	}
	total := p.LastExecutedPrice*p.LastExecutedQty + price*qty
	p.LastExecutedQty += qty
	p.LastExecutedPrice = total / p.LastExecutedQty
}

// Clone 深拷贝
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	cp := *p
	cp.SoldTargets = append([]SellTarget(nil), p.SoldTargets...)
	return &cp
}
