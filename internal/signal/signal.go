package signal

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/internal/store"
	"github.com/stockbot/gostock/pkg/ta"
)

// PlannedSell 卖出阶梯中的一档
type PlannedSell struct {
	Target   domain.SellTarget // 档位名称
	Price    int64             // 限价（已向上对齐 tick）
	Quantity int64             // 数量
	Persist  bool              // 跨日保留（止损档）
}

// Engine 信号引擎：纯决策，不做 IO
type Engine struct {
	log *logrus.Entry
}

// New 创建信号引擎
func New() *Engine {
	return &Engine{log: logrus.WithField("component", "signal")}
}

// CheckBuy 判定首次建仓信号
//
// 前置条件：无持仓、本周期未发生过卖出、未触发止损、持仓股票数未达上限。
// 触发条件：最新价跌破 MA·(1−triggerPct/100)。
// 满足时返回全部分批挂单（首批 + 预挂的二三批）。
func (e *Engine) CheckBuy(params store.BuySettings, code string, lastPrice int64,
	candles []domain.Candle, pos *domain.Position, holderCount int) (*domain.Intent, bool) {

	if pos.IsOpen() {
		return nil, false
	}
	if pos != nil && (pos.SellOccurred || pos.StoplossTriggered) {
		return nil, false
	}
	if holderCount >= params.MaxHoldingStocks {
		return nil, false
	}

	ma, ok := ta.SMA(domain.Closes(candles), params.EnvelopePeriod)
	if !ok {
		return nil, false
	}
	trigger := ta.PctBelow(ma, params.EnvelopePercent)
	if decimal.NewFromInt(lastPrice).GreaterThan(trigger) {
		return nil, false
	}

	staged := StagedBuyPlan(params, ma)
	if len(staged) == 0 {
		return nil, false
	}

	intent := domain.NewIntent(domain.IntentBuy, code, lastPrice)
	intent.Staged = staged
	e.log.Infof("买入信号 %s: 最新价 %d ≤ 触发价 %s (MA %s)", code, lastPrice, trigger.StringFixed(1), ma.StringFixed(1))
	return &intent, true
}

// StagedBuyPlan 计算全部分批买入挂单
//
// 首批限价 = floorTick(MA·(1−buyPct/100)) + 1 tick；
// 第 n 批限价 = floorTick(前一批·(1−addDropPct/100)) + 1 tick；
// 每批数量 = buyAmountPerStock ÷ 限价（向下取整）。
func StagedBuyPlan(params store.BuySettings, ma decimal.Decimal) []domain.StagedBuy {
	out := make([]domain.StagedBuy, 0, params.MaxBuyCount)

	prev := int64(0)
	for n := 1; n <= params.MaxBuyCount; n++ {
		var raw decimal.Decimal
		if n == 1 {
			raw = ta.PctBelow(ma, params.EnvelopeBuyPercent)
		} else {
			raw = ta.PctBelow(decimal.NewFromInt(prev), params.AdditionalDropPct)
		}
		price := ta.FloorToTickDecimal(raw)
		price += ta.TickSize(price)
		if price <= 0 {
			break
		}
		qty := params.BuyAmountPerStock / price
		if qty <= 0 {
			break
		}
		out = append(out, domain.StagedBuy{BuyCount: n, Price: price, Quantity: qty})
		prev = price
	}
	return out
}

// SellLadderPlan 计算卖出阶梯
//
// 三档止盈按 initialQuantity 的固定比例、价格为均价 ×(1+target/100) 向上
// 对齐 tick；均线档吃剩余数量、价格为 ceilTick(MA)。已成交档位跳过，
// 总挂单量不超过当前持仓数量。
func (e *Engine) SellLadderPlan(params store.SellSettings, pos *domain.Position,
	ma decimal.Decimal, maOK bool) []PlannedSell {

	if !pos.IsOpen() || pos.InitialQuantity <= 0 {
		return nil
	}

	type rung struct {
		target domain.SellTarget
		price  int64
		qty    int64
	}
	profitNames := []domain.SellTarget{domain.TargetProfit1, domain.TargetProfit2, domain.TargetProfit3}

	rungs := make([]rung, 0, 4)
	committed := int64(0)
	for i, targetPct := range params.ProfitTargets {
		if i >= len(profitNames) || i >= len(params.ProfitRatios) {
			break
		}
		qty := pos.InitialQuantity * params.ProfitRatios[i] / 100
		committed += qty
		rate := decimal.NewFromFloat(targetPct).Div(decimal.NewFromInt(100)).Add(decimal.NewFromInt(1))
		price := ta.CeilToTickDecimal(decimal.NewFromInt(pos.AvgPrice).Mul(rate))
		rungs = append(rungs, rung{target: profitNames[i], price: price, qty: qty})
	}
	// 均线档 = 剩余份额
	if maOK {
		if maQty := pos.InitialQuantity - committed; maQty > 0 {
			rungs = append(rungs, rung{target: domain.TargetMA, price: ta.CeilToTickDecimal(ma), qty: maQty})
		}
	}

	remaining := pos.Quantity
	out := make([]PlannedSell, 0, len(rungs))
	for _, r := range rungs {
		if remaining <= 0 {
			break
		}
		if pos.HasSoldTarget(r.target) {
			continue
		}
		qty := r.qty
		if qty > remaining {
			qty = remaining
		}
		if qty <= 0 || r.price <= 0 {
			continue
		}
		out = append(out, PlannedSell{Target: r.target, Price: r.price, Quantity: qty})
		remaining -= qty
	}
	return out
}

// ShouldStoploss 判定止损条件
//
// 已有档位成交（soldTargets 非空）、止损档未成交、未触发过止损，
// 且最新价回落到持仓均价及以下。
func (e *Engine) ShouldStoploss(pos *domain.Position, lastPrice int64) bool {
	if !pos.IsOpen() {
		return false
	}
	if len(pos.SoldTargets) == 0 {
		return false
	}
	if pos.HasSoldTarget(domain.TargetStoploss) || pos.StoplossTriggered {
		return false
	}
	return lastPrice <= pos.AvgPrice
}

// StoplossOrder 止损挂单：全部数量、最新价向下对齐 tick 的限价单
func StoplossOrder(pos *domain.Position, lastPrice int64) PlannedSell {
	return PlannedSell{
		Target:   domain.TargetStoploss,
		Price:    ta.FloorToTick(lastPrice),
		Quantity: pos.Quantity,
		Persist:  true,
	}
}
