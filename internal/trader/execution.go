package trader

import (
	"context"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/internal/store"
)

// onOrderEvent 成交回报：记录成交、维护台账、区分自动/手动卖出
func (t *Trader) onOrderEvent(ctx context.Context, e broker.OrderEvent) {
	if e.ExecQty <= 0 || e.ExecPrice <= 0 {
		return // 委托受理等非成交回报
	}
	code := domain.CanonicalCode(e.Code)
	today := tradingDate(t.now())

	// 체결량按订单累计，同单多次成交回报 orderNo 相同、
	// 累计数量递增；只有累计不变的回报才是重复
	delta, err := t.store.SaveFill(today, code, domain.ExecutionRecord{
		Side:     e.Side,
		Quantity: e.ExecQty,
		Price:    e.ExecPrice,
		Time:     t.now().Format("150405"),
		OrderNo:  e.OrderNo,
	})
	if err != nil {
		t.log.Errorf("成交记录保存失败 %s: %v", code, err)
	}
	if delta <= 0 {
		return // 重复回报
	}

	switch e.Side {
	case domain.SideBuy:
		t.onBuyFill(code, e, delta)
	case domain.SideSell:
		t.onSellFill(code, e)
	}
}

// onBuyFill 买入成交：更新滚动均价，按价格撤掉对应台账买单
func (t *Trader) onBuyFill(code string, e broker.OrderEvent, delta int64) {
	if err := t.store.UpdatePosition(code, func(p *domain.Position) {
		p.RecordBuyFill(e.ExecPrice, delta)
		if p.FirstBuyPrice == 0 {
			p.FirstBuyPrice = e.ExecPrice
		}
		p.LastBuyPrice = e.ExecPrice
	}); err != nil {
		return
	}

	// 完全成交才从台账摘除；部分成交保留待后续回报
	if e.ExecQty >= e.OrderQty {
		side := domain.SideBuy
		price := e.ExecPrice
		if removed, _ := t.store.RemoveMatching(code, store.PendingMatch{Side: &side, Price: &price}); removed > 0 {
			t.log.Infof("买入成交 %s %d股 @%d，台账摘除", code, e.ExecQty, e.ExecPrice)
		}
	}
}

// onSellFill 卖出成交：按 (股票, 价格) 匹配台账判定自动/手动
//
// 匹配到自动档位：登记 soldTargets，其余档位保持不动；
// 匹配不到：视为手动卖出，余额回报到达时以剩余数量重算阶梯。
func (t *Trader) onSellFill(code string, e broker.OrderEvent) {
	matched := domain.SellTarget("")
	for _, po := range t.store.PendingFor(code) {
		if po.Side == domain.SideSell && po.LimitPrice == e.ExecPrice {
			matched = po.TargetName
			break
		}
	}

	if matched != "" {
		if err := t.store.UpdatePosition(code, func(p *domain.Position) {
			p.AddSoldTarget(matched)
			p.SellOccurred = true
		}); err != nil {
			return
		}
		if e.ExecQty >= e.OrderQty {
			side := domain.SideSell
			price := e.ExecPrice
			_, _ = t.store.RemoveMatching(code, store.PendingMatch{Side: &side, Price: &price})
		}
		t.log.Infof("卖出档位成交 %s %s %d股 @%d", code, matched, e.ExecQty, e.ExecPrice)
		return
	}

	// 手动卖出
	t.mu.Lock()
	t.manualSell[code] = true
	t.mu.Unlock()
	if err := t.store.UpdatePosition(code, func(p *domain.Position) {
		p.SellOccurred = true
	}); err != nil {
		return
	}
	t.log.Infof("手动卖出成交 %s %d股 @%d，待余额回报后重算阶梯", code, e.ExecQty, e.ExecPrice)
}

// onBalanceEvent 余额回报：数量与均价的权威来源，驱动持仓状态机
func (t *Trader) onBalanceEvent(ctx context.Context, e broker.BalanceEvent) {
	code := domain.CanonicalCode(e.Code)
	old := t.store.Position(code)
	oldQty := int64(0)
	if old != nil {
		oldQty = old.Quantity
	}

	switch {
	case e.Quantity == 0 && oldQty > 0:
		t.onPositionClosed(ctx, code)
	case e.Quantity > oldQty:
		t.onBuySettled(ctx, code, e, oldQty)
	case e.Quantity < oldQty:
		t.onSellSettled(ctx, code, e)
	default:
		// 数量不变：均价刷新
		_ = t.store.UpdatePosition(code, func(p *domain.Position) {
			p.AvgPrice = e.AvgPrice
		})
	}
}

// onPositionClosed 持仓归零：清台账、收口持仓（保留 sellOccurred）
func (t *Trader) onPositionClosed(ctx context.Context, code string) {
	if _, err := t.store.ClearPendingFor(code); err != nil {
		t.log.Errorf("清理台账失败 %s: %v", code, err)
	}
	if err := t.store.ClosePosition(code); err != nil {
		t.log.Errorf("平仓收口失败 %s: %v", code, err)
		return
	}
	t.mu.Lock()
	delete(t.manualSell, code)
	t.mu.Unlock()

	t.log.Infof("持仓清零 %s，当日再入场已阻断", code)
	t.refreshSubscriptions(ctx)
}

// onBuySettled 买入落账
//
// 首次：buyCount=1，initialQuantity=数量，随后挂卖出阶梯；
// 加仓：buyCount++，撤旧阶梯并以新数量为分母重挂。
// 非交易时段只登记台账。
func (t *Trader) onBuySettled(ctx context.Context, code string, e broker.BalanceEvent, oldQty int64) {
	pyramided := oldQty > 0

	err := t.store.UpdatePosition(code, func(p *domain.Position) {
		p.Quantity = e.Quantity
		p.AvgPrice = e.AvgPrice
		if !pyramided {
			p.BuyCount = 1
			p.InitialQuantity = e.Quantity
			p.OriginalInitialQuantity = e.Quantity
			if p.FirstBuyPrice == 0 {
				p.FirstBuyPrice = e.AvgPrice
			}
		} else {
			p.BuyCount++
			p.InitialQuantity = e.Quantity
		}
	})
	if err != nil {
		return
	}

	if pyramided {
		// 加仓后旧阶梯的分母已失效
		if err := t.cancelSellLadder(ctx, code); err != nil {
			t.log.Errorf("撤旧阶梯失败 %s: %v", code, err)
		}
	}
	if err := t.ensureSellLadder(ctx, code); err != nil {
		t.log.Errorf("挂卖出阶梯失败 %s: %v", code, err)
	}

	t.checkAndCancelExcessOrders(ctx)
	t.refreshSubscriptions(ctx)
}

// onSellSettled 卖出落账
// 自动档位成交：剩余阶梯保持；手动卖出：以剩余数量为分母重算并重挂
func (t *Trader) onSellSettled(ctx context.Context, code string, e broker.BalanceEvent) {
	t.mu.Lock()
	manual := t.manualSell[code]
	delete(t.manualSell, code)
	t.mu.Unlock()

	err := t.store.UpdatePosition(code, func(p *domain.Position) {
		p.Quantity = e.Quantity
		p.AvgPrice = e.AvgPrice
		p.SellOccurred = true
		if manual {
			if p.OriginalInitialQuantity == 0 {
				p.OriginalInitialQuantity = p.InitialQuantity
			}
			p.InitialQuantity = e.Quantity
		}
	})
	if err != nil {
		return
	}

	if manual {
		if err := t.cancelSellLadder(ctx, code); err != nil {
			t.log.Errorf("手动卖出后撤阶梯失败 %s: %v", code, err)
		}
		if err := t.ensureSellLadder(ctx, code); err != nil {
			t.log.Errorf("手动卖出后重挂阶梯失败 %s: %v", code, err)
		}
	}

	// 止损单部分成交：台账止损条目的数量必须跟随剩余持仓，
	// 恢复流程按台账重挂时不得超过实际可卖数量
	if pos := t.store.Position(code); pos != nil && pos.StoplossTriggered && e.Quantity > 0 {
		side := domain.SideSell
		target := domain.TargetStoploss
		n, err := t.store.SetPendingQuantity(code, store.PendingMatch{Side: &side, Target: &target}, e.Quantity)
		if err != nil {
			t.log.Errorf("止损台账余量更新失败 %s: %v", code, err)
		} else if n > 0 {
			t.log.Infof("止损部分成交 %s，台账余量改为 %d", code, e.Quantity)
		}
	}

	// 发生过卖出后，剩余的分批买单必须撤掉
	if pending := t.store.PendingFor(code); hasBuys(pending) {
		if err := t.cancelStagedBuys(ctx, code); err != nil {
			t.log.Errorf("撤剩余买单失败 %s: %v", code, err)
		}
	}
}

func hasBuys(orders []domain.PendingOrder) bool {
	for _, po := range orders {
		if po.Side == domain.SideBuy {
			return true
		}
	}
	return false
}

// checkAndCancelExcessOrders 持仓数量达到上限后，
// 撤掉非持仓股票的未成交买单，释放资金
func (t *Trader) checkAndCancelExcessOrders(ctx context.Context) {
	held := t.store.HeldCodes()
	if len(held) < t.store.BuySettings().MaxHoldingStocks {
		return
	}

	_ = t.orderQ.Enqueue(func(ctx context.Context) (interface{}, error) {
		return t.adapter.CancelBuysExceptHoldings(ctx, t.account, held)
	}, func(result interface{}, err error) {
		if err != nil {
			t.log.Warnf("超额买单清理失败: %v", err)
			return
		}
		if n, ok := result.(int); ok && n > 0 {
			t.log.Infof("持仓已达上限，撤掉 %d 笔非持仓股票买单", n)
		}
	})

	heldSet := make(map[string]bool, len(held))
	for _, c := range held {
		heldSet[c] = true
	}
	for code := range t.store.AllPending() {
		if !heldSet[code] {
			_, _ = t.store.ClearPendingFor(code, domain.SideBuy)
		}
	}
}
