package trader

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/internal/requestq"
	"github.com/stockbot/gostock/internal/signal"
	"github.com/stockbot/gostock/internal/store"
	"github.com/stockbot/gostock/pkg/ta"
)

// submitOrder 经订单队列下单，失败按配置重试
func (t *Trader) submitOrder(ctx context.Context, req broker.OrderRequest) error {
	eh := t.store.ErrorHandling()
	interval := time.Duration(eh.OrderRetryIntervalMS) * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= eh.OrderRetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.stopping:
				return requestq.ErrStopped
			case <-time.After(interval):
			}
		}
		// 下单间隔以实际发单时刻计
		t.mu.Lock()
		t.lastOrderAt = t.now()
		t.mu.Unlock()

		result, err := t.orderQ.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return t.adapter.SendOrder(ctx, req)
		})
		if err != nil {
			lastErr = err
			continue
		}
		status, _ := result.(int)
		if status == 0 {
			return nil
		}
		lastErr = broker.OrderRejectedError(status)
		t.log.Warnf("下单被拒 %s %s qty=%d price=%d: status %d (尝试 %d/%d)",
			req.Side, req.Code, req.Quantity, req.Price, status, attempt+1, eh.OrderRetryCount+1)
	}
	return lastErr
}

// executeBuy 首次建仓：一次性挂出全部分批限价买单
// 挂单先登记台账再发送；发送失败的批次回滚台账
func (t *Trader) executeBuy(ctx context.Context, in domain.Intent) error {
	// 派发时重新校验（决策与派发之间状态可能已变化）
	pos := t.store.Position(in.Code)
	if pos.IsOpen() || (pos != nil && (pos.SellOccurred || pos.StoplossTriggered)) {
		return nil
	}
	if t.store.HolderCount() >= t.store.BuySettings().MaxHoldingStocks {
		return nil
	}
	if !isMarketOpen(t.now()) {
		return broker.ErrMarketClosed
	}

	name := t.adapter.StockName(ctx, in.Code)
	for _, stage := range in.Staged {
		po := domain.PendingOrder{
			Side:       domain.SideBuy,
			Quantity:   stage.Quantity,
			LimitPrice: stage.Price,
			BuyCount:   stage.BuyCount,
		}
		added, err := t.store.SavePending(in.Code, po)
		if err != nil {
			return err
		}
		if !added {
			continue // 已有同价同批次挂单
		}

		err = t.submitOrder(ctx, broker.OrderRequest{
			Side:      domain.SideBuy,
			Account:   t.account,
			Code:      in.Code,
			Quantity:  stage.Quantity,
			Price:     stage.Price,
			PriceKind: domain.PriceLimit,
		})
		if err != nil {
			price := stage.Price
			count := stage.BuyCount
			side := domain.SideBuy
			_, _ = t.store.RemoveMatching(in.Code, store.PendingMatch{Side: &side, Price: &price, BuyCount: &count})
			return err
		}
		t.log.Infof("买入挂单 %s(%s) 第%d批 %d股 @%d", name, in.Code, stage.BuyCount, stage.Quantity, stage.Price)
	}
	return nil
}

// executeStoploss 止损：撤掉该股票全部挂单，全量限价卖出
func (t *Trader) executeStoploss(ctx context.Context, in domain.Intent) error {
	pos := t.store.Position(in.Code)
	if !t.engine.ShouldStoploss(pos, in.LastPrice) {
		return nil
	}

	order := signal.StoplossOrder(pos, in.LastPrice)

	// 先撤单：券商侧 + 台账
	if _, err := t.orderQ.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return t.adapter.CancelAllForInstrument(ctx, t.account, in.Code)
	}); err != nil {
		return err
	}
	if _, err := t.store.ClearPendingFor(in.Code); err != nil {
		return err
	}

	if err := t.submitOrder(ctx, broker.OrderRequest{
		Side:      domain.SideSell,
		Account:   t.account,
		Code:      in.Code,
		Quantity:  order.Quantity,
		Price:     order.Price,
		PriceKind: domain.PriceLimit,
	}); err != nil {
		return err
	}

	if _, err := t.store.SavePending(in.Code, domain.PendingOrder{
		Side:       domain.SideSell,
		Quantity:   order.Quantity,
		LimitPrice: order.Price,
		TargetName: domain.TargetStoploss,
		Persist:    true,
	}); err != nil {
		return err
	}
	if err := t.store.UpdatePosition(in.Code, func(p *domain.Position) {
		p.StoplossTriggered = true
		p.StoplossPrice = order.Price
		p.AddSoldTarget(domain.TargetStoploss)
		p.SellOccurred = true
	}); err != nil {
		return err
	}
	t.log.Warnf("止损触发 %s: %d股 @%d (均价 %d, 最新价 %d)",
		in.Code, order.Quantity, order.Price, pos.AvgPrice, in.LastPrice)
	return nil
}

// maForCode 从缓存日线计算均线
func (t *Trader) maForCode(code string) (decimal.Decimal, bool) {
	candles, ok := t.candlesFor(code)
	if !ok {
		return decimal.Zero, false
	}
	return ta.SMA(domain.Closes(candles), t.store.BuySettings().EnvelopePeriod)
}

// ensureSellLadder 补齐卖出阶梯：缺失的档位登记台账并挂单
// 非交易时段只登记台账，开盘恢复时再挂单
func (t *Trader) ensureSellLadder(ctx context.Context, code string) error {
	pos := t.store.Position(code)
	if !pos.IsOpen() || pos.StoplossTriggered {
		return nil
	}

	ma, maOK := t.maForCode(code)
	plan := t.engine.SellLadderPlan(t.store.SellSettings(), pos, ma, maOK)
	if len(plan) == 0 {
		return nil
	}

	marketOpen := isMarketOpen(t.now())
	for _, rung := range plan {
		po := domain.PendingOrder{
			Side:       domain.SideSell,
			Quantity:   rung.Quantity,
			LimitPrice: rung.Price,
			TargetName: rung.Target,
			Persist:    rung.Persist,
		}
		added, err := t.store.SavePending(code, po)
		if err != nil {
			return err
		}
		if !added {
			continue // 档位已登记
		}
		if !marketOpen {
			t.log.Infof("非交易时段，%s 档位 %s 仅登记台账待开盘挂单", code, rung.Target)
			continue
		}
		if err := t.submitOrder(ctx, broker.OrderRequest{
			Side:      domain.SideSell,
			Account:   t.account,
			Code:      code,
			Quantity:  rung.Quantity,
			Price:     rung.Price,
			PriceKind: domain.PriceLimit,
		}); err != nil {
			return err
		}
		t.log.Infof("卖出阶梯挂单 %s %s %d股 @%d", code, rung.Target, rung.Quantity, rung.Price)
	}
	return nil
}

// cancelSellLadder 撤掉某股票的自动卖出阶梯（券商侧 + 台账）
func (t *Trader) cancelSellLadder(ctx context.Context, code string) error {
	if _, err := t.orderQ.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return t.adapter.CancelSellsForInstrument(ctx, t.account, code)
	}); err != nil {
		return err
	}
	_, err := t.store.ClearPendingFor(code, domain.SideSell)
	return err
}

// cancelStagedBuys 撤掉某股票剩余的分批买单
func (t *Trader) cancelStagedBuys(ctx context.Context, code string) error {
	if _, err := t.orderQ.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return t.adapter.CancelBuysForInstrument(ctx, t.account, code)
	}); err != nil {
		return err
	}
	_, err := t.store.ClearPendingFor(code, domain.SideBuy)
	return err
}
