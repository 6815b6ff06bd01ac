package trader

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/internal/events"
)

// fullStateSync 启动全量同步
//
// 顺序：交易日切换 → 余额同步 → 失效持仓清理 → 当日成交扫描还原
// soldTargets → 成交历史清理 → 台账日常清理 → （开盘中）恢复挂单。
func (t *Trader) fullStateSync(ctx context.Context) error {
	today := tradingDate(t.now())
	if changed, err := t.store.RolloverIfNewDay(today); err != nil {
		return err
	} else if changed {
		t.log.Infof("交易日切换至 %s", today)
	}
	t.store.UnfreezeAll()

	if err := t.syncPositionsFromBalance(ctx); err != nil {
		return err
	}
	if err := t.syncStateFromExecutions(ctx); err != nil {
		t.log.Warnf("成交扫描还原失败: %v", err)
	}
	if _, err := t.store.PruneExecutions(executionKeep, t.now()); err != nil {
		t.log.Warnf("成交历史清理失败: %v", err)
	}
	if removed, err := t.store.HousekeepLedger(); err != nil {
		t.log.Warnf("台账清理失败: %v", err)
	} else if removed > 0 {
		t.log.Infof("台账清理：删除 %d 条失效挂单", removed)
	}
	_ = t.store.SetStateSynced(true)

	if isMarketOpen(t.now()) {
		t.restoreOrders(ctx)
	}
	return nil
}

// syncPositionsFromBalance 以券商余额为准刷新持仓；
// 余额中不存在的持仓视为已全部卖出，收口并阻断当日再入场
func (t *Trader) syncPositionsFromBalance(ctx context.Context) error {
	result, err := t.queryQ.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return t.adapter.GetBalance(ctx, t.account)
	})
	if err != nil {
		return errors.Wrap(err, "query balance")
	}
	balance, ok := result.(domain.Balance)
	if !ok {
		return errors.New("unexpected balance result type")
	}

	inBalance := make(map[string]bool, len(balance.Holdings))
	for _, h := range balance.Holdings {
		code := domain.CanonicalCode(h.Code)
		inBalance[code] = true
		if err := t.store.SyncPositionFromBalance(code, h.Name, h.Quantity, h.AvgPrice); err != nil {
			return err
		}
	}

	// 本地有、券商没有 → 场外已清仓
	for code, p := range t.store.Positions() {
		if p.IsOpen() && !inBalance[code] {
			t.log.Warnf("持仓 %s 在券商余额中不存在，按已清仓处理", code)
			_, _ = t.store.ClearPendingFor(code)
			_ = t.store.ClosePosition(code)
		}
	}
	t.log.Infof("余额同步完成：%d 只持仓", len(balance.Holdings))
	return nil
}

// syncStateFromExecutions 扫描当日成交，按收益率启发式还原 soldTargets
//
// 卖出成交相对均价的收益率：与某止盈档差距 ≤0.5 个百分点 → 该档；
// 0 与首档之间 → 均线档；负收益 → 止损档。
func (t *Trader) syncStateFromExecutions(ctx context.Context) error {
	result, err := t.queryQ.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return t.adapter.TodayExecutions(ctx, t.account)
	})
	if err != nil {
		return err
	}
	execs, ok := result.([]domain.Execution)
	if !ok {
		return errors.New("unexpected executions result type")
	}

	today := tradingDate(t.now())
	targets := t.store.SellSettings().ProfitTargets
	profitNames := []domain.SellTarget{domain.TargetProfit1, domain.TargetProfit2, domain.TargetProfit3}

	for _, ex := range execs {
		code := domain.CanonicalCode(ex.Code)
		_, _ = t.store.SaveExecution(today, code, domain.ExecutionRecord{
			Side: ex.Side, Quantity: ex.Qty, Price: ex.Price, Time: ex.Time, OrderNo: ex.OrderNo,
		})
		if ex.Side != domain.SideSell {
			continue
		}
		pos := t.store.Position(code)
		if pos == nil || pos.AvgPrice <= 0 {
			continue
		}

		rate := float64(ex.Price-pos.AvgPrice) / float64(pos.AvgPrice) * 100
		target := classifySellRate(rate, targets, profitNames)
		if target == "" {
			continue
		}
		_ = t.store.UpdatePosition(code, func(p *domain.Position) {
			p.AddSoldTarget(target)
			p.SellOccurred = true
			if target == domain.TargetStoploss {
				p.StoplossTriggered = true
				p.StoplossPrice = ex.Price
			}
		})
	}
	return nil
}

// classifySellRate 按收益率归类卖出成交属于哪个档位
func classifySellRate(rate float64, targets []float64, names []domain.SellTarget) domain.SellTarget {
	for i, tp := range targets {
		if i >= len(names) {
			break
		}
		if math.Abs(rate-tp) <= 0.5 {
			return names[i]
		}
	}
	if len(targets) > 0 && rate > 0 && rate < targets[0] {
		return domain.TargetMA
	}
	if rate < 0 {
		return domain.TargetStoploss
	}
	return ""
}

// restoreOrders 开盘中的挂单恢复
func (t *Trader) restoreOrders(ctx context.Context) {
	t.ensureAllStoplossOrders(ctx)
	t.restoreAllSellLadders(ctx)
	t.checkAndRestoreOrders(ctx)
	_ = t.store.SetOrdersRestored(true)
}

// ensureAllStoplossOrders 已触发止损的持仓必须有且仅有一笔止损挂单
func (t *Trader) ensureAllStoplossOrders(ctx context.Context) {
	for code, p := range t.store.Positions() {
		if !p.IsOpen() || !p.StoplossTriggered {
			continue
		}
		exists := false
		for _, po := range t.store.PendingFor(code) {
			if po.TargetName == domain.TargetStoploss {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		t.log.Warnf("止损挂单缺失，补挂 %s %d股 @%d", code, p.Quantity, p.StoplossPrice)
		if err := t.submitOrder(ctx, broker.OrderRequest{
			Side:      domain.SideSell,
			Account:   t.account,
			Code:      code,
			Quantity:  p.Quantity,
			Price:     p.StoplossPrice,
			PriceKind: domain.PriceLimit,
		}); err != nil {
			t.log.Errorf("补挂止损失败 %s: %v", code, err)
			continue
		}
		_, _ = t.store.SavePending(code, domain.PendingOrder{
			Side:       domain.SideSell,
			Quantity:   p.Quantity,
			LimitPrice: p.StoplossPrice,
			TargetName: domain.TargetStoploss,
			Persist:    true,
		})
	}
}

// restoreAllSellLadders 为全部持仓补齐卖出阶梯
func (t *Trader) restoreAllSellLadders(ctx context.Context) {
	for code, p := range t.store.Positions() {
		if !p.IsOpen() || p.StoplossTriggered {
			continue
		}
		if err := t.ensureSellLadder(ctx, code); err != nil {
			t.log.Errorf("恢复卖出阶梯失败 %s: %v", code, err)
		}
	}
}

// checkAndRestoreOrders 台账重放：券商侧缺失的挂单重新发送
func (t *Trader) checkAndRestoreOrders(ctx context.Context) {
	result, err := t.queryQ.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return t.adapter.OpenOrders(ctx, t.account)
	})
	if err != nil {
		t.log.Errorf("查询未成交订单失败: %v", err)
		return
	}
	open, _ := result.([]domain.OpenOrder)

	type liveKey struct {
		code  string
		side  domain.Side
		price int64
	}
	live := make(map[liveKey]bool, len(open))
	for _, o := range open {
		live[liveKey{code: domain.CanonicalCode(o.Code), side: o.Side, price: o.Price}] = true
	}

	restored := 0
	for code, orders := range t.store.AllPending() {
		for _, po := range orders {
			if live[liveKey{code: code, side: po.Side, price: po.LimitPrice}] {
				continue
			}
			if err := t.submitOrder(ctx, broker.OrderRequest{
				Side:      po.Side,
				Account:   t.account,
				Code:      code,
				Quantity:  po.Quantity,
				Price:     po.LimitPrice,
				PriceKind: domain.PriceLimit,
			}); err != nil {
				t.log.Errorf("挂单恢复失败 %s %s @%d: %v", code, po.Side, po.LimitPrice, err)
				continue
			}
			restored++
		}
	}
	if restored > 0 {
		t.log.Infof("台账重放完成：恢复 %d 笔挂单", restored)
	}
}

// marketOpenWatcher 开盘巡检
//
// 每 60 秒：交易日切换检查；开盘中未恢复则执行恢复；
// 已恢复但券商侧挂单为零而台账非空时，视为券商侧已撤单（如日终），重新恢复。
func (t *Trader) marketOpenWatcher(ctx context.Context) {
	ticker := time.NewTicker(watcherInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopping:
			return
		case <-ticker.C:
		}
		if !t.isConnected() {
			continue
		}

		now := t.now()
		if changed, _ := t.store.RolloverIfNewDay(tradingDate(now)); changed {
			t.log.Infof("交易日切换至 %s", tradingDate(now))
		}
		if !isMarketOpen(now) {
			continue
		}

		sess := t.store.Session()
		if !sess.OrdersRestored {
			t.restoreOrders(ctx)
			continue
		}
		if t.store.PendingCount() == 0 {
			continue
		}
		result, err := t.queryQ.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return t.adapter.OpenOrders(ctx, t.account)
		})
		if err != nil {
			continue
		}
		if open, _ := result.([]domain.OpenOrder); len(open) == 0 {
			t.log.Warn("券商侧挂单为零但台账非空，判定券商侧已撤单，重新恢复")
			_ = t.store.SetOrdersRestored(false)
			t.restoreOrders(ctx)
		}
	}
}

// pollingLoop 未订阅股票轮询
// 每 30 秒取轮询集合前 5 只，查询现价后走与实时事件相同的决策路径
func (t *Trader) pollingLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopping:
			return
		case <-ticker.C:
		}
		if !t.isConnected() || !isMarketOpen(t.now()) {
			continue
		}

		t.mu.Lock()
		n := len(t.pollingSet)
		if n > pollTopN {
			n = pollTopN
		}
		batch := append([]string(nil), t.pollingSet[:n]...)
		t.mu.Unlock()

		for _, code := range batch {
			code := code
			_ = t.queryQ.Enqueue(func(ctx context.Context) (interface{}, error) {
				return t.adapter.GetStockInfo(ctx, code)
			}, func(result interface{}, err error) {
				if err != nil {
					return
				}
				if info, ok := result.(domain.StockInfo); ok && info.Price > 0 {
					t.ticks.Push(events.Tick{Code: code, Price: info.Price, Volume: info.Volume, At: t.now()})
				}
			})
		}
	}
}
