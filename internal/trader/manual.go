package trader

import (
	"context"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/domain"
)

// ManualBuy 手动限价买入；交易时段外拒绝
// 不登记台账，成交后会按"手动"路径对账
func (t *Trader) ManualBuy(ctx context.Context, code string, qty, price int64) error {
	if !isMarketOpen(t.now()) {
		return broker.ErrMarketClosed
	}
	if !t.isConnected() {
		return broker.ErrNotConnected
	}
	code = domain.CanonicalCode(code)
	if qty <= 0 || price <= 0 {
		return broker.ErrInsufficientQuantity
	}

	if err := t.submitOrder(ctx, broker.OrderRequest{
		Side:      domain.SideBuy,
		Account:   t.account,
		Code:      code,
		Quantity:  qty,
		Price:     price,
		PriceKind: domain.PriceLimit,
	}); err != nil {
		return err
	}
	t.log.Infof("手动买入 %s %d股 @%d", code, qty, price)
	return nil
}

// ManualSell 手动卖出；交易时段外拒绝
// price 为 0 时按市价卖出
func (t *Trader) ManualSell(ctx context.Context, code string, qty, price int64) error {
	if !isMarketOpen(t.now()) {
		return broker.ErrMarketClosed
	}
	if !t.isConnected() {
		return broker.ErrNotConnected
	}
	code = domain.CanonicalCode(code)

	pos := t.store.Position(code)
	if !pos.IsOpen() || qty <= 0 || qty > pos.Quantity {
		return broker.ErrInsufficientQuantity
	}

	kind := domain.PriceLimit
	if price == 0 {
		kind = domain.PriceMarket
	}
	if err := t.submitOrder(ctx, broker.OrderRequest{
		Side:      domain.SideSell,
		Account:   t.account,
		Code:      code,
		Quantity:  qty,
		Price:     price,
		PriceKind: kind,
	}); err != nil {
		return err
	}
	t.log.Infof("手动卖出 %s %d股 @%d", code, qty, price)
	return nil
}

// DepositDetail 查询预托金明细（监控服务使用）
func (t *Trader) DepositDetail(ctx context.Context) (domain.DepositDetail, error) {
	if !t.isConnected() {
		return domain.DepositDetail{}, broker.ErrNotConnected
	}
	result, err := t.queryQ.Do(ctx, func(ctx context.Context) (interface{}, error) {
		return t.adapter.GetDepositDetail(ctx, t.account)
	})
	if err != nil {
		return domain.DepositDetail{}, err
	}
	detail, ok := result.(domain.DepositDetail)
	if !ok {
		return domain.DepositDetail{}, broker.ErrAdapterCall
	}
	return detail, nil
}
