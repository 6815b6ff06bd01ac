package signal

import (
	"testing"
	"testing/quick"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/internal/store"
)

func defaultBuy() store.BuySettings {
	return store.BuySettings{
		EnvelopePeriod:     20,
		EnvelopePercent:    19,
		EnvelopeBuyPercent: 20,
		MaxBuyCount:        3,
		AdditionalDropPct:  10,
		BuyAmountPerStock:  1_000_000,
		MaxHoldingStocks:   3,
	}
}

func defaultSell() store.SellSettings {
	return store.SellSettings{
		ProfitTargets: []float64{2.95, 4.95, 6.95},
		ProfitRatios:  []int64{30, 30, 30},
		MASellRatio:   10,
	}
}

func flatCandles(close int64, n int) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{Date: "20260824", Close: close}
	}
	return out
}

// 首次建仓：跌破触发带后产出三批阶梯挂单
func TestCheckBuyStagedLadder(t *testing.T) {
	e := New()
	candles := flatCandles(10000, 20)

	intent, ok := e.CheckBuy(defaultBuy(), "005930", 8100, candles, nil, 0)
	require.True(t, ok)
	require.Len(t, intent.Staged, 3)

	// 首批：floorTick(10000·0.80)+tick = 8000+10 = 8010
	assert.Equal(t, domain.StagedBuy{BuyCount: 1, Price: 8010, Quantity: 124}, intent.Staged[0])
	// 第二批：floorTick(8010·0.90)+tick = 7200+10 = 7210
	assert.Equal(t, domain.StagedBuy{BuyCount: 2, Price: 7210, Quantity: 138}, intent.Staged[1])
	// 第三批：floorTick(7210·0.90)+tick = 6480+10 = 6490
	assert.Equal(t, domain.StagedBuy{BuyCount: 3, Price: 6490, Quantity: 154}, intent.Staged[2])
}

func TestCheckBuyAboveTriggerNoSignal(t *testing.T) {
	e := New()
	candles := flatCandles(10000, 20)

	// 触发价 = 10000·0.81 = 8100，最新价 8101 不触发
	_, ok := e.CheckBuy(defaultBuy(), "005930", 8101, candles, nil, 0)
	assert.False(t, ok)
}

func TestCheckBuyPreconditions(t *testing.T) {
	e := New()
	candles := flatCandles(10000, 20)

	// 已有持仓
	_, ok := e.CheckBuy(defaultBuy(), "005930", 8100, candles, &domain.Position{Quantity: 10}, 1)
	assert.False(t, ok)

	// 当日发生过卖出（再入场阻断）
	_, ok = e.CheckBuy(defaultBuy(), "005930", 8100, candles, &domain.Position{SellOccurred: true}, 0)
	assert.False(t, ok)

	// 止损粘滞
	_, ok = e.CheckBuy(defaultBuy(), "005930", 8100, candles, &domain.Position{StoplossTriggered: true}, 0)
	assert.False(t, ok)

	// 持仓数已达上限
	_, ok = e.CheckBuy(defaultBuy(), "005930", 8100, candles, nil, 3)
	assert.False(t, ok)

	// K 线不足
	_, ok = e.CheckBuy(defaultBuy(), "005930", 8100, flatCandles(10000, 19), nil, 0)
	assert.False(t, ok)
}

// 首次成交后的卖出阶梯（124 股 @ 8050，MA 10000）
func TestSellLadderPlanInitial(t *testing.T) {
	e := New()
	pos := &domain.Position{Code: "005930", Quantity: 124, AvgPrice: 8050, InitialQuantity: 124}

	plan := e.SellLadderPlan(defaultSell(), pos, decimal.NewFromInt(10000), true)
	require.Len(t, plan, 4)

	assert.Equal(t, PlannedSell{Target: domain.TargetProfit1, Price: 8290, Quantity: 37}, plan[0])
	assert.Equal(t, PlannedSell{Target: domain.TargetProfit2, Price: 8450, Quantity: 37}, plan[1])
	assert.Equal(t, PlannedSell{Target: domain.TargetProfit3, Price: 8610, Quantity: 37}, plan[2])
	assert.Equal(t, PlannedSell{Target: domain.TargetMA, Price: 10000, Quantity: 13}, plan[3])
}

// 已成交档位被跳过，总量不超过剩余持仓
func TestSellLadderPlanSkipsSoldTargets(t *testing.T) {
	e := New()
	pos := &domain.Position{
		Code: "005930", Quantity: 87, AvgPrice: 8050, InitialQuantity: 124,
		SoldTargets: []domain.SellTarget{domain.TargetProfit1},
	}

	plan := e.SellLadderPlan(defaultSell(), pos, decimal.NewFromInt(10000), true)
	require.Len(t, plan, 3)

	total := int64(0)
	for _, p := range plan {
		assert.NotEqual(t, domain.TargetProfit1, p.Target)
		total += p.Quantity
	}
	assert.LessOrEqual(t, total, pos.Quantity)
}

// 手动部分卖出后以剩余数量为分母重算（74 股）
func TestSellLadderPlanRecomputedDenominator(t *testing.T) {
	e := New()
	pos := &domain.Position{Code: "005930", Quantity: 74, AvgPrice: 8050, InitialQuantity: 74, OriginalInitialQuantity: 124}

	plan := e.SellLadderPlan(defaultSell(), pos, decimal.NewFromInt(10000), true)
	require.Len(t, plan, 4)
	assert.Equal(t, int64(22), plan[0].Quantity)
	assert.Equal(t, int64(22), plan[1].Quantity)
	assert.Equal(t, int64(22), plan[2].Quantity)
	assert.Equal(t, int64(8), plan[3].Quantity)
}

// MA 不可用时省略均线档
func TestSellLadderPlanNoMA(t *testing.T) {
	e := New()
	pos := &domain.Position{Code: "005930", Quantity: 124, AvgPrice: 8050, InitialQuantity: 124}

	plan := e.SellLadderPlan(defaultSell(), pos, decimal.Zero, false)
	require.Len(t, plan, 3)
	for _, p := range plan {
		assert.NotEqual(t, domain.TargetMA, p.Target)
	}
}

func TestShouldStoploss(t *testing.T) {
	e := New()

	pos := &domain.Position{Quantity: 87, AvgPrice: 8050, SoldTargets: []domain.SellTarget{domain.TargetProfit1}}
	assert.True(t, e.ShouldStoploss(pos, 8000))
	assert.True(t, e.ShouldStoploss(pos, 8050)) // 等于均价也触发
	assert.False(t, e.ShouldStoploss(pos, 8051))

	// 无已成交档位不触发
	fresh := &domain.Position{Quantity: 124, AvgPrice: 8050}
	assert.False(t, e.ShouldStoploss(fresh, 7000))

	// 已触发过不重复
	done := &domain.Position{Quantity: 87, AvgPrice: 8050, StoplossTriggered: true,
		SoldTargets: []domain.SellTarget{domain.TargetProfit1}}
	assert.False(t, e.ShouldStoploss(done, 8000))

	// 止损档已成交不再触发
	sold := &domain.Position{Quantity: 10, AvgPrice: 8050,
		SoldTargets: []domain.SellTarget{domain.TargetProfit1, domain.TargetStoploss}}
	assert.False(t, e.ShouldStoploss(sold, 8000))
}

func TestStoplossOrder(t *testing.T) {
	pos := &domain.Position{Quantity: 87, AvgPrice: 8050}

	order := StoplossOrder(pos, 8003)
	assert.Equal(t, domain.TargetStoploss, order.Target)
	assert.Equal(t, int64(8000), order.Price) // floorTick(8003)
	assert.Equal(t, int64(87), order.Quantity)
	assert.True(t, order.Persist)
}

// 属性：任意持仓与已成交档位组合下，阶梯总量 ≤ 当前持仓数量
func TestSellLadderTotalNeverExceedsQuantity(t *testing.T) {
	e := New()
	params := defaultSell()

	prop := func(qtySeed, initSeed uint16, soldMask uint8) bool {
		qty := int64(qtySeed)%2000 + 1
		initial := int64(initSeed)%2000 + 1
		pos := &domain.Position{Code: "005930", Quantity: qty, AvgPrice: 8050, InitialQuantity: initial}

		targets := []domain.SellTarget{domain.TargetProfit1, domain.TargetProfit2, domain.TargetProfit3, domain.TargetMA}
		for i, tgt := range targets {
			if soldMask&(1<<i) != 0 {
				pos.AddSoldTarget(tgt)
			}
		}

		plan := e.SellLadderPlan(params, pos, decimal.NewFromInt(10000), true)
		total := int64(0)
		for _, p := range plan {
			if pos.HasSoldTarget(p.Target) {
				return false
			}
			total += p.Quantity
		}
		return total <= qty
	}
	require.NoError(t, quick.Check(prop, nil))
}
