package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/pkg/persistence"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trading_state.json")
	s, err := New(persistence.NewJSONFileStore(path))
	require.NoError(t, err)
	return s, path
}

func TestDefaultsApplied(t *testing.T) {
	s, _ := newTestStore(t)

	buy := s.BuySettings()
	assert.Equal(t, 20, buy.EnvelopePeriod)
	assert.Equal(t, int64(19), buy.EnvelopePercent)
	assert.Equal(t, int64(20), buy.EnvelopeBuyPercent)
	assert.Equal(t, 3, buy.MaxBuyCount)
	assert.Equal(t, int64(10), buy.AdditionalDropPct)
	assert.Equal(t, int64(1_000_000), buy.BuyAmountPerStock)
	assert.Equal(t, 3, buy.MaxHoldingStocks)

	sell := s.SellSettings()
	assert.Equal(t, []float64{2.95, 4.95, 6.95}, sell.ProfitTargets)
	assert.Equal(t, []int64{30, 30, 30}, sell.ProfitRatios)
	assert.Equal(t, int64(10), sell.MASellRatio)
	assert.False(t, sell.StoplossUseMarket)

	eh := s.ErrorHandling()
	assert.Equal(t, 3, eh.OrderRetryCount)
	assert.Equal(t, 1000, eh.OrderRetryIntervalMS)
	assert.Equal(t, 10, eh.ReconnectIntervalSec)
}

// 持久化往返：Save→Load→Save 产生字节相同的文件
func TestPersistRoundTripStable(t *testing.T) {
	s, path := newTestStore(t)

	require.NoError(t, s.UpdatePosition("005930", func(p *domain.Position) {
		p.Quantity = 124
		p.AvgPrice = 8050
		p.InitialQuantity = 124
		p.BuyCount = 1
		p.AddSoldTarget(domain.TargetProfit1)
	}))
	_, err := s.SavePending("005930", domain.PendingOrder{
		Side: domain.SideSell, Quantity: 37, LimitPrice: 8450, TargetName: domain.TargetProfit2,
	})
	require.NoError(t, err)

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	s2, err := New(persistence.NewJSONFileStore(path))
	require.NoError(t, err)
	require.NoError(t, s2.Flush())

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestSavePendingIdempotent(t *testing.T) {
	s, _ := newTestStore(t)

	po := domain.PendingOrder{Side: domain.SideBuy, Quantity: 124, LimitPrice: 8050, BuyCount: 1}
	added, err := s.SavePending("005930", po)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.SavePending("005930", po)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, s.PendingFor("005930"), 1)
}

func TestRemoveMatching(t *testing.T) {
	s, _ := newTestStore(t)

	_, _ = s.SavePending("005930", domain.PendingOrder{Side: domain.SideBuy, LimitPrice: 8050, BuyCount: 1, Quantity: 124})
	_, _ = s.SavePending("005930", domain.PendingOrder{Side: domain.SideBuy, LimitPrice: 7250, BuyCount: 2, Quantity: 137})
	_, _ = s.SavePending("005930", domain.PendingOrder{Side: domain.SideSell, LimitPrice: 8290, TargetName: domain.TargetProfit1, Quantity: 37})

	price := int64(8050)
	side := domain.SideBuy
	removed, err := s.RemoveMatching("005930", PendingMatch{Side: &side, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, s.PendingFor("005930"), 2)

	removed, err = s.RemoveMatching("005930", PendingMatch{Side: &side})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	sells := s.PendingFor("005930")
	require.Len(t, sells, 1)
	assert.Equal(t, domain.TargetProfit1, sells[0].TargetName)
}

// soldTargets 只增不减
func TestInvariantSoldTargetsMonotone(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.UpdatePosition("005930", func(p *domain.Position) {
		p.Quantity = 100
		p.AvgPrice = 8050
		p.AddSoldTarget(domain.TargetProfit1)
	}))

	err := s.UpdatePosition("005930", func(p *domain.Position) {
		p.SoldTargets = nil
	})
	assert.ErrorIs(t, err, ErrInvariant)
	assert.True(t, s.IsFrozen("005930"))

	// 违约的变更没有生效
	p := s.Position("005930")
	assert.True(t, p.HasSoldTarget(domain.TargetProfit1))
}

// 发生过卖出后买入批次冻结
func TestInvariantBuyCountFrozenAfterSell(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.UpdatePosition("005930", func(p *domain.Position) {
		p.Quantity = 87
		p.BuyCount = 1
		p.SellOccurred = true
	}))

	err := s.UpdatePosition("005930", func(p *domain.Position) {
		p.BuyCount = 2
	})
	assert.ErrorIs(t, err, ErrInvariant)
}

// 平仓清空状态但保留 sellOccurred
func TestClosePositionKeepsSellOccurred(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.UpdatePosition("005930", func(p *domain.Position) {
		p.Quantity = 87
		p.AvgPrice = 8050
		p.InitialQuantity = 124
		p.BuyCount = 1
		p.StoplossTriggered = true
		p.StoplossPrice = 8000
		p.AddSoldTarget(domain.TargetProfit1)
		p.AddSoldTarget(domain.TargetStoploss)
	}))

	require.NoError(t, s.ClosePosition("005930"))

	p := s.Position("005930")
	assert.Equal(t, int64(0), p.Quantity)
	assert.Empty(t, p.SoldTargets)
	assert.False(t, p.StoplossTriggered)
	assert.Equal(t, int64(0), p.StoplossPrice)
	assert.True(t, p.SellOccurred)
}

func TestRolloverResetsClosedPositions(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.UpdatePosition("005930", func(p *domain.Position) {
		p.Quantity = 0
		p.SellOccurred = true
	}))
	require.NoError(t, s.UpdatePosition("000660", func(p *domain.Position) {
		p.Quantity = 50
		p.AvgPrice = 120000
	}))

	changed, err := s.RolloverIfNewDay("20260825")
	require.NoError(t, err)
	assert.True(t, changed)

	// 已平仓记录被清除，新的一天允许再入场
	assert.Nil(t, s.Position("005930"))
	// 仍有持仓的保持不动
	assert.NotNil(t, s.Position("000660"))

	sess := s.Session()
	assert.Equal(t, "20260825", sess.LastTradingDate)
	assert.False(t, sess.OrdersRestored)
	assert.False(t, sess.StateSynced)

	changed, err = s.RolloverIfNewDay("20260825")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestHousekeepLedgerKeepsPersist(t *testing.T) {
	s, _ := newTestStore(t)

	// 无持仓股票：普通卖单清掉，persist 止损单保留，买单保留
	_, _ = s.SavePending("005930", domain.PendingOrder{Side: domain.SideSell, LimitPrice: 8290, Quantity: 37, TargetName: domain.TargetProfit1})
	_, _ = s.SavePending("005930", domain.PendingOrder{Side: domain.SideSell, LimitPrice: 8000, Quantity: 87, TargetName: domain.TargetStoploss, Persist: true})
	_, _ = s.SavePending("005930", domain.PendingOrder{Side: domain.SideBuy, LimitPrice: 7250, BuyCount: 2, Quantity: 137})

	removed, err := s.HousekeepLedger()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	left := s.PendingFor("005930")
	require.Len(t, left, 2)
	for _, po := range left {
		assert.True(t, po.Persist || po.Side == domain.SideBuy)
	}
}

func TestExecutionDedupAndPrune(t *testing.T) {
	s, _ := newTestStore(t)

	rec := domain.ExecutionRecord{Side: domain.SideSell, Quantity: 37, Price: 8290, Time: "101500", OrderNo: "12345"}
	added, err := s.SaveExecution("20260824", "005930", rec)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.SaveExecution("20260824", "005930", rec)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, s.ExecutionsFor("20260824", "005930"), 1)

	_, _ = s.SaveExecution("20260810", "005930", domain.ExecutionRecord{OrderNo: "1", Side: domain.SideBuy})
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.Local)
	removed, err := s.PruneExecutions(7, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Empty(t, s.ExecutionsFor("20260810", "005930"))
}

// 同单累计回报：同量为重复，累计推进按增量入账且覆盖记录
func TestSaveFillCumulative(t *testing.T) {
	s, _ := newTestStore(t)

	rec := domain.ExecutionRecord{Side: domain.SideSell, Quantity: 20, Price: 8290, Time: "101500", OrderNo: "12345"}
	delta, err := s.SaveFill("20260824", "005930", rec)
	require.NoError(t, err)
	assert.Equal(t, int64(20), delta)

	delta, err = s.SaveFill("20260824", "005930", rec)
	require.NoError(t, err)
	assert.Equal(t, int64(0), delta)

	rec.Quantity = 37
	rec.Time = "101501"
	delta, err = s.SaveFill("20260824", "005930", rec)
	require.NoError(t, err)
	assert.Equal(t, int64(17), delta)

	// 同一订单始终只有一条记录，数量为最新累计值
	recs := s.ExecutionsFor("20260824", "005930")
	require.Len(t, recs, 1)
	assert.Equal(t, int64(37), recs[0].Quantity)
	assert.Equal(t, "101501", recs[0].Time)
}

func TestSetPendingQuantity(t *testing.T) {
	s, _ := newTestStore(t)

	_, _ = s.SavePending("005930", domain.PendingOrder{Side: domain.SideSell, LimitPrice: 8000, Quantity: 87, TargetName: domain.TargetStoploss, Persist: true})
	_, _ = s.SavePending("005930", domain.PendingOrder{Side: domain.SideBuy, LimitPrice: 7250, Quantity: 137, BuyCount: 2})

	side := domain.SideSell
	target := domain.TargetStoploss
	n, err := s.SetPendingQuantity("005930", PendingMatch{Side: &side, Target: &target}, 47)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// 只改匹配条目，其余不动
	for _, po := range s.PendingFor("005930") {
		if po.TargetName == domain.TargetStoploss {
			assert.Equal(t, int64(47), po.Quantity)
		} else {
			assert.Equal(t, int64(137), po.Quantity)
		}
	}

	// 数量已一致时为空操作
	n, err = s.SetPendingQuantity("005930", PendingMatch{Side: &side, Target: &target}, 47)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
