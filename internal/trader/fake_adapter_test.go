package trader

import (
	"context"
	"sync"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/domain"
)

// fakeAdapter 测试用券商适配器：记录全部调用，返回预置数据
type fakeAdapter struct {
	mu sync.Mutex

	orders      []broker.OrderRequest
	cancelAll   []string
	cancelBuys  []string
	cancelSells []string

	balance    domain.Balance
	executions []domain.Execution
	openOrders []domain.OpenOrder
	candles    map[string][]domain.Candle

	orderStatus int // SendOrder 返回的状态码
	events      chan broker.Event
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		candles: make(map[string][]domain.Candle),
		events:  make(chan broker.Event, 64),
	}
}

func (f *fakeAdapter) Connect(ctx context.Context) (broker.ServerKind, error) {
	return broker.ServerPaper, nil
}
func (f *fakeAdapter) Close() error { return nil }
func (f *fakeAdapter) Accounts(ctx context.Context) ([]string, error) {
	return []string{"8012345611"}, nil
}
func (f *fakeAdapter) SubscribeRealtime(ctx context.Context, slotID int, codes []string, mode broker.SubscribeMode) error {
	return nil
}
func (f *fakeAdapter) UnsubscribeRealtime(ctx context.Context, slotID int, code string) error {
	return nil
}
func (f *fakeAdapter) GetStockInfo(ctx context.Context, code string) (domain.StockInfo, error) {
	return domain.StockInfo{Code: code}, nil
}
func (f *fakeAdapter) GetDailyCandles(ctx context.Context, code string, count int) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Candle(nil), f.candles[code]...), nil
}
func (f *fakeAdapter) GetBalance(ctx context.Context, account string) (domain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}
func (f *fakeAdapter) GetDepositDetail(ctx context.Context, account string) (domain.DepositDetail, error) {
	return domain.DepositDetail{Deposit: 10_000_000, Available: 8_000_000}, nil
}

func (f *fakeAdapter) SendOrder(ctx context.Context, req broker.OrderRequest) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	return f.orderStatus, nil
}

func (f *fakeAdapter) OpenOrders(ctx context.Context, account string) ([]domain.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OpenOrder(nil), f.openOrders...), nil
}
func (f *fakeAdapter) TodayExecutions(ctx context.Context, account string) ([]domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Execution(nil), f.executions...), nil
}

func (f *fakeAdapter) CancelAllForInstrument(ctx context.Context, account, code string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelAll = append(f.cancelAll, code)
	return 1, nil
}
func (f *fakeAdapter) CancelBuysForInstrument(ctx context.Context, account, code string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelBuys = append(f.cancelBuys, code)
	return 1, nil
}
func (f *fakeAdapter) CancelSellsForInstrument(ctx context.Context, account, code string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelSells = append(f.cancelSells, code)
	return 1, nil
}
func (f *fakeAdapter) CancelBuysExceptHoldings(ctx context.Context, account string, held []string) (int, error) {
	return 0, nil
}

func (f *fakeAdapter) StockName(ctx context.Context, code string) string { return "테스트종목" }
func (f *fakeAdapter) Events() <-chan broker.Event                       { return f.events }

// sentOrders 发送过的委托快照
func (f *fakeAdapter) sentOrders() []broker.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broker.OrderRequest(nil), f.orders...)
}

// sellOrders 只取卖出委托
func (f *fakeAdapter) sellOrders() []broker.OrderRequest {
	var out []broker.OrderRequest
	for _, o := range f.sentOrders() {
		if o.Side == domain.SideSell {
			out = append(out, o)
		}
	}
	return out
}

// buyOrders 只取买入委托
func (f *fakeAdapter) buyOrders() []broker.OrderRequest {
	var out []broker.OrderRequest
	for _, o := range f.sentOrders() {
		if o.Side == domain.SideBuy {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeAdapter) resetOrders() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = nil
	f.cancelAll = nil
	f.cancelBuys = nil
	f.cancelSells = nil
}
