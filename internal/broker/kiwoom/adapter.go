package kiwoom

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/pkg/cache"
	"github.com/stockbot/gostock/pkg/config"
)

const (
	eventBufSize = 256
	nameCacheTTL = 24 * time.Hour
)

// Adapter 키움证券接入层：REST 查询/下单 + WebSocket 实时回报
//
// 账户绑定在令牌上，REST 调用不再携带账户参数；
// 接口签名中的 account 仅用于日志与多账户配置校验。
type Adapter struct {
	cfg  config.BrokerConfig
	rest *restClient
	ws   *wsClient

	events chan broker.Event
	names  *cache.TTLCache[string, string] // ticker → 종목명 记忆化

	log *logrus.Entry
}

var _ broker.Adapter = (*Adapter)(nil)

// New 创建适配器；appKey/appSecret 来自凭证存储
func New(cfg config.BrokerConfig, appKey, appSecret string) *Adapter {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	events := make(chan broker.Event, eventBufSize)
	return &Adapter{
		cfg:    cfg,
		rest:   newRESTClient(cfg.BaseURL, timeout, appKey, appSecret),
		ws:     newWSClient(cfg.WSURL, events),
		events: events,
		names:  cache.NewTTLCache[string, string](nameCacheTTL),
		log:    logrus.WithField("component", "kiwoom"),
	}
}

// Connect 签发令牌并登录实时通道
func (a *Adapter) Connect(ctx context.Context) (broker.ServerKind, error) {
	token, err := a.rest.ensureToken(ctx)
	if err != nil {
		return "", err
	}
	if err := a.ws.connect(ctx, token); err != nil {
		return "", err
	}

	// 模拟盘走 mockapi 域名
	kind := broker.ServerReal
	if strings.Contains(a.cfg.BaseURL, "mockapi") {
		kind = broker.ServerPaper
	}
	return kind, nil
}

// Close 关闭实时通道并注销令牌
func (a *Adapter) Close() error {
	a.ws.close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.rest.revokeToken(ctx)
	a.names.Stop()
	return nil
}

// Accounts 可用账户列表
// REST 令牌与账户一一对应，账户号取自配置
func (a *Adapter) Accounts(ctx context.Context) ([]string, error) {
	if a.cfg.AccountNumber == "" {
		return nil, broker.ErrNoAccount
	}
	return []string{a.cfg.AccountNumber}, nil
}

// SubscribeRealtime 在指定槽注册实时价
func (a *Adapter) SubscribeRealtime(ctx context.Context, slotID int, codes []string, mode broker.SubscribeMode) error {
	return a.ws.register(slotID, codes, mode)
}

// UnsubscribeRealtime 注销实时价，code 为 "ALL" 时清空整个槽
func (a *Adapter) UnsubscribeRealtime(ctx context.Context, slotID int, code string) error {
	return a.ws.unregister(slotID, code)
}

// GetStockInfo 주식기본정보
func (a *Adapter) GetStockInfo(ctx context.Context, code string) (domain.StockInfo, error) {
	info, err := a.rest.stockInfo(ctx, code)
	if err != nil {
		return domain.StockInfo{}, err
	}
	if info.Name != "" {
		a.names.Set(code, info.Name)
	}
	return info, nil
}

// GetDailyCandles 日线，最新在前
func (a *Adapter) GetDailyCandles(ctx context.Context, code string, count int) ([]domain.Candle, error) {
	return a.rest.dailyCandles(ctx, code, count)
}

// GetBalance 계좌평가잔고
func (a *Adapter) GetBalance(ctx context.Context, account string) (domain.Balance, error) {
	bal, err := a.rest.balance(ctx)
	if err != nil {
		return domain.Balance{}, err
	}
	for _, h := range bal.Holdings {
		if h.Name != "" {
			a.names.Set(h.Code, h.Name)
		}
	}

	deposit, err := a.rest.depositDetail(ctx)
	if err == nil {
		bal.Deposit = deposit.Deposit
	}
	return bal, nil
}

// GetDepositDetail 예수금상세
func (a *Adapter) GetDepositDetail(ctx context.Context, account string) (domain.DepositDetail, error) {
	return a.rest.depositDetail(ctx)
}

// SendOrder 委托下单，返回券商状态码（0 为成功）
func (a *Adapter) SendOrder(ctx context.Context, req broker.OrderRequest) (int, error) {
	switch req.Side {
	case domain.SideBuy, domain.SideSell:
		return a.rest.placeOrder(ctx, req.Side, req.Code, req.Quantity, req.Price, req.PriceKind)
	case domain.SideCancelBuy, domain.SideCancelSell:
		return a.rest.cancelOrder(ctx, req.OriginalOrderNo, req.Code, 0)
	}
	return -1, broker.ErrAdapterCall
}

// OpenOrders 미체결 订单
func (a *Adapter) OpenOrders(ctx context.Context, account string) ([]domain.OpenOrder, error) {
	return a.rest.openOrders(ctx)
}

// TodayExecutions 当日成交明细
func (a *Adapter) TodayExecutions(ctx context.Context, account string) ([]domain.Execution, error) {
	return a.rest.todayExecutions(ctx)
}

// CancelAllForInstrument 撤销某股票全部挂单，返回撤单笔数
func (a *Adapter) CancelAllForInstrument(ctx context.Context, account, code string) (int, error) {
	return a.cancelMatching(ctx, code, "")
}

// CancelBuysForInstrument 撤销某股票全部买单
func (a *Adapter) CancelBuysForInstrument(ctx context.Context, account, code string) (int, error) {
	return a.cancelMatching(ctx, code, domain.SideBuy)
}

// CancelSellsForInstrument 撤销某股票全部卖单
func (a *Adapter) CancelSellsForInstrument(ctx context.Context, account, code string) (int, error) {
	return a.cancelMatching(ctx, code, domain.SideSell)
}

// cancelMatching 查询未成交订单后逐笔撤销；side 为空表示全部方向
func (a *Adapter) cancelMatching(ctx context.Context, code string, side domain.Side) (int, error) {
	open, err := a.rest.openOrders(ctx)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, o := range open {
		if o.Code != code {
			continue
		}
		if side != "" && o.Side != side {
			continue
		}
		status, err := a.rest.cancelOrder(ctx, o.OrderNo, o.Code, 0)
		if err != nil || status != 0 {
			a.log.Warnf("撤单失败 %s 주문번호 %s: status=%d err=%v", code, o.OrderNo, status, err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// CancelBuysExceptHoldings 撤销持仓以外股票的全部买单
func (a *Adapter) CancelBuysExceptHoldings(ctx context.Context, account string, held []string) (int, error) {
	open, err := a.rest.openOrders(ctx)
	if err != nil {
		return 0, err
	}
	heldSet := make(map[string]bool, len(held))
	for _, c := range held {
		heldSet[c] = true
	}

	cancelled := 0
	for _, o := range open {
		if o.Side != domain.SideBuy || heldSet[o.Code] {
			continue
		}
		status, err := a.rest.cancelOrder(ctx, o.OrderNo, o.Code, 0)
		if err != nil || status != 0 {
			a.log.Warnf("撤非持仓买单失败 %s: status=%d err=%v", o.Code, status, err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// StockName 股票名称，带 24h 记忆化缓存；查不到返回代码本身
func (a *Adapter) StockName(ctx context.Context, code string) string {
	if name, ok := a.names.Get(code); ok {
		return name
	}
	info, err := a.rest.stockInfo(ctx, code)
	if err != nil || info.Name == "" {
		return code
	}
	a.names.Set(code, info.Name)
	return info.Name
}

// Events 适配器事件流
func (a *Adapter) Events() <-chan broker.Event {
	return a.events
}
