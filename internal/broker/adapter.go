package broker

import (
	"context"

	"github.com/stockbot/gostock/internal/domain"
)

// ServerKind 券商服务器类型
type ServerKind string

const (
	ServerReal  ServerKind = "real"  // 实盘
	ServerPaper ServerKind = "paper" // 模拟盘
)

// SubscribeMode 实时行情注册模式
type SubscribeMode string

const (
	ModeReplace SubscribeMode = "replace" // 覆盖槽内原有注册
	ModeAppend  SubscribeMode = "append"  // 追加注册
)

// OrderRequest 委托请求
type OrderRequest struct {
	Side            domain.Side      // 方向
	Account         string           // 账户
	Code            string           // 股票代码
	Quantity        int64            // 数量
	Price           int64            // 价格（市价单为 0）
	PriceKind       domain.PriceKind // 报价类型
	OriginalOrderNo string           // 原订单号（撤单时必填）
}

// Adapter 券商接入层抽象
//
// 所有调用都必须经由请求队列串行派发；实现不要求可重入。
// 事件（实时价、成交、余额、断线）通过 Events() 的 channel 投递。
type Adapter interface {
	// Connect 建立连接并登录，返回服务器类型
	Connect(ctx context.Context) (ServerKind, error)
	// Close 断开连接
	Close() error
	// Accounts 返回可用账户列表
	Accounts(ctx context.Context) ([]string, error)

	// SubscribeRealtime 在指定槽注册实时行情
	SubscribeRealtime(ctx context.Context, slotID int, codes []string, mode SubscribeMode) error
	// UnsubscribeRealtime 注销实时行情，code 为 "ALL" 时清空整个槽
	UnsubscribeRealtime(ctx context.Context, slotID int, code string) error

	// GetStockInfo 查询股票基本信息
	GetStockInfo(ctx context.Context, code string) (domain.StockInfo, error)
	// GetDailyCandles 查询日线，最新在前
	GetDailyCandles(ctx context.Context, code string, count int) ([]domain.Candle, error)
	// GetBalance 查询账户余额与持仓
	GetBalance(ctx context.Context, account string) (domain.Balance, error)
	// GetDepositDetail 查询预托金明细
	GetDepositDetail(ctx context.Context, account string) (domain.DepositDetail, error)

	// SendOrder 发送委托，返回券商状态码（0 为成功）
	SendOrder(ctx context.Context, req OrderRequest) (int, error)
	// OpenOrders 查询未成交订单
	OpenOrders(ctx context.Context, account string) ([]domain.OpenOrder, error)
	// TodayExecutions 查询当日成交明细
	TodayExecutions(ctx context.Context, account string) ([]domain.Execution, error)

	// CancelAllForInstrument 撤销某股票全部挂单
	CancelAllForInstrument(ctx context.Context, account, code string) (int, error)
	// CancelBuysForInstrument 撤销某股票全部买单
	CancelBuysForInstrument(ctx context.Context, account, code string) (int, error)
	// CancelSellsForInstrument 撤销某股票全部卖单
	CancelSellsForInstrument(ctx context.Context, account, code string) (int, error)
	// CancelBuysExceptHoldings 撤销持仓以外股票的买单
	CancelBuysExceptHoldings(ctx context.Context, account string, held []string) (int, error)

	// StockName 股票名称（带本地记忆化缓存）
	StockName(ctx context.Context, code string) string

	// Events 事件流
	Events() <-chan Event
}
