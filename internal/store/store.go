package store

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/pkg/persistence"
)

// ErrInvariant 持仓状态机不变量被违反
var ErrInvariant = errors.New("store: position invariant violation")

// KiwoomSettings 券商连接信息（持久化文档 "kiwoom" 段）
type KiwoomSettings struct {
	AccountNumber string `json:"account_number"`
	ServerType    string `json:"server_type"`
}

// BuySettings 买入参数（"buy" 段）
type BuySettings struct {
	EnvelopePeriod     int   `json:"envelope_period"`
	EnvelopePercent    int64 `json:"envelope_percent"`
	EnvelopeBuyPercent int64 `json:"envelope_buy_percent"`
	MaxBuyCount        int   `json:"max_buy_count"`
	AdditionalDropPct  int64 `json:"additional_buy_drop_percent"`
	BuyAmountPerStock  int64 `json:"buy_amount_per_stock"`
	MaxHoldingStocks   int   `json:"max_holding_stocks"`
}

// SellSettings 卖出参数（"sell" 段）
type SellSettings struct {
	ProfitTargets   []float64 `json:"profit_targets"`
	ProfitRatios    []int64   `json:"profit_sell_ratios"`
	MASellRatio     int64     `json:"ma20_sell_ratio"`
	StoplossUseMarket bool    `json:"stoploss_use_market_order"` // 预留，当前止损固定限价
}

// ErrorHandling 错误处理参数（"error_handling" 段）
type ErrorHandling struct {
	OrderRetryCount      int `json:"order_retry_count"`
	OrderRetryIntervalMS int `json:"order_retry_interval_ms"`
	ReconnectIntervalSec int `json:"reconnect_interval_sec"`
}

// Document 持久化状态文档，对应 trading_state.json 的全部顶层键
type Document struct {
	Kiwoom           KiwoomSettings                                  `json:"kiwoom"`
	Buy              BuySettings                                     `json:"buy"`
	Sell             SellSettings                                    `json:"sell"`
	Watchlist        []string                                        `json:"watchlist"`
	MaxWatchlist     int                                             `json:"max_watchlist_count"`
	Positions        map[string]*domain.Position                     `json:"positions"`
	PendingOrders    map[string][]domain.PendingOrder                `json:"pending_orders"`
	Session          domain.Session                                  `json:"session"`
	ErrorHandling    ErrorHandling                                   `json:"error_handling"`
	ExecutionHistory map[string]map[string][]domain.ExecutionRecord  `json:"execution_history"` // date → code → records
}

// DefaultDocument 返回带默认参数的文档
func DefaultDocument() *Document {
	return &Document{
		Buy: BuySettings{
			EnvelopePeriod:     20,
			EnvelopePercent:    19,
			EnvelopeBuyPercent: 20,
			MaxBuyCount:        3,
			AdditionalDropPct:  10,
			BuyAmountPerStock:  1_000_000,
			MaxHoldingStocks:   3,
		},
		Sell: SellSettings{
			ProfitTargets: []float64{2.95, 4.95, 6.95},
			ProfitRatios:  []int64{30, 30, 30},
			MASellRatio:   10,
		},
		MaxWatchlist: 200,
		ErrorHandling: ErrorHandling{
			OrderRetryCount:      3,
			OrderRetryIntervalMS: 1000,
			ReconnectIntervalSec: 10,
		},
		Positions:        make(map[string]*domain.Position),
		PendingOrders:    make(map[string][]domain.PendingOrder),
		ExecutionHistory: make(map[string]map[string][]domain.ExecutionRecord),
	}
}

// Store 状态存储：持仓、挂单台账、会话与参数的唯一权威来源
//
// 单把互斥锁保护全部状态，每次变更后整体原子落盘。
// 锁内绝不发起券商调用。
type Store struct {
	mu     sync.Mutex
	doc    *Document
	file   persistence.Store
	frozen map[string]bool // 不变量违约后冻结的股票（不持久化）
	log    *logrus.Entry
}

// New 加载（或初始化）状态文档
// 文件中省略的键保留默认值（反序列化到默认文档之上即为深合并）
func New(file persistence.Store) (*Store, error) {
	doc := DefaultDocument()
	if err := file.Load(doc); err != nil && !errors.Is(err, persistence.ErrNotExists) {
		return nil, errors.Wrap(err, "load state document")
	}
	if doc.Positions == nil {
		doc.Positions = make(map[string]*domain.Position)
	}
	if doc.PendingOrders == nil {
		doc.PendingOrders = make(map[string][]domain.PendingOrder)
	}
	if doc.ExecutionHistory == nil {
		doc.ExecutionHistory = make(map[string]map[string][]domain.ExecutionRecord)
	}
	for code, p := range doc.Positions {
		if p != nil {
			p.Code = code
		}
	}

	s := &Store{
		doc:    doc,
		file:   file,
		frozen: make(map[string]bool),
		log:    logrus.WithField("component", "store"),
	}
	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// flushLocked 原子落盘，调用方持有锁（或在构造期独占）
func (s *Store) flushLocked() error {
	if err := s.file.Save(s.doc); err != nil {
		s.log.Errorf("状态落盘失败: %v", err)
		return err
	}
	return nil
}

// Flush 主动落盘（关闭时调用）
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// BuySettings 买入参数快照
func (s *Store) BuySettings() BuySettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Buy
}

// SellSettings 卖出参数快照
func (s *Store) SellSettings() SellSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.doc.Sell
	out.ProfitTargets = append([]float64(nil), s.doc.Sell.ProfitTargets...)
	out.ProfitRatios = append([]int64(nil), s.doc.Sell.ProfitRatios...)
	return out
}

// ErrorHandling 错误处理参数快照
func (s *Store) ErrorHandling() ErrorHandling {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.ErrorHandling
}

// Kiwoom 券商连接信息快照
func (s *Store) Kiwoom() KiwoomSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Kiwoom
}

// SetKiwoom 更新券商连接信息
func (s *Store) SetKiwoom(k KiwoomSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Kiwoom = k
	return s.flushLocked()
}

// Watchlist 监控列表快照
func (s *Store) Watchlist() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.doc.Watchlist...)
}

// MaxWatchlist 监控列表容量上限
func (s *Store) MaxWatchlist() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.MaxWatchlist
}

// SetWatchlist 覆盖监控列表（代码规范化、去重、容量截断）
func (s *Store) SetWatchlist(codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = domain.CanonicalCode(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
		if s.doc.MaxWatchlist > 0 && len(out) >= s.doc.MaxWatchlist {
			break
		}
	}
	s.doc.Watchlist = out
	return s.flushLocked()
}
