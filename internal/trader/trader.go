package trader

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/internal/events"
	"github.com/stockbot/gostock/internal/requestq"
	"github.com/stockbot/gostock/internal/signal"
	"github.com/stockbot/gostock/internal/store"
	"github.com/stockbot/gostock/pkg/ratelimit"
	"github.com/stockbot/gostock/pkg/syncgroup"
)

// 调度参数
const (
	queryMinGap     = 250 * time.Millisecond // 查询队列最小间隔
	orderMinGap     = 300 * time.Millisecond // 订单队列最小间隔
	drainTick       = 100 * time.Millisecond // 意图派发节拍
	orderSubmitGap  = 350 * time.Millisecond // 两次下单之间的最小间隔
	debounceDelay   = 200 * time.Millisecond // 实时价防抖
	tickQueueCap    = 5000                   // 价格事件队列容量
	intentQueueCap  = 256                    // 意图队列容量
	candleTTL       = 60 * time.Second       // 日线缓存 TTL
	candleCount     = 30                     // 每次拉取的日线根数
	pollInterval    = 30 * time.Second       // 未订阅股票轮询间隔
	pollTopN        = 5                      // 每轮轮询的股票数
	watcherInterval = 60 * time.Second       // 开盘恢复巡检间隔
	rateLimitCalls  = 5                      // 限流：每秒调用数
	executionKeep   = 7                      // 成交记录保留天数
)

// Trader 交易协调器：把各组件装配成决策回路并持有生命周期
type Trader struct {
	adapter broker.Adapter
	store   *store.Store
	engine  *signal.Engine

	queryQ *requestq.Queue
	orderQ *requestq.Queue

	deb     *events.PriceDebouncer
	ticks   *events.TickQueue
	candles *events.CandleCache
	sched   *events.BatchScheduler
	alloc   *events.Allocator
	intents *intentQueue

	account    string
	serverKind broker.ServerKind

	mu          sync.Mutex
	inflight    map[string]bool // (code, kind) 在途意图去重
	manualSell  map[string]bool // 等待余额回报确认的手动卖出
	pollingSet  []string        // 超出订阅容量、交给轮询的股票
	lastOrderAt time.Time       // 上一次下单时间

	connected bool
	stopping  chan struct{}
	stopOnce  sync.Once
	group     *syncgroup.SyncGroup
	cancel    context.CancelFunc

	now func() time.Time // 可注入时钟，测试用
	log *logrus.Entry
}

// New 装配协调器
func New(adapter broker.Adapter, st *store.Store) *Trader {
	limiter := ratelimit.NewSlidingWindow(rateLimitCalls, time.Second)

	t := &Trader{
		adapter:    adapter,
		store:      st,
		engine:     signal.New(),
		queryQ:     requestq.New("query", queryMinGap, limiter),
		orderQ:     requestq.New("order", orderMinGap, limiter),
		deb:        events.NewPriceDebouncer(debounceDelay),
		ticks:      events.NewTickQueue(tickQueueCap),
		candles:    events.NewCandleCache(candleTTL),
		alloc:      events.NewAllocator(),
		intents:    newIntentQueue(intentQueueCap),
		inflight:   make(map[string]bool),
		manualSell: make(map[string]bool),
		stopping:   make(chan struct{}),
		group:      syncgroup.New(),
		now:        time.Now,
		log:        logrus.WithField("component", "trader"),
	}
	t.sched = events.NewBatchScheduler(t.scheduleCandleFetch)
	return t
}

// Start 连接券商并启动全部回路
func (t *Trader) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	kind, err := t.adapter.Connect(runCtx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "connect broker")
	}
	t.serverKind = kind
	t.log.Infof("券商连接成功，服务器类型: %s", kind)

	accounts, err := t.adapter.Accounts(runCtx)
	if err != nil {
		cancel()
		return errors.Wrap(err, "query accounts")
	}
	if len(accounts) == 0 {
		cancel()
		return broker.ErrNoAccount
	}
	t.account = accounts[0]
	if saved := t.store.Kiwoom().AccountNumber; saved != "" {
		for _, a := range accounts {
			if a == saved {
				t.account = a
				break
			}
		}
	}
	_ = t.store.SetKiwoom(store.KiwoomSettings{AccountNumber: t.account, ServerType: string(kind)})
	t.log.Infof("使用账户 %s", t.account)

	t.setConnected(true)
	t.queryQ.Start(runCtx)
	t.orderQ.Start(runCtx)

	// 启动即做一次全量状态同步
	if err := t.fullStateSync(runCtx); err != nil {
		t.log.Errorf("启动状态同步失败: %v", err)
	}
	t.refreshSubscriptions(runCtx)
	t.sched.SetCodes(t.store.Watchlist())

	t.group.Go(func() { t.eventLoop(runCtx) })
	t.group.Go(func() { t.signalWorker(runCtx) })
	t.group.Go(func() { t.drainLoop(runCtx) })
	t.group.Go(func() { t.sched.Run(runCtx) })
	t.group.Go(func() { t.marketOpenWatcher(runCtx) })
	t.group.Go(func() { t.pollingLoop(runCtx) })
	return nil
}

// Stop 优雅停止：停定时器、注销订阅、落盘
func (t *Trader) Stop(ctx context.Context) {
	t.stopOnce.Do(func() {
		close(t.stopping)
	})

	// 注销两个订阅槽
	for slot := 0; slot < events.SlotCount; slot++ {
		if err := t.adapter.UnsubscribeRealtime(ctx, slot, "ALL"); err != nil {
			t.log.Warnf("注销订阅槽 %d 失败: %v", slot, err)
		}
	}

	if t.cancel != nil {
		t.cancel()
	}
	t.queryQ.Stop()
	t.orderQ.Stop()
	t.group.Wait()
	t.candles.Stop()

	if err := t.store.Flush(); err != nil {
		t.log.Errorf("关闭落盘失败: %v", err)
	}
	if err := t.adapter.Close(); err != nil {
		t.log.Warnf("断开券商连接失败: %v", err)
	}
	t.log.Info("交易协调器已停止")
}

// Account 当前账户
func (t *Trader) Account() string { return t.account }

// ServerKind 服务器类型
func (t *Trader) ServerKind() broker.ServerKind { return t.serverKind }

func (t *Trader) setConnected(on bool) {
	t.mu.Lock()
	t.connected = on
	t.mu.Unlock()
}

// isConnected 决策回路是否可用
func (t *Trader) isConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Trader) isStopping() bool {
	select {
	case <-t.stopping:
		return true
	default:
		return false
	}
}

// eventLoop 消费适配器事件的单一 select 循环
func (t *Trader) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopping:
			return
		case ev, ok := <-t.adapter.Events():
			if !ok {
				return
			}
			t.handleEvent(ctx, ev)
		}
	}
}

func (t *Trader) handleEvent(ctx context.Context, ev broker.Event) {
	switch e := ev.(type) {
	case broker.PriceEvent:
		t.onPrice(e)
	case broker.OrderEvent:
		t.onOrderEvent(ctx, e)
	case broker.BalanceEvent:
		t.onBalanceEvent(ctx, e)
	case broker.MessageEvent:
		t.log.Debugf("服务器消息 [%s/%s] %s", e.RqName, e.TrCode, e.Msg)
	case broker.DisconnectEvent:
		t.onDisconnect(ctx, e)
	}
}

// onPrice 实时价：防抖后入队
func (t *Trader) onPrice(e broker.PriceEvent) {
	if !t.deb.Offer(e.Code, e.Price, e.Volume) {
		return
	}
	t.ticks.Push(events.Tick{Code: e.Code, Price: e.Price, Volume: e.Volume, At: t.now()})
}

// onDisconnect 断线：决策回路停摆，队列快速失败，按配置间隔重连
func (t *Trader) onDisconnect(ctx context.Context, e broker.DisconnectEvent) {
	t.log.Errorf("券商连接断开: %v", e.Err)
	t.setConnected(false)
	t.queryQ.FailAll(broker.ErrNotConnected)
	t.orderQ.FailAll(broker.ErrNotConnected)

	interval := time.Duration(t.store.ErrorHandling().ReconnectIntervalSec) * time.Second
	t.group.Go(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopping:
				return
			case <-time.After(interval):
			}
			kind, err := t.adapter.Connect(ctx)
			if err != nil {
				t.log.Warnf("重连失败，%s 后重试: %v", interval, err)
				continue
			}
			t.serverKind = kind
			t.setConnected(true)
			t.alloc.Reset()
			t.refreshSubscriptions(ctx)
			t.log.Info("券商重连成功")
			return
		}
	})
}

// refreshSubscriptions 重新分配订阅槽并下发差量
func (t *Trader) refreshSubscriptions(ctx context.Context) {
	diffs, polling := t.alloc.Allocate(t.store.Watchlist(), t.store.HeldCodes())

	t.mu.Lock()
	t.pollingSet = polling
	t.mu.Unlock()

	for _, diff := range diffs {
		diff := diff
		if len(diff.Register) > 0 {
			_ = t.queryQ.Enqueue(func(ctx context.Context) (interface{}, error) {
				return nil, t.adapter.SubscribeRealtime(ctx, diff.SlotID, diff.Register, broker.ModeAppend)
			}, func(_ interface{}, err error) {
				if err != nil {
					t.log.Warnf("订阅槽 %d 注册 %d 只失败: %v", diff.SlotID, len(diff.Register), err)
				}
			})
		}
		for _, code := range diff.Unregister {
			code := code
			_ = t.queryQ.Enqueue(func(ctx context.Context) (interface{}, error) {
				return nil, t.adapter.UnsubscribeRealtime(ctx, diff.SlotID, code)
			}, nil)
		}
	}
}

// scheduleCandleFetch 给批量调度器用的日线刷新入口
func (t *Trader) scheduleCandleFetch(code string) {
	if !t.isConnected() || t.isStopping() {
		return
	}
	_ = t.queryQ.Enqueue(func(ctx context.Context) (interface{}, error) {
		return t.adapter.GetDailyCandles(ctx, code, candleCount)
	}, func(result interface{}, err error) {
		if err != nil {
			t.log.Debugf("日线刷新失败 %s: %v", code, err)
			return
		}
		if candles, ok := result.([]domain.Candle); ok {
			t.candles.Update(code, candles)
		}
	})
}

// candlesFor 取日线：缓存新鲜则用缓存，否则触发按需拉取
// 按需拉取是异步的，当前 tick 放弃处理，下一次事件再判定
func (t *Trader) candlesFor(code string) ([]domain.Candle, bool) {
	if cached, ok := t.candles.Get(code); ok {
		return cached, true
	}
	t.scheduleCandleFetch(code)
	return nil, false
}
