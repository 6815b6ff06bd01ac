package trader

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stockbot/gostock/internal/domain"
)

// intentQueue 有界意图队列
// 出队按优先级（止损 > 补阶梯 > 买入），同优先级保持先来先服务；
// 满时丢弃最旧的低优先级意图
type intentQueue struct {
	mu  sync.Mutex
	buf []domain.Intent
	cap int
}

func newIntentQueue(capacity int) *intentQueue {
	return &intentQueue{cap: capacity}
}

func (q *intentQueue) push(in domain.Intent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf) >= q.cap {
		// 丢最旧的最低优先级意图
		drop := 0
		for i, existing := range q.buf {
			if existing.Kind.Priority() > q.buf[drop].Kind.Priority() {
				drop = i
			}
		}
		q.buf = append(q.buf[:drop], q.buf[drop+1:]...)
	}
	q.buf = append(q.buf, in)
}

func (q *intentQueue) pop() (domain.Intent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf) == 0 {
		return domain.Intent{}, false
	}
	// 稳定排序保证同优先级 FIFO
	sort.SliceStable(q.buf, func(i, j int) bool {
		return q.buf[i].Kind.Priority() < q.buf[j].Kind.Priority()
	})
	in := q.buf[0]
	q.buf = q.buf[1:]
	return in, true
}

func (q *intentQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// markInflight 登记在途意图；已在途返回 false
func (t *Trader) markInflight(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inflight[key] {
		return false
	}
	t.inflight[key] = true
	return true
}

func (t *Trader) clearInflight(key string) {
	t.mu.Lock()
	delete(t.inflight, key)
	t.mu.Unlock()
}

// signalWorker 后台信号计算：拉取防抖后的价格事件，产出交易意图
func (t *Trader) signalWorker(ctx context.Context) {
	for {
		if t.isStopping() || ctx.Err() != nil {
			return
		}
		tick, ok := t.ticks.Pop(500 * time.Millisecond)
		if !ok {
			continue
		}
		t.evaluate(tick.Code, tick.Price)
	}
}

// evaluate 对一条价格事件走一遍决策：止损 > 补阶梯 > 买入
func (t *Trader) evaluate(code string, price int64) {
	if !t.isConnected() {
		return
	}
	if t.store.IsFrozen(code) {
		return
	}
	if !t.store.Session().AutoEnabled {
		return
	}

	pos := t.store.Position(code)

	// 止损优先，不依赖 K 线
	if t.engine.ShouldStoploss(pos, price) {
		in := domain.NewIntent(domain.IntentStoploss, code, price)
		if t.markInflight(in.DedupKey()) {
			t.intents.push(in)
		}
		return
	}

	if pos.IsOpen() {
		return
	}

	candles, ok := t.candlesFor(code)
	if !ok {
		return
	}
	intent, ok := t.engine.CheckBuy(t.store.BuySettings(), code, price, candles, pos, t.store.HolderCount())
	if !ok {
		return
	}
	if t.markInflight(intent.DedupKey()) {
		t.intents.push(*intent)
	}
}

// drainLoop 主派发回路：每 100ms 取至多一个意图，
// 下单间隔不低于 350ms
func (t *Trader) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(drainTick)
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

		t.mu.Lock()
		sinceLast := t.now().Sub(t.lastOrderAt)
		t.mu.Unlock()
		if sinceLast < orderSubmitGap {
			continue
		}

		in, ok := t.intents.pop()
		if !ok {
			continue
		}
		t.dispatch(ctx, in)
	}
}

// dispatch 派发单个意图
func (t *Trader) dispatch(ctx context.Context, in domain.Intent) {
	defer t.clearInflight(in.DedupKey())

	var err error
	switch in.Kind {
	case domain.IntentStoploss:
		err = t.executeStoploss(ctx, in)
	case domain.IntentBuy:
		err = t.executeBuy(ctx, in)
	case domain.IntentEnsureLadder:
		err = t.ensureSellLadder(ctx, in.Code)
	}
	if err != nil {
		t.log.Errorf("意图执行失败 %s %s: %v", in.Kind, in.Code, err)
	}
}
