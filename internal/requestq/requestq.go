package requestq

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/pkg/ratelimit"
	"github.com/stockbot/gostock/pkg/sigchan"
)

// ErrStopped 队列已停止
var ErrStopped = errors.New("requestq: queue stopped")

// Op 一次券商调用
type Op func(ctx context.Context) (interface{}, error)

// Callback 完成回调；result 与 err 二选一
// 回调不得阻塞；回调内可以继续入队，下一个 tick 会处理
type Callback func(result interface{}, err error)

type request struct {
	op Op
	cb Callback
}

// Queue 串行请求队列
//
// 所有券商调用经由单个消费者 goroutine 依次派发（查询队列与订单队列
// 各一个实例），调用之间保持 minGap 的最小间隔，并受共享限流器约束。
// 这是对"API 调用必须在单一上下文上执行"的 Go 改写。
type Queue struct {
	name    string
	minGap  time.Duration
	limiter ratelimit.RateLimiter

	mu      sync.Mutex
	pending []request
	stopped bool

	wake *sigchan.Chan
	done chan struct{}
	log  *logrus.Entry
}

// New 创建队列；limiter 可为 nil（不限流）
func New(name string, minGap time.Duration, limiter ratelimit.RateLimiter) *Queue {
	return &Queue{
		name:    name,
		minGap:  minGap,
		limiter: limiter,
		wake:    sigchan.New(1),
		done:    make(chan struct{}),
		log:     logrus.WithField("component", "requestq."+name),
	}
}

// Start 启动消费者 goroutine
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
}

// Enqueue 异步入队；cb 可为 nil
func (q *Queue) Enqueue(op Op, cb Callback) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrStopped
	}
	q.pending = append(q.pending, request{op: op, cb: cb})
	q.mu.Unlock()

	q.wake.Emit()
	return nil
}

// Do 同步执行：入队并等待完成（可等待的请求对象）
func (q *Queue) Do(ctx context.Context, op Op) (interface{}, error) {
	type outcome struct {
		result interface{}
		err    error
	}
	ch := make(chan outcome, 1)
	err := q.Enqueue(op, func(result interface{}, err error) {
		ch <- outcome{result: result, err: err}
	})
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-ch:
		return out.result, out.err
	}
}

// Len 当前排队数量
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// FailAll 断线快速失败：清空队列，所有回调收到 err
func (q *Queue) FailAll(err error) {
	q.mu.Lock()
	drained := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(drained) > 0 {
		q.log.Warnf("队列快速失败，丢弃 %d 个待处理请求: %v", len(drained), err)
	}
	for _, r := range drained {
		q.invoke(r.cb, nil, err)
	}
}

// Stop 停止队列并等待消费者退出
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	q.wake.Emit()
	<-q.done
	q.FailAll(ErrStopped)
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for {
		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()
			return
		}
		var req request
		have := false
		if len(q.pending) > 0 {
			req = q.pending[0]
			q.pending = q.pending[1:]
			have = true
		}
		q.mu.Unlock()

		if !have {
			select {
			case <-ctx.Done():
				return
			case <-q.wake.C():
				continue
			}
		}

		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				q.invoke(req.cb, nil, err)
				return
			}
		}

		result, err := req.op(ctx)
		q.invoke(req.cb, result, err)

		// 两次调用之间的最小间隔
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.minGap):
		}
	}
}

// invoke 执行回调；回调内的 panic 只记日志，不影响队列继续运转
func (q *Queue) invoke(cb Callback, result interface{}, err error) {
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorf("回调 panic: %v", r)
		}
	}()
	cb(result, err)
}
