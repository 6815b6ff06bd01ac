package events

import (
	"sync"
	"time"

	"github.com/stockbot/gostock/pkg/sigchan"
)

// Tick 防抖后的价格事件
type Tick struct {
	Code   string
	Price  int64
	Volume int64
	At     time.Time
}

// TickQueue 有界队列：满时丢最旧、收最新
type TickQueue struct {
	mu    sync.Mutex
	buf   []Tick
	cap   int
	drops int64
	wake  *sigchan.Chan
}

// NewTickQueue 创建容量为 capacity 的队列
func NewTickQueue(capacity int) *TickQueue {
	return &TickQueue{
		buf:  make([]Tick, 0, capacity),
		cap:  capacity,
		wake: sigchan.New(1),
	}
}

// Push 入队；满时淘汰最旧的一条
func (q *TickQueue) Push(t Tick) {
	q.mu.Lock()
	if len(q.buf) >= q.cap {
		q.buf = q.buf[1:]
		q.drops++
	}
	q.buf = append(q.buf, t)
	q.mu.Unlock()

	q.wake.Emit()
}

// Pop 出队，最多等待 timeout；队列空且超时返回 false
func (q *TickQueue) Pop(timeout time.Duration) (Tick, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.buf) > 0 {
			t := q.buf[0]
			q.buf = q.buf[1:]
			q.mu.Unlock()
			return t, true
		}
		q.mu.Unlock()

		remain := time.Until(deadline)
		if remain <= 0 {
			return Tick{}, false
		}
		timer := time.NewTimer(remain)
		select {
		case <-q.wake.C():
			timer.Stop()
		case <-timer.C:
			return Tick{}, false
		}
	}
}

// Len 当前队列长度
func (q *TickQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Dropped 因溢出被淘汰的累计条数
func (q *TickQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}
