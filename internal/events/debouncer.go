package events

import (
	"sync"
	"time"
)

// debEntry 单只股票的防抖状态
type debEntry struct {
	lastAdmit   time.Time
	latestPrice int64
	latestVol   int64
}

// PriceDebouncer 按股票防抖实时价格
//
// 每只股票第一条事件放行，之后 delay 内的事件被抑制；
// 被抑制的事件仍然刷新最新价，下一次放行携带最新值。
type PriceDebouncer struct {
	mu    sync.Mutex
	delay time.Duration
	byKey map[string]*debEntry
}

// NewPriceDebouncer 创建防抖器，delay 为同一股票两次放行的最小间隔
func NewPriceDebouncer(delay time.Duration) *PriceDebouncer {
	return &PriceDebouncer{
		delay: delay,
		byKey: make(map[string]*debEntry),
	}
}

// Offer 提交一条价格事件
// 返回是否应当处理；无论放行与否，最新价都被记录
func (d *PriceDebouncer) Offer(code string, price, volume int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	e := d.byKey[code]
	if e == nil {
		d.byKey[code] = &debEntry{lastAdmit: now, latestPrice: price, latestVol: volume}
		return true
	}
	e.latestPrice = price
	e.latestVol = volume
	if now.Sub(e.lastAdmit) < d.delay {
		return false
	}
	e.lastAdmit = now
	return true
}

// Latest 读取某只股票的最新价（含被抑制事件带来的刷新）
func (d *PriceDebouncer) Latest(code string) (price int64, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := d.byKey[code]
	if e == nil {
		return 0, false
	}
	return e.latestPrice, true
}

// Reset 清空全部防抖状态
func (d *PriceDebouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byKey = make(map[string]*debEntry)
}
