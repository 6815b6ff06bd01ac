package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/pkg/cache"
)

// CandleCache 日线缓存，TTL 60 秒，读取为拷贝
type CandleCache struct {
	c *cache.TTLCache[string, []domain.Candle]
}

// NewCandleCache 创建日线缓存
func NewCandleCache(ttl time.Duration) *CandleCache {
	return &CandleCache{c: cache.NewTTLCache[string, []domain.Candle](ttl)}
}

// Update 写入某只股票的日线
func (cc *CandleCache) Update(code string, candles []domain.Candle) {
	cc.c.Set(code, append([]domain.Candle(nil), candles...))
}

// Get 读取日线（拷贝）；过期或缺失返回 false
func (cc *CandleCache) Get(code string) ([]domain.Candle, bool) {
	v, ok := cc.c.Get(code)
	if !ok {
		return nil, false
	}
	return append([]domain.Candle(nil), v...), true
}

// Stop 停止后台清理
func (cc *CandleCache) Stop() { cc.c.Stop() }

// FetchFunc 发起一次日线刷新（入查询队列，回调里更新缓存）
type FetchFunc func(code string)

// BatchScheduler 日线轮询调度器
//
// 每 3 秒从游标处取一批（10 只），批内按 350ms 间隔逐只发起刷新；
// 200 只股票一轮约 60 秒，与缓存 TTL 对齐。
type BatchScheduler struct {
	batchSize  int
	batchEvery time.Duration
	stagger    time.Duration

	setMu   sync.Mutex
	codesCh chan []string
	fetch   FetchFunc
	log     *logrus.Entry
}

// NewBatchScheduler 创建调度器
func NewBatchScheduler(fetch FetchFunc) *BatchScheduler {
	return &BatchScheduler{
		batchSize:  10,
		batchEvery: 3 * time.Second,
		stagger:    350 * time.Millisecond,
		codesCh:    make(chan []string, 1),
		fetch:      fetch,
		log:        logrus.WithField("component", "scheduler"),
	}
}

// SetCodes 更新轮询列表（监控列表变化时调用）
func (b *BatchScheduler) SetCodes(codes []string) {
	snapshot := append([]string(nil), codes...)

	// 只保留最新一份；清空与重发必须原子，Run 侧只收不发
	b.setMu.Lock()
	defer b.setMu.Unlock()
	select {
	case <-b.codesCh:
	default:
	}
	b.codesCh <- snapshot
}

// Run 调度主循环，阻塞直到 ctx 取消
func (b *BatchScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(b.batchEvery)
	defer ticker.Stop()

	var codes []string
	cursor := 0

	for {
		select {
		case <-ctx.Done():
			return
		case fresh := <-b.codesCh:
			codes = fresh
			if cursor >= len(codes) {
				cursor = 0
			}
		case <-ticker.C:
			if len(codes) == 0 {
				continue
			}
			for i := 0; i < b.batchSize && len(codes) > 0; i++ {
				code := codes[cursor%len(codes)]
				cursor = (cursor + 1) % len(codes)
				b.fetch(code)

				if i == b.batchSize-1 {
					break
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(b.stagger):
				}
			}
		}
	}
}
