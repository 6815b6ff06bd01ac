package cache

import (
	"sync"
	"time"
)

// entry 缓存条目
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// expired 判断条目是否过期
func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// TTLCache 带过期时间的内存缓存
//
// 读路径只做过期检查不做清理；后台 goroutine 定期清理过期条目。
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]entry[V]
	ttl     time.Duration
	stopCh  chan struct{}
	stopped bool
}

// NewTTLCache 创建缓存，ttl 为条目存活时间
func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		items:  make(map[K]entry[V]),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Set 写入条目
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Get 读取条目，过期或不存在返回 false
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || e.expired(time.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Age 返回条目已存在的时长，条目有效时 ok 为 true
func (c *TTLCache[K, V]) Age(key K) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	now := time.Now()
	if !ok || e.expired(now) {
		return 0, false
	}
	return c.ttl - e.expiresAt.Sub(now), true
}

// Delete 删除条目
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear 清空缓存
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]entry[V])
}

// Size 返回未过期条目数量
func (c *TTLCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range c.items {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Stop 停止后台清理 goroutine
func (c *TTLCache[K, V]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.stopCh)
	}
}

// cleanupLoop 定期清理过期条目
func (c *TTLCache[K, V]) cleanupLoop() {
	interval := c.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *TTLCache[K, V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
		}
	}
}
