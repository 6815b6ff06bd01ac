package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	// Wait 阻塞直到允许下一次调用（或 ctx 取消）
	Wait(ctx context.Context) error
	// Allow 非阻塞检查是否允许调用
	Allow() bool
	// GetRemaining 获取当前窗口剩余的调用次数
	GetRemaining() int
	// GetResetTime 获取窗口重置时间
	GetResetTime() time.Time
}

// SlidingWindow 滑动窗口限流器
//
// 记录最近 limit 次调用的时间戳；窗口满时等待最旧的一次调用滑出窗口，
// 并额外等待 slack，避免因时钟精度在服务端边界上触发限流。
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int           // 窗口内允许的最大调用次数
	window time.Duration // 窗口长度
	slack  time.Duration // 边界保护余量
	calls  []time.Time   // 窗口内的调用时间戳（升序）
}

// NewSlidingWindow 创建滑动窗口限流器
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		slack:  50 * time.Millisecond,
		calls:  make([]time.Time, 0, limit),
	}
}

// evict 清理已滑出窗口的时间戳，调用方必须持有锁
func (s *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.calls) && !s.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.calls = append(s.calls[:0], s.calls[i:]...)
	}
}

// Wait 阻塞直到允许下一次调用，返回前已将本次调用计入窗口
func (s *SlidingWindow) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		now := time.Now()
		s.evict(now)
		if len(s.calls) < s.limit {
			s.calls = append(s.calls, now)
			s.mu.Unlock()
			return nil
		}
		// 等最旧的调用滑出窗口
		wait := s.calls[0].Add(s.window).Sub(now) + s.slack
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow 非阻塞检查，允许则立即计入窗口
func (s *SlidingWindow) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.evict(now)
	if len(s.calls) < s.limit {
		s.calls = append(s.calls, now)
		return true
	}
	return false
}

// GetRemaining 获取当前窗口剩余的调用次数
func (s *SlidingWindow) GetRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(time.Now())
	return s.limit - len(s.calls)
}

// GetResetTime 获取最旧调用滑出窗口的时间；窗口为空时返回当前时间
func (s *SlidingWindow) GetResetTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.evict(now)
	if len(s.calls) == 0 {
		return now
	}
	return s.calls[0].Add(s.window)
}
