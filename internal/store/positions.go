package store

import (
	"time"

	"github.com/stockbot/gostock/internal/domain"
)

// Position 读取持仓（深拷贝），不存在返回 nil
func (s *Store) Position(code string) *domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Positions[code].Clone()
}

// Positions 全部持仓快照
func (s *Store) Positions() map[string]*domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*domain.Position, len(s.doc.Positions))
	for code, p := range s.doc.Positions {
		out[code] = p.Clone()
	}
	return out
}

// HeldCodes 当前有持仓的股票代码
func (s *Store) HeldCodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.doc.Positions))
	for code, p := range s.doc.Positions {
		if p.IsOpen() {
			out = append(out, code)
		}
	}
	return out
}

// HolderCount 持仓股票数量
func (s *Store) HolderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.doc.Positions {
		if p.IsOpen() {
			n++
		}
	}
	return n
}

// IsFrozen 该股票是否因不变量违约被冻结
func (s *Store) IsFrozen(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frozen[code]
}

// UnfreezeAll 解除全部冻结（启动全量同步后调用）
func (s *Store) UnfreezeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = make(map[string]bool)
}

// UpdatePosition 在锁内对持仓执行变更并校验不变量
//
// 违反不变量时：记录错误、冻结该股票、丢弃本次变更并返回 ErrInvariant
// （不做静默修复）。变更通过后原子落盘。
func (s *Store) UpdatePosition(code string, mutate func(p *domain.Position)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.doc.Positions[code]
	next := old.Clone()
	if next == nil {
		next = &domain.Position{Code: code}
	}
	mutate(next)
	next.Code = code
	next.LastUpdate = time.Now()

	if err := checkTransition(old, next); err != nil {
		s.log.Errorf("持仓不变量违约 %s: %v", code, err)
		s.frozen[code] = true
		return err
	}

	s.doc.Positions[code] = next
	return s.flushLocked()
}

// checkTransition 校验一次持仓变更是否满足 FSM 不变量
func checkTransition(old, next *domain.Position) error {
	if old == nil {
		return nil
	}
	// soldTargets 只增不减
	for _, t := range old.SoldTargets {
		if !next.HasSoldTarget(t) {
			return ErrInvariant
		}
	}
	// 发生过卖出后买入批次冻结
	if old.SellOccurred && next.BuyCount != old.BuyCount {
		return ErrInvariant
	}
	// 粘滞标志不允许在持仓存续期内被清除
	if old.SellOccurred && !next.SellOccurred {
		return ErrInvariant
	}
	if old.StoplossTriggered && next.Quantity > 0 && !next.StoplossTriggered {
		return ErrInvariant
	}
	return nil
}

// ClosePosition 持仓归零时的收口
// 清空止损与档位状态，保留 SellOccurred 以阻断当日再入场
func (s *Store) ClosePosition(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.doc.Positions[code]
	if p == nil {
		return nil
	}
	p.Quantity = 0
	p.AvgPrice = 0
	p.InitialQuantity = 0
	p.OriginalInitialQuantity = 0
	p.BuyCount = 0
	p.FirstBuyPrice = 0
	p.LastBuyPrice = 0
	p.SoldTargets = nil
	p.StoplossTriggered = false
	p.StoplossPrice = 0
	p.LastExecutedPrice = 0
	p.LastExecutedQty = 0
	p.SellOccurred = true
	p.LastUpdate = time.Now()
	return s.flushLocked()
}

// SyncPositionFromBalance 启动同步：以券商余额为准覆盖数量与均价
// 不经过 FSM 校验（余额是权威数据源）
func (s *Store) SyncPositionFromBalance(code, name string, qty, avgPrice int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.doc.Positions[code]
	if p == nil {
		p = &domain.Position{Code: code}
		s.doc.Positions[code] = p
	}
	p.Name = name
	p.Quantity = qty
	p.AvgPrice = avgPrice
	if p.InitialQuantity == 0 && qty > 0 {
		p.InitialQuantity = qty
		p.OriginalInitialQuantity = qty
	}
	if p.BuyCount == 0 && qty > 0 {
		p.BuyCount = 1
	}
	p.LastUpdate = time.Now()
	return s.flushLocked()
}

// RemovePosition 删除持仓条目（仅清理从未成立的空记录）
func (s *Store) RemovePosition(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Positions[code]; !ok {
		return nil
	}
	delete(s.doc.Positions, code)
	return s.flushLocked()
}
