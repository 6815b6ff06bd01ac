package store

import (
	"time"

	"github.com/stockbot/gostock/internal/domain"
)

// SavePending 登记挂单，按 (side, limitPrice, buyCount) 去重
// 返回是否实际新增
func (s *Store) SavePending(code string, po domain.PendingOrder) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.doc.PendingOrders[code] {
		if existing.SameOrder(po) {
			return false, nil
		}
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now()
	}
	s.doc.PendingOrders[code] = append(s.doc.PendingOrders[code], po)
	return true, s.flushLocked()
}

// PendingMatch 台账删除的匹配条件，nil 字段表示不限
type PendingMatch struct {
	Side     *domain.Side
	Price    *int64
	BuyCount *int
	Target   *domain.SellTarget
}

func (m PendingMatch) matches(po domain.PendingOrder) bool {
	if m.Side != nil && po.Side != *m.Side {
		return false
	}
	if m.Price != nil && po.LimitPrice != *m.Price {
		return false
	}
	if m.BuyCount != nil && po.BuyCount != *m.BuyCount {
		return false
	}
	if m.Target != nil && po.TargetName != *m.Target {
		return false
	}
	return true
}

// RemoveMatching 删除满足条件的挂单，返回删除数量
func (s *Store) RemoveMatching(code string, match PendingMatch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.doc.PendingOrders[code]
	kept := orders[:0]
	removed := 0
	for _, po := range orders {
		if match.matches(po) {
			removed++
			continue
		}
		kept = append(kept, po)
	}
	if removed == 0 {
		return 0, nil
	}
	if len(kept) == 0 {
		delete(s.doc.PendingOrders, code)
	} else {
		s.doc.PendingOrders[code] = kept
	}
	return removed, s.flushLocked()
}

// SetPendingQuantity 改写匹配挂单的剩余数量，返回改写条数
func (s *Store) SetPendingQuantity(code string, match PendingMatch, qty int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for i, po := range s.doc.PendingOrders[code] {
		if match.matches(po) && po.Quantity != qty {
			s.doc.PendingOrders[code][i].Quantity = qty
			updated++
		}
	}
	if updated == 0 {
		return 0, nil
	}
	return updated, s.flushLocked()
}

// ClearPendingFor 清空某股票的挂单；sides 非空时只清这些方向
// 包括 persist=true 条目（止损撤单等显式清理场景）
func (s *Store) ClearPendingFor(code string, sides ...domain.Side) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.doc.PendingOrders[code]
	if len(orders) == 0 {
		return 0, nil
	}
	if len(sides) == 0 {
		delete(s.doc.PendingOrders, code)
		return len(orders), s.flushLocked()
	}

	sideSet := make(map[domain.Side]bool, len(sides))
	for _, side := range sides {
		sideSet[side] = true
	}
	kept := orders[:0]
	removed := 0
	for _, po := range orders {
		if sideSet[po.Side] {
			removed++
			continue
		}
		kept = append(kept, po)
	}
	if removed == 0 {
		return 0, nil
	}
	if len(kept) == 0 {
		delete(s.doc.PendingOrders, code)
	} else {
		s.doc.PendingOrders[code] = kept
	}
	return removed, s.flushLocked()
}

// PendingFor 某股票的挂单快照
func (s *Store) PendingFor(code string) []domain.PendingOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PendingOrder(nil), s.doc.PendingOrders[code]...)
}

// AllPending 全部挂单快照
func (s *Store) AllPending() map[string][]domain.PendingOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]domain.PendingOrder, len(s.doc.PendingOrders))
	for code, orders := range s.doc.PendingOrders {
		out[code] = append([]domain.PendingOrder(nil), orders...)
	}
	return out
}

// PendingCount 台账总条目数
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, orders := range s.doc.PendingOrders {
		n += len(orders)
	}
	return n
}

// HousekeepLedger 日常清理：删除已平仓股票的非 persist 挂单
// persist=true（止损）条目跨日保留，换日后由恢复流程重新下单
func (s *Store) HousekeepLedger() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, orders := range s.doc.PendingOrders {
		p := s.doc.Positions[code]
		holding := p.IsOpen()
		kept := orders[:0]
		for _, po := range orders {
			if po.Persist {
				kept = append(kept, po)
				continue
			}
			// 无持仓股票的卖单必然失效；买单保留（可能是在途建仓）
			if !holding && po.Side == domain.SideSell {
				removed++
				continue
			}
			kept = append(kept, po)
		}
		if len(kept) == 0 {
			delete(s.doc.PendingOrders, code)
		} else {
			s.doc.PendingOrders[code] = kept
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.flushLocked()
}
