package store

import "github.com/stockbot/gostock/internal/domain"

// Session 会话状态快照
func (s *Store) Session() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Session
}

// SetAutoEnabled 设置自动交易开关
func (s *Store) SetAutoEnabled(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Session.AutoEnabled = on
	return s.flushLocked()
}

// SetOrdersRestored 标记当日挂单恢复完成
func (s *Store) SetOrdersRestored(done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Session.OrdersRestored = done
	return s.flushLocked()
}

// SetStateSynced 标记当日状态同步完成
func (s *Store) SetStateSynced(done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Session.StateSynced = done
	return s.flushLocked()
}

// RolloverIfNewDay 交易日切换
//
// lastTradingDate 与今日不同时：重置当日恢复/同步标志，
// 并把已平仓（数量为 0）持仓的 SellOccurred 清掉，允许新的一天再入场。
// 返回是否发生了切换。
func (s *Store) RolloverIfNewDay(today string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Session.LastTradingDate == today {
		return false, nil
	}
	s.doc.Session.LastTradingDate = today
	s.doc.Session.OrdersRestored = false
	s.doc.Session.StateSynced = false

	for code, p := range s.doc.Positions {
		if p == nil {
			continue
		}
		if p.Quantity == 0 {
			// Closed → Empty
			delete(s.doc.Positions, code)
		}
	}
	return true, s.flushLocked()
}
