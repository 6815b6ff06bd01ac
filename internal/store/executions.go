package store

import (
	"time"

	"github.com/stockbot/gostock/internal/domain"
)

// SaveExecution 记录一笔成交，按 orderNo 去重，返回是否新增
func (s *Store) SaveExecution(date, code string, rec domain.ExecutionRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCode := s.doc.ExecutionHistory[date]
	if byCode == nil {
		byCode = make(map[string][]domain.ExecutionRecord)
		s.doc.ExecutionHistory[date] = byCode
	}
	if rec.OrderNo != "" {
		for _, existing := range byCode[code] {
			if existing.OrderNo == rec.OrderNo && existing.Side == rec.Side {
				return false, nil
			}
		}
	}
	byCode[code] = append(byCode[code], rec)
	return true, s.flushLocked()
}

// SaveFill 记录一笔实时成交回报，返回相对上次回报的增量数量
//
// 체결량按订单累计：同一 orderNo 的后续回报覆盖已有记录；
// 累计数量未增加视为重复回报，增量为 0
func (s *Store) SaveFill(date, code string, rec domain.ExecutionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCode := s.doc.ExecutionHistory[date]
	if byCode == nil {
		byCode = make(map[string][]domain.ExecutionRecord)
		s.doc.ExecutionHistory[date] = byCode
	}
	if rec.OrderNo != "" {
		for i, existing := range byCode[code] {
			if existing.OrderNo == rec.OrderNo && existing.Side == rec.Side {
				if rec.Quantity <= existing.Quantity {
					return 0, nil
				}
				delta := rec.Quantity - existing.Quantity
				byCode[code][i] = rec
				return delta, s.flushLocked()
			}
		}
	}
	byCode[code] = append(byCode[code], rec)
	return rec.Quantity, s.flushLocked()
}

// ExecutionsFor 读取某日某股票的成交记录
func (s *Store) ExecutionsFor(date, code string) []domain.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ExecutionRecord(nil), s.doc.ExecutionHistory[date][code]...)
}

// ExecutionsOn 读取某日全部成交记录，按股票分组
func (s *Store) ExecutionsOn(date string) map[string][]domain.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]domain.ExecutionRecord, len(s.doc.ExecutionHistory[date]))
	for code, recs := range s.doc.ExecutionHistory[date] {
		out[code] = append([]domain.ExecutionRecord(nil), recs...)
	}
	return out
}

// PruneExecutions 删除 keepDays 之前的成交记录
func (s *Store) PruneExecutions(keepDays int, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.AddDate(0, 0, -keepDays).Format("20060102")
	removed := 0
	for date := range s.doc.ExecutionHistory {
		if date < cutoff {
			removed++
			delete(s.doc.ExecutionHistory, date)
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.flushLocked()
}
