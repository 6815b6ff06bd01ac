package events

import "sync"

const (
	// SlotCount 实时行情注册槽数量
	SlotCount = 2
	// SlotCapacity 每槽可注册的股票数量上限
	SlotCapacity = 100
)

// SlotDiff 单个槽的注册变更
type SlotDiff struct {
	SlotID     int
	Register   []string // 新进入该槽的股票
	Unregister []string // 离开该槽的股票
}

// Allocator 实时行情容量分配器
//
// 持仓股票优先占位，监控列表其余股票依序填满 2×100 的活动集；
// 溢出部分交给轮询。每次监控列表或持仓变化后重新分配。
type Allocator struct {
	mu      sync.Mutex
	current [SlotCount][]string
}

// NewAllocator 创建分配器
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate 重新计算槽成员并返回每槽的注册/注销差量与轮询集合
func (a *Allocator) Allocate(watchlist, holders []string) ([]SlotDiff, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]bool, len(watchlist)+len(holders))
	active := make([]string, 0, SlotCount*SlotCapacity)
	polling := make([]string, 0)

	add := func(code string) {
		if code == "" || seen[code] {
			return
		}
		seen[code] = true
		if len(active) < SlotCount*SlotCapacity {
			active = append(active, code)
		} else {
			polling = append(polling, code)
		}
	}

	// 持仓优先
	for _, code := range holders {
		add(code)
	}
	for _, code := range watchlist {
		add(code)
	}

	diffs := make([]SlotDiff, 0, SlotCount)
	for slot := 0; slot < SlotCount; slot++ {
		lo := slot * SlotCapacity
		hi := lo + SlotCapacity
		var next []string
		if lo < len(active) {
			if hi > len(active) {
				hi = len(active)
			}
			next = append([]string(nil), active[lo:hi]...)
		}

		diff := SlotDiff{
			SlotID:     slot,
			Register:   subtract(next, a.current[slot]),
			Unregister: subtract(a.current[slot], next),
		}
		if len(diff.Register) > 0 || len(diff.Unregister) > 0 {
			diffs = append(diffs, diff)
		}
		a.current[slot] = next
	}
	return diffs, polling
}

// Members 当前某槽的成员快照
func (a *Allocator) Members(slot int) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slot < 0 || slot >= SlotCount {
		return nil
	}
	return append([]string(nil), a.current[slot]...)
}

// Reset 清空分配状态（断线重连后重新全量注册）
func (a *Allocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.current {
		a.current[i] = nil
	}
}

// subtract 返回 a − b（保持 a 的顺序）
func subtract(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	var out []string
	for _, s := range a {
		if !inB[s] {
			out = append(out, s)
		}
	}
	return out
}
