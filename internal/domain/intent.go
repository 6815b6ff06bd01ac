package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IntentKind 交易意图类型
type IntentKind string

const (
	IntentBuy          IntentKind = "buy"           // 首次建仓（含二三批挂单）
	IntentStoploss     IntentKind = "stoploss"      // 止损
	IntentEnsureLadder IntentKind = "ensure_ladder" // 补齐卖出阶梯
)

// Priority 意图优先级，数字越小越先处理
func (k IntentKind) Priority() int {
	switch k {
	case IntentStoploss:
		return 0
	case IntentEnsureLadder:
		return 1
	default:
		return 2
	}
}

// StagedBuy 一笔分批买入挂单
type StagedBuy struct {
	BuyCount int   // 批次（1..maxBuyCount）
	Price    int64 // 限价
	Quantity int64 // 数量
}

// Intent 信号引擎产出的交易意图，由协调器在主上下文派发
type Intent struct {
	ID        string      // 关联 ID，贯穿日志
	Kind      IntentKind  // 类型
	Code      string      // 股票代码
	LastPrice int64       // 触发时的最新价
	Staged    []StagedBuy // 买入意图的全部分批挂单
	CreatedAt time.Time   // 生成时间
}

// NewIntent 创建意图并分配关联 ID
func NewIntent(kind IntentKind, code string, lastPrice int64) Intent {
	return Intent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Code:      code,
		LastPrice: lastPrice,
		CreatedAt: time.Now(),
	}
}

// DedupKey 同一股票同类意图的在途去重键
func (i Intent) DedupKey() string {
	return fmt.Sprintf("%s/%s", i.Code, i.Kind)
}
