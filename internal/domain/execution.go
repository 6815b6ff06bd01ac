package domain

// ExecutionRecord 单笔成交记录，按 orderNo 去重
type ExecutionRecord struct {
	Side     Side   `json:"side"`     // 方向
	Quantity int64  `json:"quantity"` // 成交数量
	Price    int64  `json:"price"`    // 成交价格
	Time     string `json:"time"`     // HHMMSS
	OrderNo  string `json:"order_no"` // 订单号
}

// Execution 券商当日成交明细（查询接口返回）
type Execution struct {
	Code    string // 股票代码
	Name    string // 股票名称
	Side    Side   // 方向
	Qty     int64  // 成交数量
	Price   int64  // 成交价格
	Amount  int64  // 成交金额
	Time    string // HHMMSS
	OrderNo string // 订单号
}

// Balance 账户余额快照
type Balance struct {
	Deposit       int64     // 预托金
	TotalPurchase int64     // 总买入金额
	TotalEval     int64     // 总评估金额
	TotalProfit   int64     // 总评估损益
	ProfitRatePct float64   // 总收益率
	Holdings      []Holding // 持仓明细
}

// Holding 余额中的单只持仓
type Holding struct {
	Code          string  // 股票代码
	Name          string  // 股票名称
	Quantity      int64   // 持仓数量
	AvgPrice      int64   // 持仓均价
	CurrentPrice  int64   // 现价
	EvalAmount    int64   // 评估金额
	Profit        int64   // 评估损益
	ProfitRatePct float64 // 收益率
}

// DepositDetail 预托金明细
type DepositDetail struct {
	Deposit        int64 // 预托金
	DepositD1      int64 // D+1 预托金
	DepositD2      int64 // D+2 预托金
	Available      int64 // 可用金额
	OrderAvailable int64 // 可委托金额
}

// StockInfo 股票基本信息快照
type StockInfo struct {
	Code   string // 股票代码
	Name   string // 股票名称
	Price  int64  // 现价
	Open   int64  // 开盘价
	High   int64  // 最高价
	Low    int64  // 最低价
	Volume int64  // 成交量
}
