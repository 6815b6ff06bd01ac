package kiwoom

import (
	"context"

	"github.com/stockbot/gostock/internal/domain"
)

// 业务接口封装：api-id 与字段名对应键움 REST API 文档原文

// stockInfoResponse 주식기본정보 (ka10001)
type stockInfoResponse struct {
	apiEnvelope
	Name   string `json:"stk_nm"`
	Price  string `json:"cur_prc"`
	Open   string `json:"open_pric"`
	High   string `json:"high_pric"`
	Low    string `json:"low_pric"`
	Volume string `json:"trde_qty"`
}

func (c *restClient) stockInfo(ctx context.Context, code string) (domain.StockInfo, error) {
	var out stockInfoResponse
	err := c.call(ctx, "ka10001", "/api/dostk/stkinfo",
		map[string]string{"stk_cd": code}, &out, &out.apiEnvelope)
	if err != nil {
		return domain.StockInfo{}, err
	}
	return domain.StockInfo{
		Code:   code,
		Name:   out.Name,
		Price:  parseAbs(out.Price),
		Open:   parseAbs(out.Open),
		High:   parseAbs(out.High),
		Low:    parseAbs(out.Low),
		Volume: parseInt(out.Volume),
	}, nil
}

// dailyChartResponse 주식일봉차트조회 (ka10081)
type dailyChartResponse struct {
	apiEnvelope
	Candles []struct {
		Date   string `json:"dt"`
		Open   string `json:"open_pric"`
		High   string `json:"high_pric"`
		Low    string `json:"low_pric"`
		Close  string `json:"cur_prc"`
		Volume string `json:"trde_qty"`
	} `json:"stk_dt_pole_chart_qry"`
}

// dailyCandles 日线查询，返回最新在前
func (c *restClient) dailyCandles(ctx context.Context, code string, count int) ([]domain.Candle, error) {
	var out dailyChartResponse
	err := c.call(ctx, "ka10081", "/api/dostk/chart", map[string]string{
		"stk_cd":       code,
		"base_dt":      "",
		"upd_stkpc_tp": "1",
	}, &out, &out.apiEnvelope)
	if err != nil {
		return nil, err
	}

	n := len(out.Candles)
	if count > 0 && n > count {
		n = count
	}
	candles := make([]domain.Candle, 0, n)
	for _, row := range out.Candles[:n] {
		candles = append(candles, domain.Candle{
			Date:   row.Date,
			Open:   parseAbs(row.Open),
			High:   parseAbs(row.High),
			Low:    parseAbs(row.Low),
			Close:  parseAbs(row.Close),
			Volume: parseInt(row.Volume),
		})
	}
	return candles, nil
}

// balanceResponse 계좌평가잔고내역 (kt00018)
type balanceResponse struct {
	apiEnvelope
	TotalPurchase string `json:"tot_pur_amt"`
	TotalEval     string `json:"tot_evlt_amt"`
	TotalProfit   string `json:"tot_evlt_pl"`
	ProfitRate    string `json:"tot_prft_rt"`
	Holdings      []struct {
		Code       string `json:"stk_cd"`
		Name       string `json:"stk_nm"`
		Quantity   string `json:"rmnd_qty"`
		AvgPrice   string `json:"pur_pric"`
		Price      string `json:"cur_prc"`
		EvalAmount string `json:"evlt_amt"`
		Profit     string `json:"evltv_prft"`
		ProfitRate string `json:"prft_rt"`
	} `json:"acnt_evlt_remn_indv_tot"`
}

func (c *restClient) balance(ctx context.Context) (domain.Balance, error) {
	var out balanceResponse
	err := c.call(ctx, "kt00018", "/api/dostk/acnt", map[string]string{
		"qry_tp":       "1",
		"dmst_stex_tp": "KRX",
	}, &out, &out.apiEnvelope)
	if err != nil {
		return domain.Balance{}, err
	}

	bal := domain.Balance{
		TotalPurchase: parseInt(out.TotalPurchase),
		TotalEval:     parseInt(out.TotalEval),
		TotalProfit:   parseInt(out.TotalProfit),
		ProfitRatePct: parseFloat(out.ProfitRate),
	}
	for _, h := range out.Holdings {
		qty := parseInt(h.Quantity)
		if qty <= 0 {
			continue
		}
		bal.Holdings = append(bal.Holdings, domain.Holding{
			Code:          domain.CanonicalCode(h.Code),
			Name:          h.Name,
			Quantity:      qty,
			AvgPrice:      parseAbs(h.AvgPrice),
			CurrentPrice:  parseAbs(h.Price),
			EvalAmount:    parseInt(h.EvalAmount),
			Profit:        parseInt(h.Profit),
			ProfitRatePct: parseFloat(h.ProfitRate),
		})
	}
	return bal, nil
}

// depositResponse 예수금상세현황 (kt00001)
type depositResponse struct {
	apiEnvelope
	Deposit        string `json:"entr"`
	DepositD1      string `json:"d1_entra"`
	DepositD2      string `json:"d2_entra"`
	Available      string `json:"wthd_alow_amt"`
	OrderAvailable string `json:"ord_alow_amt"`
}

func (c *restClient) depositDetail(ctx context.Context) (domain.DepositDetail, error) {
	var out depositResponse
	err := c.call(ctx, "kt00001", "/api/dostk/acnt",
		map[string]string{"qry_tp": "3"}, &out, &out.apiEnvelope)
	if err != nil {
		return domain.DepositDetail{}, err
	}
	return domain.DepositDetail{
		Deposit:        parseInt(out.Deposit),
		DepositD1:      parseInt(out.DepositD1),
		DepositD2:      parseInt(out.DepositD2),
		Available:      parseInt(out.Available),
		OrderAvailable: parseInt(out.OrderAvailable),
	}, nil
}

// openOrdersResponse 미체결요청 (ka10075)
type openOrdersResponse struct {
	apiEnvelope
	Orders []struct {
		OrderNo     string `json:"ord_no"`
		Code        string `json:"stk_cd"`
		Name        string `json:"stk_nm"`
		OrderName   string `json:"io_tp_nm"` // +매수 / -매도
		Quantity    string `json:"ord_qty"`
		Price       string `json:"ord_pric"`
		UnfilledQty string `json:"oso_qty"`
	} `json:"oso"`
}

func (c *restClient) openOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var out openOrdersResponse
	err := c.call(ctx, "ka10075", "/api/dostk/acnt", map[string]string{
		"all_stk_tp": "0", // 전체 종목
		"trde_tp":    "1", // 미체결만
		"stex_tp":    "0",
	}, &out, &out.apiEnvelope)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.OpenOrder, 0, len(out.Orders))
	for _, o := range out.Orders {
		side := sideFromOrderName(o.OrderName)
		if side != domain.SideBuy && side != domain.SideSell {
			continue // 취소/정정 잔량은 제외
		}
		orders = append(orders, domain.OpenOrder{
			OrderNo:     o.OrderNo,
			Code:        domain.CanonicalCode(o.Code),
			Name:        o.Name,
			Side:        side,
			Quantity:    parseInt(o.Quantity),
			Price:       parseAbs(o.Price),
			UnfilledQty: parseInt(o.UnfilledQty),
		})
	}
	return orders, nil
}

// executionsResponse 체결요청 (ka10076)
type executionsResponse struct {
	apiEnvelope
	Executions []struct {
		Code      string `json:"stk_cd"`
		Name      string `json:"stk_nm"`
		OrderNo   string `json:"ord_no"`
		OrderName string `json:"io_tp_nm"`
		Quantity  string `json:"cntr_qty"`
		Price     string `json:"cntr_pric"`
		Time      string `json:"ord_tm"` // HHMMSS
	} `json:"cntr"`
}

func (c *restClient) todayExecutions(ctx context.Context) ([]domain.Execution, error) {
	var out executionsResponse
	err := c.call(ctx, "ka10076", "/api/dostk/acnt", map[string]string{
		"qry_tp":  "0", // 전체
		"sell_tp": "0", // 매수+매도
		"stex_tp": "0",
	}, &out, &out.apiEnvelope)
	if err != nil {
		return nil, err
	}

	execs := make([]domain.Execution, 0, len(out.Executions))
	for _, e := range out.Executions {
		side := sideFromOrderName(e.OrderName)
		if side != domain.SideBuy && side != domain.SideSell {
			continue
		}
		qty := parseInt(e.Quantity)
		price := parseAbs(e.Price)
		execs = append(execs, domain.Execution{
			Code:    domain.CanonicalCode(e.Code),
			Name:    e.Name,
			Side:    side,
			Qty:     qty,
			Price:   price,
			Amount:  qty * price,
			Time:    e.Time,
			OrderNo: e.OrderNo,
		})
	}
	return execs, nil
}

// orderResponse 주문 접수 결과 (kt10000/kt10001/kt10003)
type orderResponse struct {
	apiEnvelope
	OrderNo string `json:"ord_no"`
}

// placeOrder 주식 매수/매도 주문 (kt10000 매수, kt10001 매도)
// 限价单 trde_tp "0"，市价单 "3"（此时 ord_uv 留空）
func (c *restClient) placeOrder(ctx context.Context, side domain.Side, code string, qty, price int64, kind domain.PriceKind) (int, error) {
	apiID := "kt10000"
	if side == domain.SideSell {
		apiID = "kt10001"
	}

	body := map[string]string{
		"dmst_stex_tp": "KRX",
		"stk_cd":       code,
		"ord_qty":      formatInt(qty),
		"trde_tp":      "0",
		"ord_uv":       formatInt(price),
	}
	if kind == domain.PriceMarket {
		body["trde_tp"] = "3"
		body["ord_uv"] = ""
	}

	var out orderResponse
	if err := c.call(ctx, apiID, "/api/dostk/ordr", body, &out, &out.apiEnvelope); err != nil {
		return -1, err
	}
	return out.ReturnCode, nil
}

// cancelOrder 주식 취소주문 (kt10003)；cnclQty 0 表示残量全部取消
func (c *restClient) cancelOrder(ctx context.Context, origOrderNo, code string, cnclQty int64) (int, error) {
	body := map[string]string{
		"dmst_stex_tp": "KRX",
		"orig_ord_no":  origOrderNo,
		"stk_cd":       code,
		"cncl_qty":     formatInt(cnclQty),
	}
	if cnclQty == 0 {
		body["cncl_qty"] = "0" // 전량 취소
	}

	var out orderResponse
	if err := c.call(ctx, "kt10003", "/api/dostk/ordr", body, &out, &out.apiEnvelope); err != nil {
		return -1, err
	}
	return out.ReturnCode, nil
}
