package kiwoom

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/broker"
	"github.com/stockbot/gostock/internal/domain"
)

// 实时通道的 TR 类型
const (
	realTypePrice   = "0B" // 주식체결（实时价）
	realTypeChejan  = "00" // 주문체결（委托/成交回报）
	realTypeBalance = "04" // 잔고（余额回报）
)

// 체결/잔고回报的 FID，与旧版 OpenAPI 保持一致
const (
	fidCode      = "9001" // 종목코드
	fidOrderNo   = "9203" // 주문번호
	fidStatus    = "913"  // 주문상태
	fidOrderName = "905"  // 주문구분 (+매수 / -매도)
	fidOrderQty  = "900"  // 주문수량
	fidExecQty   = "911"  // 체결량
	fidExecPrice = "910"  // 체결가
	fidHoldQty   = "930"  // 보유수량
	fidAvgPrice  = "931"  // 평균단가
	fidPrice     = "10"   // 현재가
	fidVolume    = "15"   // 거래량
)

// wsMessage 실시간 통로的通用帧
type wsMessage struct {
	TrName     string          `json:"trnm"`
	ReturnCode int             `json:"return_code"`
	ReturnMsg  string          `json:"return_msg"`
	Data       json.RawMessage `json:"data"`
}

// wsRealItem REAL 帧中的一条记录
type wsRealItem struct {
	Type   string            `json:"type"` // 0B / 00 / 04
	Item   string            `json:"item"` // 종목코드
	Values map[string]string `json:"values"`
}

// wsRegData REG/REMOVE 帧的注册数据
type wsRegData struct {
	Item []string `json:"item"`
	Type []string `json:"type"`
}

// wsClient 实时行情 WebSocket 客户端
//
// 登录后由调用方按槽注册行情；体결/잔고回报在登录时注册一次。
// 读循环退出时投递 DisconnectEvent，重连由协调器驱动（重新 Connect）。
type wsClient struct {
	url    string
	events chan<- broker.Event

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	log *logrus.Entry
}

func newWSClient(url string, events chan<- broker.Event) *wsClient {
	return &wsClient{
		url:    url,
		events: events,
		log:    logrus.WithField("component", "kiwoom.ws"),
	}
}

// connect 建立连接、登录并注册体결/잔고回报，随后启动读循环
func (w *wsClient) connect(ctx context.Context, token string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.closed = false

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return errors.Wrap(err, "dial websocket")
	}

	// LOGIN 帧必须是连接后的第一帧
	login := map[string]string{"trnm": "LOGIN", "token": token}
	if err := conn.WriteJSON(login); err != nil {
		conn.Close()
		return errors.Wrap(err, "send login")
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var resp wsMessage
	for {
		if err := conn.ReadJSON(&resp); err != nil {
			conn.Close()
			return errors.Wrap(err, "read login response")
		}
		if resp.TrName == "LOGIN" {
			break
		}
	}
	if resp.ReturnCode != 0 {
		conn.Close()
		return errors.Wrapf(broker.ErrAdapterCall, "websocket login: [%d] %s", resp.ReturnCode, resp.ReturnMsg)
	}
	conn.SetReadDeadline(time.Time{})

	w.conn = conn
	w.log.Info("실시간 통로 로그인 성공")

	// 체결/잔고回报不分股票，登录后注册一次
	if err := w.writeJSON(map[string]any{
		"trnm":    "REG",
		"grp_no":  "0",
		"refresh": "1",
		"data":    []wsRegData{{Item: []string{""}, Type: []string{realTypeChejan, realTypeBalance}}},
	}); err != nil {
		conn.Close()
		w.conn = nil
		return errors.Wrap(err, "register chejan")
	}

	go w.readLoop(conn)
	return nil
}

// register 在指定槽注册实时价；mode append 追加，replace 覆盖
func (w *wsClient) register(slotID int, codes []string, mode broker.SubscribeMode) error {
	refresh := "1" // 기존 등록 유지
	if mode == broker.ModeReplace {
		refresh = "0"
	}
	return w.writeJSON(map[string]any{
		"trnm":    "REG",
		"grp_no":  groupNo(slotID),
		"refresh": refresh,
		"data":    []wsRegData{{Item: codes, Type: []string{realTypePrice}}},
	})
}

// unregister 注销单只股票；code 为 "ALL" 时清空整个槽
func (w *wsClient) unregister(slotID int, code string) error {
	items := []string{code}
	if code == "ALL" {
		items = []string{""}
	}
	return w.writeJSON(map[string]any{
		"trnm":   "REMOVE",
		"grp_no": groupNo(slotID),
		"data":   []wsRegData{{Item: items, Type: []string{realTypePrice}}},
	})
}

// groupNo 订阅槽到通道组号的映射
func groupNo(slotID int) string {
	return strconv.Itoa(slotID + 1)
}

func (w *wsClient) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil || w.closed {
		return broker.ErrNotConnected
	}
	return w.conn.WriteJSON(v)
}

// close 主动关闭，读循环退出时不投递断线事件
func (w *wsClient) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}

// readLoop 读循环：PING 原样回写，REAL 帧解析成事件
func (w *wsClient) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			closed := w.closed
			w.mu.Unlock()
			if !closed {
				w.events <- broker.DisconnectEvent{Err: err}
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			w.log.Debugf("无法解析的帧: %v", err)
			continue
		}

		switch msg.TrName {
		case "PING":
			// 心跳按协议原样回写
			w.mu.Lock()
			if w.conn != nil && !w.closed {
				_ = w.conn.WriteMessage(websocket.TextMessage, raw)
			}
			w.mu.Unlock()
		case "REAL":
			w.handleReal(msg.Data)
		case "REG", "REMOVE":
			if msg.ReturnCode != 0 {
				w.log.Warnf("실시간 등록 응답 오류: [%d] %s", msg.ReturnCode, msg.ReturnMsg)
			}
		}
	}
}

// handleReal 解析 REAL 帧并投递对应事件
func (w *wsClient) handleReal(data json.RawMessage) {
	var items []wsRealItem
	if err := json.Unmarshal(data, &items); err != nil {
		w.log.Debugf("REAL 帧解析失败: %v", err)
		return
	}

	for _, it := range items {
		switch it.Type {
		case realTypePrice:
			price := parseAbs(it.Values[fidPrice])
			if price <= 0 {
				continue
			}
			w.events <- broker.PriceEvent{
				Code:   domain.CanonicalCode(it.Item),
				Price:  price,
				Volume: parseInt(it.Values[fidVolume]),
			}
		case realTypeChejan:
			w.events <- broker.OrderEvent{
				Code:      domain.CanonicalCode(it.Values[fidCode]),
				Status:    it.Values[fidStatus],
				Side:      sideFromOrderName(it.Values[fidOrderName]),
				OrderQty:  parseInt(it.Values[fidOrderQty]),
				ExecQty:   parseInt(it.Values[fidExecQty]),
				ExecPrice: parseAbs(it.Values[fidExecPrice]),
				OrderNo:   it.Values[fidOrderNo],
			}
		case realTypeBalance:
			w.events <- broker.BalanceEvent{
				Code:     domain.CanonicalCode(it.Values[fidCode]),
				Quantity: parseInt(it.Values[fidHoldQty]),
				AvgPrice: parseAbs(it.Values[fidAvgPrice]),
			}
		}
	}
}
