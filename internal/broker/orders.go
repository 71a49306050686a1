package broker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// orderBody 的字段顺序决定 hashkey 的计算结果，不可调整。
type orderBody struct {
	CANO         string `json:"CANO"`
	AcntPrdtCd   string `json:"ACNT_PRDT_CD"`
	OvrsExcgCd   string `json:"OVRS_EXCG_CD"`
	PDNO         string `json:"PDNO"`
	OrdQty       string `json:"ORD_QTY"`
	OvrsOrdUnpr  string `json:"OVRS_ORD_UNPR"`
	SllBuyDvsnCd string `json:"SLL_BUY_DVSN_CD"`
	OrdDvsn      string `json:"ORD_DVSN"`
	OrdSvrDvsnCd string `json:"ORD_SVR_DVSN_CD"`
}

type orderResponse struct {
	RtCd   string                 `json:"rt_cd"`
	Msg1   string                 `json:"msg1"`
	Output map[string]interface{} `json:"output"`
}

// PlaceOrder 提交一笔海外股票订单。MOC 卖单价格传0。
func (c *Client) PlaceOrder(ctx context.Context, kind OrderKind, symbol string, quantity int, price float64) (OrderResult, error) {
	route, ok := routeFor(kind)
	if !ok {
		return OrderResult{}, fmt.Errorf("%w: %s", ErrUnknownOrderKind, kind)
	}

	priceStr := "0"
	if price > 0 {
		priceStr = strconv.FormatFloat(price, 'f', 2, 64)
	}

	body := orderBody{
		CANO:         c.cfg.AccountNumber,
		AcntPrdtCd:   c.cfg.AccountCode,
		OvrsExcgCd:   "AMEX",
		PDNO:         symbol,
		OrdQty:       strconv.Itoa(quantity),
		OvrsOrdUnpr:  priceStr,
		SllBuyDvsnCd: route.sllBuy,
		OrdDvsn:      route.ordDvsn,
		OrdSvrDvsnCd: "0",
	}

	data, err := json.Marshal(body)
	if err != nil {
		return OrderResult{}, fmt.Errorf("broker: 序列化订单失败: %w", err)
	}

	if err := c.ensureToken(ctx); err != nil {
		return OrderResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/uapi/overseas-stock/v1/trading/order", bytes.NewReader(data))
	if err != nil {
		return OrderResult{}, fmt.Errorf("broker: 构造下单请求失败: %w", err)
	}
	c.setAuthHeaders(req, route.trID)
	req.Header.Set("hashkey", hashKey(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OrderResult{}, fmt.Errorf("broker: 下单请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return OrderResult{}, fmt.Errorf("broker: 下单接口返回状态码 %d", resp.StatusCode)
	}

	var payload orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return OrderResult{}, fmt.Errorf("broker: 解析下单响应失败: %w", err)
	}

	if payload.RtCd != "0" {
		c.logger.Error("订单被拒绝",
			zap.String("kind", string(kind)),
			zap.String("symbol", symbol),
			zap.Int("quantity", quantity),
			zap.String("message", payload.Msg1),
		)
		return OrderResult{Success: false, Message: payload.Msg1}, nil
	}

	c.logger.Info("订单提交成功",
		zap.String("kind", string(kind)),
		zap.String("symbol", symbol),
		zap.Int("quantity", quantity),
		zap.String("price", priceStr),
	)
	return OrderResult{Success: true, Output: payload.Output}, nil
}

// hashKey 对订单报文做 SHA-256，实盘下单必须携带。
func hashKey(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
