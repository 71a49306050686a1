package broker

// OrderKind 为券商支持的订单类型。
type OrderKind string

const (
	// OrderLOCBuy 收盘限价买入。
	OrderLOCBuy OrderKind = "LOC_BUY"
	// OrderLOCSell 收盘限价卖出。
	OrderLOCSell OrderKind = "LOC_SELL"
	// OrderMOCSell 收盘市价卖出。
	OrderMOCSell OrderKind = "MOC_SELL"
)

// OrderResult 为一次下单的结果。
type OrderResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Output  map[string]interface{} `json:"output,omitempty"`
}

// Balance 为海外账户余额概要，字段直接透传接口原始键值。
type Balance map[string]interface{}

// orderRoute 描述订单类型到接口参数的映射。
type orderRoute struct {
	trID    string
	ordDvsn string
	sllBuy  string
}

func routeFor(kind OrderKind) (orderRoute, bool) {
	switch kind {
	case OrderLOCBuy:
		return orderRoute{trID: "JTTT1002U", ordDvsn: "34", sllBuy: "B"}, true
	case OrderLOCSell:
		return orderRoute{trID: "JTTT1006U", ordDvsn: "34", sllBuy: "S"}, true
	case OrderMOCSell:
		return orderRoute{trID: "JTTT1006U", ordDvsn: "33", sllBuy: "S"}, true
	default:
		return orderRoute{}, false
	}
}
