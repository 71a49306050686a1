package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited 表示命中接口限流（EGW00133），需等待后重试。
	ErrRateLimited = errors.New("broker: 接口限流")
	// ErrTokenIssue 表示访问令牌获取失败。
	ErrTokenIssue = errors.New("broker: 获取访问令牌失败")
	// ErrUnknownOrderKind 表示不支持的订单类型。
	ErrUnknownOrderKind = errors.New("broker: 不支持的订单类型")
)

// rateLimitCode 为券商限流错误码。
const rateLimitCode = "EGW00133"

func apiError(path, msg string) error {
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Errorf("broker: 接口 %s 返回错误: %s", path, msg)
}
