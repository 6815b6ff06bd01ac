package broker

import (
	"fmt"

	"github.com/pkg/errors"
)

// 错误类别哨兵，跨包用 errors.Is 判别
var (
	ErrNotConnected         = errors.New("broker: not connected")
	ErrNoAccount            = errors.New("broker: no account available")
	ErrMarketClosed         = errors.New("broker: market closed")
	ErrAdapterCall          = errors.New("broker: adapter call failed")
	ErrOrderRejected        = errors.New("broker: order rejected")
	ErrInsufficientQuantity = errors.New("broker: insufficient quantity")
	ErrCacheMiss            = errors.New("broker: cache miss")
	ErrTimeout              = errors.New("broker: timeout")
)

// AdapterCallError 带状态码包装 ErrAdapterCall
func AdapterCallError(code int, op string) error {
	return errors.Wrap(ErrAdapterCall, fmt.Sprintf("%s: status %d", op, code))
}

// OrderRejectedError 带状态码包装 ErrOrderRejected
func OrderRejectedError(code int) error {
	return errors.Wrap(ErrOrderRejected, fmt.Sprintf("status %d", code))
}
