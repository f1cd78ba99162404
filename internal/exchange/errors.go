package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态，需要上层跳过交易。
	ErrMaintenance = errors.New("exchange on maintenance")
	// ErrCircuitOpen 表示连续失败后熔断器已打开，暂停访问交易所。
	ErrCircuitOpen = errors.New("exchange circuit open")
	// ErrNoPrice 表示行情中没有可用价格。
	ErrNoPrice = errors.New("exchange: ticker has no price")
)

// IsRetryable 判断错误是否可重试。
func IsRetryable(err error) bool {
	_, retry := Classify(err)
	return retry
}

// IsDuplicateOrder 判断是否为重复的客户端订单号。
func IsDuplicateOrder(err error) bool {
	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		if ccxtErr.Type == ccxt.DuplicateOrderIdErrType {
			return true
		}
		return strings.Contains(strings.ToLower(ccxtErr.Message), "duplicate")
	}
	return false
}

// IsOrderNotFound 判断查询的订单是否不存在。
func IsOrderNotFound(err error) bool {
	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		return ccxtErr.Type == ccxt.OrderNotFoundErrType
	}
	return false
}

// Classify 归一化错误并返回是否可重试。
func Classify(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return err, true
		case ccxt.OnMaintenanceErrType:
			message := strings.TrimSpace(ccxtErr.Message)
			if message == "" {
				message = "exchange under maintenance"
			}
			return fmt.Errorf("%w: %s", ErrMaintenance, message), false
		default:
			return err, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}
