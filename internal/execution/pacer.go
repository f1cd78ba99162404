package execution

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer 保证相邻两次外部调用之间的最小间隔，超出速率时阻塞等待。
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer 以每秒请求数构造节流器，rps 不为正时不限速。
func NewPacer(rps float64) *Pacer {
	if rps <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	interval := time.Duration(float64(time.Second) / rps)
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait 阻塞直到允许下一次调用或 ctx 结束。
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
