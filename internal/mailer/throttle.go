package mailer

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"mailrelay/backend/internal/domain"
)

// Throttled 限制经过的发送速率，所有请求共享一个令牌桶
type Throttled struct {
	next    Transport
	limiter *rate.Limiter
}

// NewThrottled 包装 next，每秒最多 perSecond 次，突发 burst 次
//
// perSecond <= 0 时不限速。
func NewThrottled(next Transport, perSecond float64, burst int) *Throttled {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Send 实现 Transport，等待令牌时同样受 ctx 约束
func (t *Throttled) Send(ctx context.Context, msg *domain.MailMessage) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send throttle: %w", err)
	}
	return t.next.Send(ctx, msg)
}
