// Package ratelimit 实现固定窗口限流计数。
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidWindow 窗口长度必须为正
var ErrInvalidWindow = errors.New("ratelimit: window must be positive")

// Window 一次计数之后的窗口状态
type Window struct {
	Count   int64     // 本窗口内含本次在内的请求数
	ResetAt time.Time // 窗口结束时间
}

// Store 固定窗口计数存储
//
// Increment 必须对同一个 key 原子地执行：窗口不存在或已过期时新建窗口并计为 1，
// 否则在当前窗口内加 1。
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (Window, error)
}

// Rule 限流规则
type Rule struct {
	Name    string        // 限流器名称，作为计数键的一部分
	Max     int64         // 每个窗口允许的请求数
	Window  time.Duration // 窗口长度
	Message string        // 被拒绝时返回的提示
}

// Decision 一次限流判定结果
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RetryAfter 距窗口结束的剩余时间，最少 1 秒
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < time.Second {
		return time.Second
	}
	return wait
}

// Limiter 把规则和存储组合在一起
type Limiter struct {
	rule  Rule
	store Store
}

// NewLimiter 创建限流器
func NewLimiter(rule Rule, store Store) *Limiter {
	return &Limiter{rule: rule, store: store}
}

// Rule 返回限流规则
func (l *Limiter) Rule() Rule {
	return l.rule
}

// Allow 为 subject（通常是客户端 IP）计数一次并给出判定
func (l *Limiter) Allow(ctx context.Context, subject string) (Decision, error) {
	w, err := l.store.Increment(ctx, l.rule.Name+":"+subject, l.rule.Window)
	if err != nil {
		return Decision{}, err
	}

	remaining := l.rule.Max - w.Count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   w.Count <= l.rule.Max,
		Limit:     l.rule.Max,
		Remaining: remaining,
		ResetAt:   w.ResetAt,
	}, nil
}
