// Package mailer 负责把构造好的邮件交给上游 SMTP 服务。
package mailer

import (
	"context"

	"mailrelay/backend/internal/domain"
)

// Transport 邮件传输层
//
// Send 在邮件被上游服务器接受后返回 nil；ctx 结束时尽快返回 ctx 的错误。
type Transport interface {
	Send(ctx context.Context, msg *domain.MailMessage) error
}

// TransportFunc 把普通函数适配为 Transport
type TransportFunc func(ctx context.Context, msg *domain.MailMessage) error

// Send 实现 Transport
func (f TransportFunc) Send(ctx context.Context, msg *domain.MailMessage) error {
	return f(ctx, msg)
}
