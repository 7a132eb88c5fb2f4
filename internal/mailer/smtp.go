package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/domain"
)

// SMTPTransport 通过 gomail 连接上游 SMTP 服务器发信
type SMTPTransport struct {
	dialer *gomail.Dialer
	log    *zap.Logger
}

// NewSMTPTransport 根据配置创建 SMTP 传输层
func NewSMTPTransport(cfg config.MailConfig, log *zap.Logger) *SMTPTransport {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.TLS
	if cfg.InsecureSkipVerify {
		log.Warn("TLS certificate verification disabled for SMTP transport", zap.String("host", cfg.Host))
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true, ServerName: cfg.Host}
	}

	log.Info("SMTP transport initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("user", cfg.Username),
		zap.Bool("tls", cfg.TLS),
	)

	return &SMTPTransport{dialer: d, log: log}
}

// Host 返回上游主机地址
func (t *SMTPTransport) Host() string {
	return t.dialer.Host
}

// Port 返回上游端口
func (t *SMTPTransport) Port() int {
	return t.dialer.Port
}

// Send 实现 Transport
//
// gomail 不支持 context，发送在单独的 goroutine 中进行；ctx 先结束时立即返回错误。
// 连接建立后、发送 DATA 前会再检查一次 ctx，已超时则放弃投递。
// 若超时发生在 DATA 传输途中，上游仍可能在调用方收到失败之后完成投递。
func (t *SMTPTransport) Send(ctx context.Context, msg *domain.MailMessage) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("smtp send via %s:%d: %w", t.dialer.Host, t.dialer.Port, err)
	}

	m := buildMessage(msg)

	done := make(chan error, 1)
	go func() {
		done <- t.dialAndSend(ctx, m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send via %s:%d: %w", t.dialer.Host, t.dialer.Port, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send via %s:%d: %w", t.dialer.Host, t.dialer.Port, ctx.Err())
	}
}

func (t *SMTPTransport) dialAndSend(ctx context.Context, m *gomail.Message) error {
	s, err := t.dialer.Dial()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := ctx.Err(); err != nil {
		t.log.Warn("SMTP send abandoned after dial", zap.Error(err))
		return err
	}
	return gomail.Send(s, m)
}

// buildMessage 把领域邮件转换为 gomail 消息
func buildMessage(msg *domain.MailMessage) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.From, msg.FromName)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	if msg.ID != "" {
		m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", msg.ID, senderDomain(msg.From)))
	}
	if !msg.CreatedAt.IsZero() {
		m.SetDateHeader("Date", msg.CreatedAt)
	}
	m.SetBody("text/plain", msg.Text)
	return m
}

func senderDomain(addr string) string {
	if at := strings.LastIndex(addr, "@"); at >= 0 && at < len(addr)-1 {
		return addr[at+1:]
	}
	return "localhost"
}
