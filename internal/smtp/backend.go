package smtp

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"sync"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

// ErrTooManyConnections 表示收信器已达到并发会话上限。
var ErrTooManyConnections = errors.New("too many connections")

// Message 收信器收到的一封邮件
type Message struct {
	From       string
	Recipients []string
	Raw        []byte
	Parsed     *ParsedEmail
	ReceivedAt time.Time
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只收不转的本地收信器：收到的邮件保存在内存中并写日志，
// 不会投递到任何外部地址。用于开发环境的 TEST-MAIL 模式和测试。
type Backend struct {
	mu       sync.Mutex
	messages []*Message
	notify   chan struct{}

	keep      int
	limiter   *ConnectionLimiter
	log       *zap.Logger
	onMessage func(*Message)
}

// BackendOption Backend 可选项
type BackendOption func(*Backend)

// WithRetention 设置内存中最多保留的邮件数
func WithRetention(n int) BackendOption {
	return func(b *Backend) { b.keep = n }
}

// WithConnectionLimiter 限制并发会话数和新建速率
func WithConnectionLimiter(l *ConnectionLimiter) BackendOption {
	return func(b *Backend) { b.limiter = l }
}

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) BackendOption {
	return func(b *Backend) { b.log = log }
}

// WithOnMessage 每收到一封邮件调用一次 fn，fn 不应阻塞
func WithOnMessage(fn func(*Message)) BackendOption {
	return func(b *Backend) { b.onMessage = fn }
}

// NewBackend 创建收信器 Backend。
func NewBackend(opts ...BackendOption) *Backend {
	b := &Backend{
		notify: make(chan struct{}, 1),
		keep:   100,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if b.limiter != nil && !b.limiter.Acquire() {
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      ErrTooManyConnections.Error(),
		}
	}
	return &session{backend: b}, nil
}

// Messages 返回已收到邮件的快照
func (b *Backend) Messages() []*Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Received 有新邮件时收到信号
func (b *Backend) Received() <-chan struct{} {
	return b.notify
}

func (b *Backend) store(msg *Message) {
	b.mu.Lock()
	b.messages = append(b.messages, msg)
	if b.keep > 0 && len(b.messages) > b.keep {
		b.messages = b.messages[len(b.messages)-b.keep:]
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}

	if b.onMessage != nil {
		b.onMessage(msg)
	}

	b.log.Info("sink received message",
		zap.String("from", msg.From),
		zap.Strings("to", msg.Recipients),
		zap.String("subject", msg.Parsed.Subject),
		zap.Int("size", len(msg.Raw)),
	)
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令，只检查地址格式。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	parts := strings.Split(addr, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 处理邮件内容。
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	parsed, err := ParseEmail(raw)
	if err != nil {
		return fmt.Errorf("parse email: %w", err)
	}

	recipients := make([]string, len(s.recipients))
	copy(recipients, s.recipients)

	s.backend.store(&Message{
		From:       s.fromAddress,
		Recipients: recipients,
		Raw:        raw,
		Parsed:     parsed,
		ReceivedAt: time.Now().UTC(),
	})
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	if s.backend.limiter != nil {
		s.backend.limiter.Release()
	}
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}

func decodeHeader(value string) string {
	if value == "" {
		return value
	}
	decoder := new(mime.WordDecoder)
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
