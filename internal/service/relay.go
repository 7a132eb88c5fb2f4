package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/mailer"
)

const (
	MessageSent      = "Mail sent successfully!"
	MessageNotSent   = "Mail could not be sent!"
	MessageLoggedFmt = "Mail logged in %s mode, nothing was sent."
)

var (
	// ErrInvalidRequest 请求字段缺失或格式错误
	ErrInvalidRequest = errors.New("invalid mail request")
	// ErrDeliveryFailed 上游拒绝或发送超时，具体原因只写日志
	ErrDeliveryFailed = errors.New("mail could not be sent")
)

// MetricsRecorder 记录发信结果，可为 nil
type MetricsRecorder interface {
	RecordMail(mode, outcome string, duration time.Duration)
}

// ContentChecker 投递前检查邮件内容，可为 nil
type ContentChecker interface {
	Check(msg *domain.MailMessage) error
}

// Result 发信结果
type Result struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Mail    *domain.MailMessage `json:"mail,omitempty"`
}

// RelayConfig 中继服务参数
type RelayConfig struct {
	Mode        domain.Mode
	Sender      domain.Sender
	SendTimeout time.Duration
	Filter      ContentChecker
}

// RelayService 构造邮件并按运行模式决定是否真正投递。
type RelayService struct {
	mode      domain.Mode
	sender    domain.Sender
	timeout   time.Duration
	transport mailer.Transport
	filter    ContentChecker
	log       *zap.Logger
	metrics   MetricsRecorder

	now   func() time.Time
	newID func() string
}

// NewRelayService 创建中继服务。
func NewRelayService(cfg RelayConfig, transport mailer.Transport, log *zap.Logger, metrics MetricsRecorder) *RelayService {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RelayService{
		mode:      cfg.Mode,
		sender:    cfg.Sender,
		timeout:   timeout,
		transport: transport,
		filter:    cfg.Filter,
		log:       log,
		metrics:   metrics,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Mode 当前运行模式
func (s *RelayService) Mode() domain.Mode {
	return s.mode
}

// SendMail 校验请求、构造邮件并投递。
//
// 请求无效时返回包装了 domain 校验错误的 ErrInvalidRequest；投递失败时同时返回失败结果和
// ErrDeliveryFailed，调用方据此回复 500。每个请求最多尝试投递一次。
func (s *RelayService) SendMail(ctx context.Context, req domain.MailRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		s.record("invalid", 0)
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	msg := domain.NewMailMessage(s.newID(), s.sender, req, s.now().UTC())

	if s.filter != nil {
		if err := s.filter.Check(msg); err != nil {
			s.log.Warn("Mail rejected by content filter",
				append(mailer.MessageFields(msg), zap.Error(err))...,
			)
			s.record("rejected", 0)
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	if !s.mode.Delivers() {
		s.log.Info("Mail logged without delivery", append(mailer.MessageFields(msg), zap.String("mode", s.mode.String()))...)
		s.record("logged", 0)
		return &Result{
			Success: true,
			Message: fmt.Sprintf(MessageLoggedFmt, s.mode),
			Mail:    msg,
		}, nil
	}

	if s.mode == domain.ModeTestMail {
		s.log.Info("Test mail about to be sent", mailer.MessageFields(msg)...)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.transport.Send(sendCtx, msg)
	elapsed := time.Since(start)

	if err != nil {
		s.log.Error("Failed to send mail",
			append(mailer.MessageFields(msg),
				zap.Duration("duration", elapsed),
				zap.Error(err),
			)...,
		)
		s.record("failed", elapsed)
		return &Result{Success: false, Message: MessageNotSent}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.log.Info("Mail sent",
		append(mailer.MessageFields(msg), zap.Duration("duration", elapsed))...,
	)
	s.record("sent", elapsed)
	return &Result{Success: true, Message: MessageSent}, nil
}

func (s *RelayService) record(outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordMail(s.mode.String(), outcome, d)
	}
}
