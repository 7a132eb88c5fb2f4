package mailer

import (
	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
)

// MessageFields 邮件的日志字段，包含收件人和正文
func MessageFields(msg *domain.MailMessage) []zap.Field {
	return []zap.Field{
		zap.String("message_id", msg.ID),
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("reply_to", msg.ReplyTo),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	}
}
