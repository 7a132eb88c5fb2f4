package domain

import (
	"fmt"
	"strings"
	"time"
)

// MailRequest 调用方提交的发信请求
//
// 旧版客户端使用 to 字段传递收件人，这里同时兼容两种写法。
type MailRequest struct {
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	Recipient string `json:"recipient,omitempty"`
	To        string `json:"to,omitempty"`
}

// RecipientAddress 返回收件人地址，recipient 优先于 to
func (r MailRequest) RecipientAddress() string {
	if addr := strings.TrimSpace(r.Recipient); addr != "" {
		return addr
	}
	return strings.TrimSpace(r.To)
}

// Sender 固定的发件人身份
type Sender struct {
	Name    string
	Address string
	ReplyTo string
}

// From 返回 "Name" <address> 形式的发件人
func (s Sender) From() string {
	if s.Name == "" {
		return s.Address
	}
	return fmt.Sprintf("%q <%s>", s.Name, s.Address)
}

// MailMessage 交给传输层的邮件，每次请求新建，发送后即丢弃
type MailMessage struct {
	ID        string    `json:"id"`
	FromName  string    `json:"fromName,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ReplyTo   string    `json:"replyTo"`
	Subject   string    `json:"subject"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMailMessage 由请求和固定发件人构造邮件
func NewMailMessage(id string, sender Sender, req MailRequest, now time.Time) *MailMessage {
	return &MailMessage{
		ID:        id,
		FromName:  sender.Name,
		From:      sender.Address,
		To:        req.RecipientAddress(),
		ReplyTo:   sender.ReplyTo,
		Subject:   req.Subject,
		Text:      req.Text,
		CreatedAt: now,
	}
}
