package domain

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrMissingSubject   = errors.New("subject is required")
	ErrMissingText      = errors.New("text is required")
	ErrMissingRecipient = errors.New("recipient is required")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrSubjectTooLong   = errors.New("subject too long")
	ErrHeaderInjection  = errors.New("subject must not contain line breaks")
	ErrTextTooLong      = errors.New("text too long")
)

// 验证常量
const (
	// RFC 5322 邮箱地址长度限制
	MaxEmailLength  = 254
	MaxDomainLength = 253

	MaxSubjectLength = 998
	MaxTextLength    = 1 << 20
)

// 域名验证（支持子域名）
var domainRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?(\.[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?)*$`)

// Validate 校验发信请求，返回第一个不满足的条件
func (r MailRequest) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return ErrMissingSubject
	}
	if len(r.Subject) > MaxSubjectLength {
		return ErrSubjectTooLong
	}
	if strings.ContainsAny(r.Subject, "\r\n") {
		return ErrHeaderInjection
	}

	if strings.TrimSpace(r.Text) == "" {
		return ErrMissingText
	}
	if len(r.Text) > MaxTextLength {
		return ErrTextTooLong
	}

	addr := r.RecipientAddress()
	if addr == "" {
		return ErrMissingRecipient
	}
	return ValidateEmail(addr)
}

// ValidateEmail 验证收件人地址，只接受不带显示名的纯地址
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Name != "" || parsed.Address != email {
		return ErrInvalidEmail
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}

	domain := email[at+1:]
	if len(domain) > MaxDomainLength || !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}

	// 检查每个标签的长度（不超过63字符）
	for _, label := range strings.Split(domain, ".") {
		if len(label) > 63 {
			return ErrInvalidDomain
		}
	}

	return nil
}
