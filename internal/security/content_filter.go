package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"mailrelay/backend/internal/domain"
)

// ErrContentRejected 邮件内容被过滤器拒绝
var ErrContentRejected = errors.New("mail content rejected")

// DefaultSpamThreshold 命中多少个垃圾关键词视为垃圾邮件
const DefaultSpamThreshold = 3

// ContentFilter 发信内容过滤器
type ContentFilter struct {
	// 恶意内容模式
	maliciousPatterns []*regexp.Regexp

	// 垃圾邮件关键词
	spamKeywords  []string
	spamThreshold int
}

// NewContentFilter 创建内容过滤器，extraKeywords 追加到内置垃圾关键词
func NewContentFilter(extraKeywords ...string) *ContentFilter {
	cf := &ContentFilter{
		maliciousPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<script[^>]*>`),
			regexp.MustCompile(`(?i)javascript:`),
			regexp.MustCompile(`(?i)\bon(load|error|click|mouseover)\s*=`),
			regexp.MustCompile(`(?i)document\.cookie`),
			regexp.MustCompile(`(?i)<iframe[^>]*>`),
			regexp.MustCompile(`(?i)<object[^>]*>`),
			regexp.MustCompile(`(?i)<embed[^>]*>`),
		},
		spamKeywords: []string{
			"viagra", "casino", "lottery", "winner", "congratulations",
			"free money", "click here", "limited time", "act now",
			"guaranteed", "no risk", "earn money", "work from home",
		},
		spamThreshold: DefaultSpamThreshold,
	}
	for _, kw := range extraKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			cf.spamKeywords = append(cf.spamKeywords, kw)
		}
	}
	return cf
}

// Check 检查邮件主题和正文，被拒绝时返回包装了 ErrContentRejected 的错误
func (cf *ContentFilter) Check(msg *domain.MailMessage) error {
	content := msg.Subject + "\n" + msg.Text

	if malicious, reason := cf.checkMaliciousContent(content); malicious {
		return fmt.Errorf("%w: %s", ErrContentRejected, reason)
	}
	if spam, reason := cf.checkSpamContent(content); spam {
		return fmt.Errorf("%w: %s", ErrContentRejected, reason)
	}
	return nil
}

// checkMaliciousContent 检查恶意内容
func (cf *ContentFilter) checkMaliciousContent(content string) (bool, string) {
	for _, pattern := range cf.maliciousPatterns {
		if pattern.MatchString(content) {
			return true, "malicious content detected"
		}
	}
	return false, ""
}

// checkSpamContent 检查垃圾邮件内容
func (cf *ContentFilter) checkSpamContent(content string) (bool, string) {
	contentLower := strings.ToLower(content)

	spamCount := 0
	for _, keyword := range cf.spamKeywords {
		if strings.Contains(contentLower, keyword) {
			spamCount++
		}
	}

	if spamCount >= cf.spamThreshold {
		return true, fmt.Sprintf("spam content detected: %d spam keywords found", spamCount)
	}

	return false, ""
}
