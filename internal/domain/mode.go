package domain

import "strings"

// Mode 部署模式，决定请求是否真实投递
type Mode string

const (
	// ModeProduction 生产模式：真实投递，启用访问控制
	ModeProduction Mode = "PROD"
	// ModeTest 测试模式：只记录日志，不发送
	ModeTest Mode = "TEST"
	// ModeTestMail 测试发信模式：记录日志并执行一次真实发送
	ModeTestMail Mode = "TEST-MAIL"
)

// ParseMode 解析 ENVIRONMENT 的取值，未知或为空时回落到 ModeTest
func ParseMode(value string) Mode {
	switch Mode(strings.ToUpper(strings.TrimSpace(value))) {
	case ModeProduction:
		return ModeProduction
	case ModeTestMail:
		return ModeTestMail
	default:
		return ModeTest
	}
}

// IsProduction 是否为生产模式
func (m Mode) IsProduction() bool {
	return m == ModeProduction
}

// Delivers 该模式下是否会调用邮件传输层
func (m Mode) Delivers() bool {
	return m == ModeProduction || m == ModeTestMail
}

func (m Mode) String() string {
	return string(m)
}
