// Package smtptest 在进程内启动一个收信 SMTP 服务器，供测试使用。
package smtptest

import (
	"net"
	"testing"
	"time"

	"mailrelay/backend/internal/smtp"
)

// Server 测试用收信服务器
type Server struct {
	*smtp.Server
	Host string
	Port int
}

// Start 在 127.0.0.1 的随机端口上启动收信服务器，测试结束时自动关闭
func Start(t testing.TB, opts ...smtp.BackendOption) *Server {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("smtptest: listen: %v", err)
	}

	srv := smtp.NewServer(smtp.ServerConfig{Domain: "localhost"}, smtp.NewBackend(opts...))
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	addr := l.Addr().(*net.TCPAddr)
	return &Server{Server: srv, Host: addr.IP.String(), Port: addr.Port}
}

// WaitMessages 等待直到收到至少 n 封邮件或超时
func (s *Server) WaitMessages(t testing.TB, n int, timeout time.Duration) []*smtp.Message {
	t.Helper()

	deadline := time.After(timeout)
	for {
		if msgs := s.Backend().Messages(); len(msgs) >= n {
			return msgs
		}
		select {
		case <-s.Backend().Received():
		case <-deadline:
			t.Fatalf("smtptest: waited %s for %d messages, got %d", timeout, n, len(s.Backend().Messages()))
			return nil
		}
	}
}
