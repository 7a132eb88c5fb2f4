package smtp

import (
	"context"
	"net"
	"time"

	gosmtp "github.com/emersion/go-smtp"
)

// ErrServerClosed Close 或 Shutdown 之后 ListenAndServe 返回的错误
var ErrServerClosed = gosmtp.ErrServerClosed

// ServerConfig 收信器监听配置
type ServerConfig struct {
	Addr            string
	Domain          string
	MaxMessageBytes int64
	MaxRecipients   int
}

// Server 本地收信 SMTP 服务器
type Server struct {
	srv     *gosmtp.Server
	backend *Backend
}

// NewServer 创建收信服务器
func NewServer(cfg ServerConfig, backend *Backend) *Server {
	srv := gosmtp.NewServer(backend)
	srv.Addr = cfg.Addr
	srv.Domain = cfg.Domain
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.MaxMessageBytes = 10 * 1024 * 1024 // 10MB
	srv.MaxRecipients = 50
	if cfg.MaxMessageBytes > 0 {
		srv.MaxMessageBytes = cfg.MaxMessageBytes
	}
	if cfg.MaxRecipients > 0 {
		srv.MaxRecipients = cfg.MaxRecipients
	}

	return &Server{srv: srv, backend: backend}
}

// Backend 返回收信 Backend
func (s *Server) Backend() *Backend {
	return s.backend
}

// ListenAndServe 在配置的地址上监听
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Serve 在给定的 listener 上处理连接
func (s *Server) Serve(l net.Listener) error {
	return s.srv.Serve(l)
}

// Shutdown 等待现有会话结束后关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Close 立即关闭
func (s *Server) Close() error {
	return s.srv.Close()
}
