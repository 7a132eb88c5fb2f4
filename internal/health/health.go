package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// Pinger 可探测连通性的依赖，例如 Redis 客户端
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
//
// /live 只反映进程本身；/ready 在上游 SMTP 或 Redis 不可达时返回 503。
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// Option HealthChecker 可选项
type Option func(*HealthChecker)

// WithSMTP 添加上游 SMTP 的 TCP 连通性检查
func WithSMTP(host string, port int, timeout time.Duration) Option {
	return func(hc *HealthChecker) {
		if host == "" {
			return
		}
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		hc.health.AddReadinessCheck("smtp", healthcheck.TCPDialCheck(addr, timeout))
		hc.logger.Debug("Readiness check added", zap.String("check", "smtp"), zap.String("addr", addr))
	}
}

// WithRedis 添加 Redis 连通性检查
func WithRedis(p Pinger, timeout time.Duration) Option {
	return func(hc *HealthChecker) {
		if p == nil {
			return
		}
		hc.health.AddReadinessCheck("redis", PingCheck(p, timeout))
		hc.logger.Debug("Readiness check added", zap.String("check", "redis"))
	}
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *zap.Logger, opts ...Option) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))

	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

// Handler 返回健康检查处理器，提供 /live 和 /ready
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// PingCheck 把 Pinger 包装为带超时的检查
func PingCheck(p Pinger, timeout time.Duration) healthcheck.Check {
	return healthcheck.Timeout(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		return nil
	}, timeout)
}
