package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/monitoring"
)

// AccessDeniedMessage 访问控制拒绝时的提示
const AccessDeniedMessage = "Access denied"

// AccessConfig 访问控制配置
type AccessConfig struct {
	Mode           domain.Mode
	AllowedIPs     []string
	AllowedOrigins []string
}

// AccessFilter IP / Origin 白名单中间件
//
// 客户端 IP 或 Origin 任意一个命中即放行；非生产模式直接放行。
// 生产模式下两个名单都为空时拒绝所有请求。
func AccessFilter(cfg AccessConfig, log *zap.Logger, metrics *monitoring.Metrics) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	allowedIPs := make(map[string]struct{}, len(cfg.AllowedIPs))
	for _, ip := range cfg.AllowedIPs {
		allowedIPs[normalizeIP(ip)] = struct{}{}
	}
	allowedOrigins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowedOrigins[normalizeOrigin(origin)] = struct{}{}
	}

	if !cfg.Mode.IsProduction() {
		log.Info("Access filter bypassed", zap.String("mode", cfg.Mode.String()))
		return func(c *gin.Context) { c.Next() }
	}
	if len(allowedIPs) == 0 && len(allowedOrigins) == 0 {
		log.Warn("Access filter has empty allow-lists, all mail requests will be rejected")
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if _, ok := allowedIPs[normalizeIP(clientIP)]; ok {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := allowedOrigins[normalizeOrigin(origin)]; ok {
				c.Next()
				return
			}
		}

		log.Warn("Request rejected by access filter",
			zap.String("ip", clientIP),
			zap.String("origin", origin),
			zap.String("path", c.Request.URL.Path),
		)
		if metrics != nil {
			metrics.RecordAccessDenied()
		}
		abortWithMessage(c, http.StatusForbidden, AccessDeniedMessage)
	}
}

// normalizeIP 统一 IPv4 映射地址和大小写，无法解析时原样返回
func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}
	return addr.Unmap().String()
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}
