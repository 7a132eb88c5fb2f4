package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/ratelimit"
)

// RateLimit 按客户端 IP 的固定窗口限流中间件
//
// 计数存储出错时放行请求并记录日志。
func RateLimit(limiter *ratelimit.Limiter, log *zap.Logger, metrics *monitoring.Metrics) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	rule := limiter.Rule()

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		decision, err := limiter.Allow(c.Request.Context(), clientIP)
		if err != nil {
			log.Error("Rate limit store failed, allowing request",
				zap.String("limiter", rule.Name),
				zap.String("ip", clientIP),
				zap.Error(err),
			)
			if metrics != nil {
				metrics.RecordRateLimitError(rule.Name)
			}
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := decision.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))

			log.Warn("Rate limit exceeded",
				zap.String("limiter", rule.Name),
				zap.String("ip", clientIP),
				zap.Duration("retry_after", retryAfter),
			)
			if metrics != nil {
				metrics.RecordRateLimitBlock(rule.Name)
			}
			abortWithMessage(c, http.StatusTooManyRequests, rule.Message)
			return
		}

		c.Next()
	}
}
