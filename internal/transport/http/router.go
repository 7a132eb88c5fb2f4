package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/health"
	"mailrelay/backend/internal/middleware"
	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/ratelimit"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	Relay         MailSender
	GlobalLimiter *ratelimit.Limiter
	MailLimiter   *ratelimit.Limiter
	Metrics       *monitoring.Metrics   // 可选
	Health        *health.HealthChecker // 可选
	Logger        *zap.Logger
	Version       string
}

// NewRouter 创建并返回 Gin 路由实例。
//
// /api/mail 依次经过全局限流、访问控制、发信限流，再进入处理器。
func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		logger.Warn("Invalid trusted proxies, falling back to none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, logger)
	router.Use(monitor.HTTPMetrics())
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(deps.Config.Server.MaxBodyBytes))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins: deps.Config.CORS.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{
			"Content-Length",
			"Retry-After",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
		},
		MaxAge: 12 * time.Hour,
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowAllOrigins = true
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	publicHandler := NewPublicHandler(deps.Version)
	mailHandler := NewMailHandler(deps.Relay, logger)

	accessFilter := middleware.AccessFilter(middleware.AccessConfig{
		Mode:           deps.Config.Mode,
		AllowedIPs:     deps.Config.Access.AllowedIPs,
		AllowedOrigins: deps.Config.Access.AllowedOrigins,
	}, logger, deps.Metrics)

	// 健康检查
	router.GET("/health", publicHandler.Health)
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	api := router.Group("/api")
	{
		api.GET("/hello", publicHandler.Hello)
		api.POST("/mail",
			middleware.RateLimit(deps.GlobalLimiter, logger, deps.Metrics),
			accessFilter,
			middleware.RateLimit(deps.MailLimiter, logger, deps.Metrics),
			mailHandler.SendMail,
		)
	}

	return router
}
