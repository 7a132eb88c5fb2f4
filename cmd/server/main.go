package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/domain"
	"mailrelay/backend/internal/health"
	"mailrelay/backend/internal/logger"
	"mailrelay/backend/internal/mailer"
	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/ratelimit"
	"mailrelay/backend/internal/security"
	"mailrelay/backend/internal/service"
	"mailrelay/backend/internal/smtp"
	redisstore "mailrelay/backend/internal/storage/redis"
	httptransport "mailrelay/backend/internal/transport/http"
)

const version = "1.2.0"

// main 启动发信中继 HTTP 服务，非生产模式下可同时启动本地收信器。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
		Service:     "mailrelay",
		Mode:        cfg.Mode.String(),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting mailrelay server",
		zap.String("version", version),
		zap.String("mode", cfg.Mode.String()),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// 初始化监控系统
	metrics := monitoring.NewMetrics(nil)
	healthOpts := []health.Option{}
	if cfg.Mode.Delivers() {
		healthOpts = append(healthOpts, health.WithSMTP(cfg.Mail.Host, cfg.Mail.Port, 3*time.Second))
	}

	// 初始化限流存储
	var store ratelimit.Store
	switch cfg.RateLimit.Store {
	case "redis":
		client, err := redisstore.New(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal("failed to initialize redis rate limit store", zap.Error(err))
		}
		defer func() { _ = client.Close() }()

		store = ratelimit.NewRedisStore(client.Client(), cfg.Redis.Prefix)
		healthOpts = append(healthOpts, health.WithRedis(client, 2*time.Second))
		log.Info("using redis rate limit store", zap.String("address", cfg.Redis.Address))
	default:
		memStore := ratelimit.NewMemoryStore()
		store = memStore
		group.Go(func() error {
			memStore.StartCleanup(groupCtx, time.Minute)
			return nil
		})
		log.Info("using memory rate limit store")
	}

	healthChecker := health.NewHealthChecker(log, healthOpts...)

	globalLimiter := ratelimit.NewLimiter(ruleFrom("global", cfg.RateLimit.Global), store)
	mailLimiter := ratelimit.NewLimiter(ruleFrom("mail", cfg.RateLimit.Mail), store)

	// 初始化发信传输层
	smtpTransport := mailer.NewSMTPTransport(cfg.Mail, log)
	transport := mailer.NewThrottled(smtpTransport, cfg.Mail.MaxPerSecond, cfg.Mail.Burst)
	if cfg.Mode.Delivers() {
		log.Info("mail transport configured",
			zap.String("host", smtpTransport.Host()),
			zap.Int("port", smtpTransport.Port()),
			zap.Bool("tls", cfg.Mail.TLS),
			zap.String("sender", cfg.Mail.SenderAddress),
		)
	}

	var filter service.ContentChecker
	if cfg.Mail.ContentFilter {
		filter = security.NewContentFilter(cfg.Mail.BlockedKeywords...)
		log.Info("outbound content filter enabled", zap.Int("extra_keywords", len(cfg.Mail.BlockedKeywords)))
	}

	relay := service.NewRelayService(service.RelayConfig{
		Mode: cfg.Mode,
		Sender: domain.Sender{
			Name:    cfg.Mail.SenderName,
			Address: cfg.Mail.SenderAddress,
			ReplyTo: cfg.Mail.ReplyTo,
		},
		SendTimeout: cfg.Mail.SendTimeout,
		Filter:      filter,
	}, transport, log, metrics)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		Relay:         relay,
		GlobalLimiter: globalLimiter,
		MailLimiter:   mailLimiter,
		Metrics:       metrics,
		Health:        healthChecker,
		Logger:        log,
		Version:       version,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// 写超时需覆盖一次完整的上游发送
		WriteTimeout: cfg.Mail.SendTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 本地收信器 goroutine（仅非生产模式）
	var sinkServer *smtp.Server
	if cfg.Sink.BindAddr != "" && !cfg.Mode.IsProduction() {
		sinkBackend := smtp.NewBackend(
			smtp.WithLogger(log.Named("sink")),
			smtp.WithConnectionLimiter(smtp.NewConnectionLimiter(20, 10)),
			smtp.WithOnMessage(func(*smtp.Message) { metrics.RecordSinkMessage() }),
		)
		sinkServer = smtp.NewServer(smtp.ServerConfig{
			Addr:   cfg.Sink.BindAddr,
			Domain: cfg.Sink.Domain,
		}, sinkBackend)

		group.Go(func() error {
			log.Info("starting SMTP sink",
				zap.String("address", cfg.Sink.BindAddr),
				zap.String("domain", cfg.Sink.Domain),
			)
			if err := sinkServer.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
				log.Error("SMTP sink error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Mail.SendTimeout+5*time.Second)
		defer cancel()

		// 等待进行中的发信请求完成
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if sinkServer != nil {
			if err := sinkServer.Close(); err != nil {
				log.Warn("SMTP sink close warning", zap.Error(err))
			}
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// ruleFrom 把配置中的限流规则转换为 ratelimit.Rule
func ruleFrom(name string, r config.RateLimitRule) ratelimit.Rule {
	return ratelimit.Rule{
		Name:    name,
		Max:     r.Max,
		Window:  r.Window,
		Message: r.Message,
	}
}
