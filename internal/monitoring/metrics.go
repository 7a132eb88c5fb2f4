package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mailrelay"

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 发信指标
	MailTotal        *prometheus.CounterVec
	MailSendDuration *prometheus.HistogramVec

	// 访问控制与限流
	AccessDenied    prometheus.Counter
	RateLimitBlocks *prometheus.CounterVec
	RateLimitErrors *prometheus.CounterVec

	// 开发收信器
	SinkMessages prometheus.Counter

	PanicsTotal  prometheus.Counter
	SystemUptime prometheus.GaugeFunc
}

// NewMetrics 在给定注册表上创建监控指标，reg 为 nil 时新建一个
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)
	started := time.Now()

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MailTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mail_total",
				Help:      "Mail requests by mode and outcome (sent, failed, logged, invalid)",
			},
			[]string{"mode", "outcome"},
		),

		MailSendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mail_send_duration_seconds",
				Help:      "Time spent handing a message to the upstream SMTP server",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"mode", "outcome"},
		),

		AccessDenied: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_denied_total",
				Help:      "Requests rejected by the IP/origin allow-list",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_blocks_total",
				Help:      "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),

		RateLimitErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_store_errors_total",
				Help:      "Rate limit store failures (request allowed through)",
			},
			[]string{"limiter"},
		),

		SinkMessages: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_messages_total",
				Help:      "Messages accepted by the development SMTP sink",
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "panics_total",
				Help:      "Total number of recovered panics",
			},
		),

		SystemUptime: factory.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Seconds since the process started serving",
			},
			func() float64 { return time.Since(started).Seconds() },
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMail 记录一次发信结果，只有真正调用了传输层才记录耗时
func (m *Metrics) RecordMail(mode, outcome string, duration time.Duration) {
	m.MailTotal.WithLabelValues(mode, outcome).Inc()
	if outcome == "sent" || outcome == "failed" {
		m.MailSendDuration.WithLabelValues(mode, outcome).Observe(duration.Seconds())
	}
}

// RecordAccessDenied 记录访问控制拒绝
func (m *Metrics) RecordAccessDenied() {
	m.AccessDenied.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limiter string) {
	m.RateLimitBlocks.WithLabelValues(limiter).Inc()
}

// RecordRateLimitError 记录限流存储故障
func (m *Metrics) RecordRateLimitError(limiter string) {
	m.RateLimitErrors.WithLabelValues(limiter).Inc()
}

// RecordSinkMessage 记录收信器收到的邮件
func (m *Metrics) RecordSinkMessage() {
	m.SinkMessages.Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
