package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mailrelay/backend/internal/domain"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host           string   // 监听地址，默认 "0.0.0.0"
	Port           int      // 监听端口，默认 3313
	TrustedProxies []string // 受信任的反向代理，用于解析客户端真实 IP
	MaxBodyBytes   int64    // 请求体大小上限
}

// MailConfig 定义上游 SMTP 发信配置
type MailConfig struct {
	Host               string        // SMTP 服务器地址
	Port               int           // SMTP 端口，465 默认使用隐式 TLS
	Username           string        // 认证用户名，留空时使用发件人地址
	Password           string        // 认证密码
	TLS                bool          // 是否使用隐式 TLS
	InsecureSkipVerify bool          // 跳过证书校验（仅测试环境）
	SenderName         string        // 发件人显示名
	SenderAddress      string        // 发件人地址
	ReplyTo            string        // 固定的回复地址
	SendTimeout        time.Duration // 单次发送超时
	MaxPerSecond       float64       // 每秒最多发送数，<=0 表示不限制
	Burst              int           // 令牌桶突发容量
	ContentFilter      bool          // 投递前过滤脚本和垃圾内容
	BlockedKeywords    []string      // 追加的垃圾关键词
}

// AccessConfig 定义访问控制白名单
type AccessConfig struct {
	AllowedIPs     []string // 允许调用的客户端 IP
	AllowedOrigins []string // 允许调用的 Origin
}

// RateLimitRule 单个固定窗口限流规则
type RateLimitRule struct {
	Max     int64
	Window  time.Duration
	Message string
}

// RateLimitConfig 定义限流配置
type RateLimitConfig struct {
	Store  string        // "memory" 或 "redis"
	Global RateLimitRule // 全局限流
	Mail   RateLimitRule // 发信接口限流
}

// RedisConfig 定义 Redis 服务配置（共享限流计数时使用）
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
	Prefix   string // 限流键前缀
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// SinkConfig 定义开发用的本地 SMTP 收信器
type SinkConfig struct {
	BindAddr string // 监听地址，留空表示不启动
	Domain   string // EHLO 响应中使用的域名
}

// Config 是系统核心配置的根结构体
type Config struct {
	Mode      domain.Mode
	Server    ServerConfig
	Mail      MailConfig
	Access    AccessConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Sink      SinkConfig
}

// legacyEnv 早期部署使用的环境变量名，作为 MAILRELAY_* 之后的备选
var legacyEnv = map[string]string{
	"mode":                   "ENVIRONMENT",
	"mail.sender_address":    "EMAIL",
	"mail.password":          "EMAIL_PASSWORD",
	"mail.host":              "EMAIL_HOST",
	"mail.port":              "EMAIL_PORT",
	"mail.username":          "EMAIL_USER",
	"access.allowed_ips":     "ALLOWED_IPS",
	"access.allowed_origins": "ALLOWED_ORIGINS",
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. MAILRELAY_ 前缀的环境变量
//  2. 旧版环境变量（ENVIRONMENT、EMAIL、EMAIL_HOST 等）
//  3. .env 文件（如果存在）
//  4. 默认值
func Load() (*Config, error) {
	loadEnvFile()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("mailrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		_ = v.BindEnv(key, "MAILRELAY_"+strings.ToUpper(strings.NewReplacer(".", "_").Replace(key)), env)
	}

	v.SetDefault("mode", string(domain.ModeTest))
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3313)
	v.SetDefault("server.trusted_proxies", "127.0.0.1,::1")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.sender_name", "Arbeit Mail Hizmeti")
	v.SetDefault("mail.reply_to", "noreply@arbeit.studio")
	v.SetDefault("mail.send_timeout", "15s")
	v.SetDefault("mail.max_per_second", 5)
	v.SetDefault("mail.burst", 5)
	v.SetDefault("mail.content_filter", false)
	v.SetDefault("ratelimit.store", "memory")
	v.SetDefault("ratelimit.global.max", 10)
	v.SetDefault("ratelimit.global.window", "1m")
	v.SetDefault("ratelimit.global.message", "Too many requests, please try again later.")
	v.SetDefault("ratelimit.mail.max", 1)
	v.SetDefault("ratelimit.mail.window", "1m")
	v.SetDefault("ratelimit.mail.message", "Please wait at least 1 minute before sending another request!")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "mailrelay:ratelimit:")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("sink.domain", "localhost")

	mode := domain.ParseMode(v.GetString("mode"))

	sendTimeout, err := time.ParseDuration(v.GetString("mail.send_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid mail.send_timeout: %w", err)
	}
	if sendTimeout <= 0 {
		return nil, fmt.Errorf("mail.send_timeout must be positive")
	}

	globalRule, err := loadRule(v, "ratelimit.global")
	if err != nil {
		return nil, err
	}
	mailRule, err := loadRule(v, "ratelimit.mail")
	if err != nil {
		return nil, err
	}

	store := strings.ToLower(v.GetString("ratelimit.store"))
	if store != "memory" && store != "redis" {
		return nil, fmt.Errorf("invalid ratelimit.store %q: must be memory or redis", store)
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	port := v.GetInt("mail.port")

	cfg := &Config{
		Mode: mode,
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			TrustedProxies: parseList(v.GetString("server.trusted_proxies")),
			MaxBodyBytes:   v.GetInt64("server.max_body_bytes"),
		},
		Mail: MailConfig{
			Host:               v.GetString("mail.host"),
			Port:               port,
			Username:           v.GetString("mail.username"),
			Password:           v.GetString("mail.password"),
			TLS:                v.GetBool("mail.tls") || port == 465,
			InsecureSkipVerify: v.GetBool("mail.insecure_skip_verify"),
			SenderName:         v.GetString("mail.sender_name"),
			SenderAddress:      v.GetString("mail.sender_address"),
			ReplyTo:            v.GetString("mail.reply_to"),
			SendTimeout:        sendTimeout,
			MaxPerSecond:       v.GetFloat64("mail.max_per_second"),
			Burst:              v.GetInt("mail.burst"),
			ContentFilter:      v.GetBool("mail.content_filter"),
			BlockedKeywords:    parseList(v.GetString("mail.blocked_keywords")),
		},
		Access: AccessConfig{
			AllowedIPs:     parseList(v.GetString("access.allowed_ips")),
			AllowedOrigins: parseList(v.GetString("access.allowed_origins")),
		},
		RateLimit: RateLimitConfig{
			Store:  store,
			Global: globalRule,
			Mail:   mailRule,
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Prefix:   v.GetString("redis.prefix"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Sink: SinkConfig{
			BindAddr: v.GetString("sink.bind_addr"),
			Domain:   v.GetString("sink.domain"),
		},
	}

	if cfg.Mail.Username == "" {
		cfg.Mail.Username = cfg.Mail.SenderAddress
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate 检查各模式下必须提供的配置
func (c *Config) validate() error {
	if c.Mode.Delivers() {
		if c.Mail.Host == "" {
			return fmt.Errorf("mail.host is required in %s mode (EMAIL_HOST)", c.Mode)
		}
		if c.Mail.SenderAddress == "" {
			return fmt.Errorf("mail.sender_address is required in %s mode (EMAIL)", c.Mode)
		}
		if err := domain.ValidateEmail(c.Mail.SenderAddress); err != nil {
			return fmt.Errorf("invalid mail.sender_address: %w", err)
		}
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("invalid mail.port %d", c.Mail.Port)
	}
	if c.Mode.IsProduction() && c.Sink.BindAddr != "" {
		return fmt.Errorf("sink.bind_addr must not be set in %s mode", c.Mode)
	}
	return nil
}

// loadRule 读取 prefix.max / prefix.window / prefix.message
func loadRule(v *viper.Viper, prefix string) (RateLimitRule, error) {
	window, err := time.ParseDuration(v.GetString(prefix + ".window"))
	if err != nil {
		return RateLimitRule{}, fmt.Errorf("invalid %s.window: %w", prefix, err)
	}
	limit := v.GetInt64(prefix + ".max")
	if limit <= 0 || window <= 0 {
		return RateLimitRule{}, fmt.Errorf("%s requires positive max and window", prefix)
	}
	if window < time.Millisecond {
		return RateLimitRule{}, fmt.Errorf("%s.window must be at least 1ms", prefix)
	}
	return RateLimitRule{
		Max:     limit,
		Window:  window,
		Message: v.GetString(prefix + ".message"),
	}, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
