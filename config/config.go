package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	Log      LogConfig      `mapstructure:"log"`
	Team     TeamConfig     `mapstructure:"team"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	CORS           CORSConfig    `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	Timezone        string        `mapstructure:"timezone"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int           `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int           `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`       // 事务内行锁等待上限
	LogLevel        string        `mapstructure:"log_level"`          // gorm 日志级别 silent|error|warn|info
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	ResetTokenTTL   time.Duration `mapstructure:"reset_token_ttl"`
	ResetCodeTTL    time.Duration `mapstructure:"reset_code_ttl"`
	MinPasswordLen  int           `mapstructure:"min_password_len"`
}

// MailConfig SMTP 邮件配置
type MailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled SMTP 未配置主机时不发信，仅记录日志
func (c *MailConfig) Enabled() bool { return c.SMTPHost != "" }

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TeamConfig 课程组队规则
type TeamConfig struct {
	MinCapacity     int `mapstructure:"min_capacity"`
	MaxCapacity     int `mapstructure:"max_capacity"`
	DefaultCapacity int `mapstructure:"default_capacity"`
}

// RealtimeConfig 实时通知频道配置（Redis Pub/Sub）
type RealtimeConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	BroadcastChannel string `mapstructure:"broadcast_channel"`
	PrincipalPrefix  string `mapstructure:"principal_prefix"`
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > .env（非生产） > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	loadDotEnv()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.max_body_bytes", 2<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "beswd")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟
	v.SetDefault("db.lock_timeout", "3s")
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "") // 仅用于让 AutomaticEnv 识别该键
	v.SetDefault("auth.access_token_ttl", "1h")
	v.SetDefault("auth.refresh_token_ttl", "168h")
	v.SetDefault("auth.reset_token_ttl", "10m")
	v.SetDefault("auth.reset_code_ttl", "10m")
	v.SetDefault("auth.min_password_len", 5)

	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@beswd.local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("team.min_capacity", 2)
	v.SetDefault("team.max_capacity", 10)
	v.SetDefault("team.default_capacity", 5)

	v.SetDefault("realtime.enabled", true)
	v.SetDefault("realtime.broadcast_channel", "realtime:broadcast")
	v.SetDefault("realtime.principal_prefix", "realtime:principal:")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("BESWD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv 非生产环境下读取 .env，文件不存在时忽略
func loadDotEnv() {
	if os.Getenv("BESWD_ENV") == "production" {
		return
	}
	_ = godotenv.Load(".env")
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Team.MinCapacity < 1 {
		return fmt.Errorf("配置校验失败: team.min_capacity 必须大于 0")
	}
	if c.Team.MaxCapacity < c.Team.MinCapacity {
		return fmt.Errorf("配置校验失败: team.max_capacity 不能小于 team.min_capacity")
	}
	if c.Team.DefaultCapacity < c.Team.MinCapacity || c.Team.DefaultCapacity > c.Team.MaxCapacity {
		return fmt.Errorf("配置校验失败: team.default_capacity 必须在 min/max 之间")
	}
	if c.Database.LockTimeout <= 0 {
		return fmt.Errorf("配置校验失败: db.lock_timeout 必须大于 0")
	}
	return nil
}
