package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
	Query    QueryConfig    `json:"query"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env      string `json:"env"`       // 运行环境: local / prod
	LogLevel string `json:"log_level"` // 日志级别: debug / info / warn / error
	HTTPAddr string `json:"http_addr"` // API 服务监听地址
}

// DatabaseConfig 数据库配置。Driver 为 mysql、postgres 或 sqlite。
type DatabaseConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// RedisConfig Redis 配置（验证码限流与令牌注销）。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// EmailConfig 邮件配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"` // JWT 签名密钥
	TokenTTL  time.Duration `json:"token_ttl"`  // 令牌有效期
	OTPTTL    time.Duration `json:"otp_ttl"`    // 验证码有效期
	OTPRate   float64       `json:"otp_rate"`   // 每个邮箱的验证码发送速率（token/s）
	OTPBurst  float64       `json:"otp_burst"`  // 发送桶容量
}

// QueryConfig 列表查询分页配置。
type QueryConfig struct {
	DefaultLimit int `json:"default_limit"`
	MaxLimit     int `json:"max_limit"`
}

// Load 从 JSON 文件加载配置。
//
// 读取顺序: .env（若存在）→ JSON 文件 → 默认值 → 环境变量覆盖。
// configPath 为空时使用 "configs/config.json"，文件不存在时使用默认配置。
func Load(configPath ...string) (*Config, error) {
	_ = godotenv.Load()

	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		// 即使没有配置文件，也允许环境变量覆盖默认值
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:      "local",
			LogLevel: "info",
			HTTPAddr: ":5000",
		},
		Database: DatabaseConfig{
			Driver: "mysql",
			DSN:    "root:password@tcp(localhost:3306)/astromissions?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Email: EmailConfig{
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
			FromName: "Space Exploration",
		},
		Security: SecurityConfig{
			JWTSecret: "dev_secret_change_me",
			TokenTTL:  time.Hour,
			OTPTTL:    10 * time.Minute,
			OTPRate:   1.0 / 60,
			OTPBurst:  3,
		},
		Query: QueryConfig{
			DefaultLimit: 25,
			MaxLimit:     100,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaults.Database.Driver
	}
	cfg.Database.Driver = canonicalDriver(cfg.Database.Driver)
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = defaultDSN(cfg.Database.Driver)
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = defaults.Email.FromName
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Security.TokenTTL == 0 {
		cfg.Security.TokenTTL = defaults.Security.TokenTTL
	}
	if cfg.Security.OTPTTL == 0 {
		cfg.Security.OTPTTL = defaults.Security.OTPTTL
	}
	if cfg.Security.OTPRate == 0 {
		cfg.Security.OTPRate = defaults.Security.OTPRate
	}
	if cfg.Security.OTPBurst == 0 {
		cfg.Security.OTPBurst = defaults.Security.OTPBurst
	}
	if cfg.Query.DefaultLimit <= 0 {
		cfg.Query.DefaultLimit = defaults.Query.DefaultLimit
	}
	if cfg.Query.MaxLimit <= 0 {
		cfg.Query.MaxLimit = defaults.Query.MaxLimit
	}
	if cfg.Query.DefaultLimit > cfg.Query.MaxLimit {
		cfg.Query.DefaultLimit = cfg.Query.MaxLimit
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("db_host", "DB_HOST")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS", "EMAIL_PASS")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.App.HTTPAddr = ":" + v
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Security.TokenTTL = d
		}
	}
	if v := os.Getenv("OTP_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Security.OTPTTL = d
		}
	}
	if v := os.Getenv("OTP_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Security.OTPRate = f
		}
	}
	if v := os.Getenv("OTP_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Security.OTPBurst = f
		}
	}

	if v := os.Getenv("QUERY_DEFAULT_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.Query.DefaultLimit = i
		}
	}
	if v := os.Getenv("QUERY_MAX_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			cfg.Query.MaxLimit = i
		}
	}

	// 切换驱动但未给 DB_DSN 时，旧驱动的 DSN 不能沿用
	if v := os.Getenv("DB_DRIVER"); v != "" {
		driver := canonicalDriver(v)
		if driver != canonicalDriver(cfg.Database.Driver) {
			cfg.Database.DSN = defaultDSN(driver)
		}
		cfg.Database.Driver = driver
	}
	dbParts := hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_host") != "" || viper.GetString("db_password") != ""
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.Database.DSN = v
	} else if cfg.Database.Driver == "postgres" && dbParts {
		cfg.Database.DSN = postgresDSN()
	} else if cfg.Database.Driver == "mysql" && dbParts {
		parsed := parseMySQLDSN(cfg.Database.DSN)
		if v := viper.GetString("db_host"); v != "" {
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = v + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.Database.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
	if v := os.Getenv("EMAIL_FROM_NAME"); v != "" {
		cfg.Email.FromName = v
	}
}

const (
	defaultPostgresDSN = "host=localhost user=postgres password=password dbname=astromissions port=5432 sslmode=disable"
	defaultSQLiteDSN   = "astromissions.db"
)

func canonicalDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "postgresql", "pg":
		return "postgres"
	case "sqlite3":
		return "sqlite"
	default:
		return d
	}
}

// defaultDSN 返回驱动对应的本地默认 DSN，未知驱动返回空串交由 store.Open 报错。
func defaultDSN(driver string) string {
	switch canonicalDriver(driver) {
	case "mysql":
		return getDefaultConfig().Database.DSN
	case "postgres":
		return defaultPostgresDSN
	case "sqlite":
		return defaultSQLiteDSN
	default:
		return ""
	}
}

// postgresDSN 由 DB_* 环境变量拼出 key=value 形式的 DSN，缺省项取本地默认值。
func postgresDSN() string {
	host := "localhost"
	if v := viper.GetString("db_host"); v != "" {
		host = v
	}
	password := "password"
	if v := viper.GetString("db_password"); v != "" {
		password = v
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		host,
		getenvDefault("DB_USER", "", "postgres"),
		password,
		getenvDefault("DB_NAME", "", "astromissions"),
		getenvDefault("DB_PORT", "", "5432"),
	)
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := &mysql.Config{
		User:   "root",
		Net:    "tcp",
		Addr:   "localhost:3306",
		DBName: "astromissions",
		Params: map[string]string{
			"parseTime": "true",
			"loc":       "Local",
		},
	}
	if dsn == "" {
		return fallback
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback
	}
	return parsed
}

// UnmarshalJSON 支持 "1h"、"10m" 这类时长字符串。
func (s *SecurityConfig) UnmarshalJSON(data []byte) error {
	type Alias SecurityConfig
	aux := &struct {
		TokenTTL string `json:"token_ttl"`
		OTPTTL   string `json:"otp_ttl"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TokenTTL != "" {
		d, err := time.ParseDuration(aux.TokenTTL)
		if err != nil {
			return fmt.Errorf("invalid token_ttl format: %w", err)
		}
		s.TokenTTL = d
	}
	if aux.OTPTTL != "" {
		d, err := time.ParseDuration(aux.OTPTTL)
		if err != nil {
			return fmt.Errorf("invalid otp_ttl format: %w", err)
		}
		s.OTPTTL = d
	}
	return nil
}
