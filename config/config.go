package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Token 编码方案
const (
	EncodingBase64URL = "base64url"
	EncodingBase64    = "base64"
	EncodingHex       = "hex"
)

// 撤销策略
const (
	RevocationSoft = "soft"
	RevocationHard = "hard"
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// Token 配置
	TokenRounds      int    `mapstructure:"token_rounds"`
	TokenPrefix      string `mapstructure:"token_prefix"`
	TokenEncoding    string `mapstructure:"token_encoding"`
	TokenHashEnabled bool   `mapstructure:"token_hash_enabled"`
	TokenHashDriver  string `mapstructure:"token_hash_driver"`

	// 会话生命周期配置
	LifetimeExpiresIn     int           `mapstructure:"lifetime_expires_in"` // 分钟
	LifetimePruneInterval time.Duration `mapstructure:"lifetime_prune_interval"`

	// 请求头名称配置
	HeaderDeviceType        string `mapstructure:"header_device_type"`
	HeaderAppVersion        string `mapstructure:"header_app_version"`
	HeaderOSVersion         string `mapstructure:"header_os_version"`
	HeaderDeviceFingerprint string `mapstructure:"header_device_fingerprint"`

	// 设备属性跟踪开关
	TrackIP                bool `mapstructure:"track_ip"`
	TrackUserAgent         bool `mapstructure:"track_user_agent"`
	TrackAppVersion        bool `mapstructure:"track_app_version"`
	TrackOSVersion         bool `mapstructure:"track_os_version"`
	TrackDeviceType        bool `mapstructure:"track_device_type"`
	TrackDeviceFingerprint bool `mapstructure:"track_device_fingerprint"`
	TrackUpdateExisting    bool `mapstructure:"track_update_existing"`

	// 撤销策略: soft 保留行做审计, hard 直接删除
	Revocation string `mapstructure:"revocation"`

	// 缓存配置（可选的 token 查找加速）
	CacheType          string `mapstructure:"cache_type"` // none | memory | redis
	CacheRedisAddr     string `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string `mapstructure:"cache_redis_password"`
	CacheRedisDB       int    `mapstructure:"cache_redis_db"`
	CacheTokenTTL      int    `mapstructure:"cache_token_ttl"` // 秒

	// 限流配置
	RateLimitAuthRPS    float64       `mapstructure:"rate_limit_auth_rps"`
	RateLimitAuthBurst  int           `mapstructure:"rate_limit_auth_burst"`
	RateLimitExpireTime time.Duration `mapstructure:"rate_limit_expire_time"`

	// 哈希模式下 token 扫描的批大小与并发度
	ScanBatchSize   int `mapstructure:"scan_batch_size"`
	ScanConcurrency int `mapstructure:"scan_concurrency"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: .env file not found, using defaults and environment variables")
	} else {
		fmt.Fprintln(os.Stderr, "Info: Loaded configuration from .env file")
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	Normalize(&globalConfig)
}

// Normalize 修正越界或未知的配置值
func Normalize(cfg *Config) {
	switch cfg.TokenEncoding {
	case EncodingBase64URL, EncodingBase64, EncodingHex:
	default:
		// 未知编码方案回退到默认值而不是中止，保证可用性
		fmt.Fprintf(os.Stderr, "Warning: unknown token encoding %q, falling back to %s\n",
			cfg.TokenEncoding, EncodingBase64URL)
		cfg.TokenEncoding = EncodingBase64URL
	}

	switch cfg.Revocation {
	case RevocationSoft, RevocationHard:
	default:
		fmt.Fprintf(os.Stderr, "Warning: unknown revocation policy %q, falling back to %s\n",
			cfg.Revocation, RevocationSoft)
		cfg.Revocation = RevocationSoft
	}

	if cfg.TokenRounds <= 0 {
		cfg.TokenRounds = 16
	}
	if cfg.ScanBatchSize <= 0 {
		cfg.ScanBatchSize = 200
	}
	if cfg.ScanConcurrency <= 0 {
		cfg.ScanConcurrency = 4
	}
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "30s")
	viper.SetDefault("server_idle_timeout", "120s")

	// 数据库配置默认值
	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "cerberus")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_max_open_conns", 100)
	viper.SetDefault("db_max_idle_conns", 25)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	// Token 配置默认值
	viper.SetDefault("token_rounds", 16)
	viper.SetDefault("token_prefix", "cerberus")
	viper.SetDefault("token_encoding", EncodingBase64URL)
	viper.SetDefault("token_hash_enabled", true)
	viper.SetDefault("token_hash_driver", "argon2id")

	// 会话生命周期默认值
	viper.SetDefault("lifetime_expires_in", 60*24*7) // 7 天
	viper.SetDefault("lifetime_prune_interval", "1h")

	// 请求头名称默认值
	viper.SetDefault("header_device_type", "X-Device-Type")
	viper.SetDefault("header_app_version", "X-App-Version")
	viper.SetDefault("header_os_version", "X-OS-Version")
	viper.SetDefault("header_device_fingerprint", "X-Device-Fingerprint")

	// 跟踪开关默认值
	viper.SetDefault("track_ip", true)
	viper.SetDefault("track_user_agent", true)
	viper.SetDefault("track_app_version", true)
	viper.SetDefault("track_os_version", true)
	viper.SetDefault("track_device_type", true)
	viper.SetDefault("track_device_fingerprint", true)
	viper.SetDefault("track_update_existing", false)

	// 撤销策略默认值
	viper.SetDefault("revocation", RevocationSoft)

	// 缓存配置默认值
	viper.SetDefault("cache_type", "none")
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)
	viper.SetDefault("cache_token_ttl", 300)

	// 限流配置默认值
	viper.SetDefault("rate_limit_auth_rps", 0.5)
	viper.SetDefault("rate_limit_auth_burst", 5)
	viper.SetDefault("rate_limit_expire_time", "10m")

	// 扫描配置默认值
	viper.SetDefault("scan_batch_size", 200)
	viper.SetDefault("scan_concurrency", 4)
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// SessionLifetime 返回会话有效期
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.LifetimeExpiresIn) * time.Minute
}

// TokenCacheTTL 返回 token 查找缓存的有效期
func (c *Config) TokenCacheTTL() time.Duration {
	return time.Duration(c.CacheTokenTTL) * time.Second
}

// PruneInterval 返回后台会话清理的执行间隔，0 表示禁用
func (c *Config) PruneInterval() time.Duration {
	return c.LifetimePruneInterval
}
