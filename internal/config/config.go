package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Fetcher  FetcherConfig
	Tor      TorConfig
	Crawl    CrawlConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type FetcherConfig struct {
	BaseOrigin    string
	Referer       string
	PaceMin       time.Duration
	PaceMax       time.Duration
	CooldownMin   time.Duration
	CooldownMax   time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
	Timeout       time.Duration
	RotateOnBlock bool
	BotPhrases    []string
}

type TorConfig struct {
	Enabled     bool
	SocksAddr   string
	ControlAddr string
	Password    string
	SettleDelay time.Duration
}

type CrawlConfig struct {
	MaxAttempts  int
	BackoffStep  time.Duration
	BackoffMax   time.Duration
	SeenCacheLen int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Fetcher: FetcherConfig{
			BaseOrigin:    getEnvOrDefault("FETCHER_BASE_ORIGIN", "https://www.amazon.com"),
			Referer:       getEnvOrDefault("FETCHER_REFERER", "https://www.amazon.com/"),
			PaceMin:       getDurationOrDefault("FETCHER_PACE_MIN", 2500*time.Millisecond),
			PaceMax:       getDurationOrDefault("FETCHER_PACE_MAX", 5*time.Second),
			CooldownMin:   getDurationOrDefault("FETCHER_COOLDOWN_MIN", 8*time.Second),
			CooldownMax:   getDurationOrDefault("FETCHER_COOLDOWN_MAX", 15*time.Second),
			MaxRetries:    getIntOrDefault("FETCHER_MAX_RETRIES", 2),
			BackoffBase:   getDurationOrDefault("FETCHER_BACKOFF_BASE", 1500*time.Millisecond),
			Timeout:       getDurationOrDefault("FETCHER_TIMEOUT", 30*time.Second),
			RotateOnBlock: getBoolOrDefault("FETCHER_ROTATE_ON_BLOCK", true),
			BotPhrases:    getStringSliceOrDefault("FETCHER_BOT_PHRASES", nil),
		},
		Tor: TorConfig{
			Enabled:     getBoolOrDefault("TOR_ENABLED", false),
			SocksAddr:   getEnvOrDefault("TOR_SOCKS_ADDR", "127.0.0.1:9150"),
			ControlAddr: getEnvOrDefault("TOR_CONTROL_ADDR", "127.0.0.1:9151"),
			Password:    getEnvOrDefault("TOR_CONTROL_PASSWORD", ""),
			SettleDelay: getDurationOrDefault("TOR_SETTLE_DELAY", 3*time.Second),
		},
		Crawl: CrawlConfig{
			MaxAttempts:  getIntOrDefault("CRAWL_MAX_ATTEMPTS", 50),
			BackoffStep:  getDurationOrDefault("CRAWL_BACKOFF_STEP", 3*time.Second),
			BackoffMax:   getDurationOrDefault("CRAWL_BACKOFF_MAX", 30*time.Second),
			SeenCacheLen: getIntOrDefault("CRAWL_SEEN_CACHE_LEN", 4096),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "shopcrawler"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:crawl_tasks"),
			Group:    getEnvOrDefault("REDIS_GROUP", "crawlers"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Fetcher.PaceMin > c.Fetcher.PaceMax {
		return fmt.Errorf("FETCHER_PACE_MIN cannot be greater than FETCHER_PACE_MAX")
	}
	if c.Fetcher.CooldownMin > c.Fetcher.CooldownMax {
		return fmt.Errorf("FETCHER_COOLDOWN_MIN cannot be greater than FETCHER_COOLDOWN_MAX")
	}
	if c.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("FETCHER_MAX_RETRIES cannot be negative")
	}
	if c.Crawl.MaxAttempts < 1 {
		return fmt.Errorf("CRAWL_MAX_ATTEMPTS must be at least 1")
	}
	if c.Crawl.SeenCacheLen < 1 {
		return fmt.Errorf("CRAWL_SEEN_CACHE_LEN must be at least 1")
	}
	if !strings.HasPrefix(c.Fetcher.BaseOrigin, "http") {
		return fmt.Errorf("FETCHER_BASE_ORIGIN must be an absolute http(s) origin")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
