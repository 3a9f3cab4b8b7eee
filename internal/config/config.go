// Package config loads process configuration from the environment,
// adapted in place from common/config: same
// section shape (service/database/cache/queue/telemetry) and the same
// getEnv*/Validate pattern, trimmed to the sections this engine's
// composition root (cmd/flowengine) actually wires up.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all process configuration for cmd/flowengine.
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Queue     QueueConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig
	Mail      MailConfig
}

type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

type QueueConfig struct {
	// Type selects the internal/queue backend: "memory" (default, a
	// single-process pub/sub fan-out) or "redis" (cross-process, via
	// Redis streams — matches cmd/workflow-runner's coordinator/worker split).
	Type string
}

type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

type RateLimitConfig struct {
	Enabled       bool
	Limit         int64
	WindowSeconds int
}

// MailConfig configures the transport/mail SMTP sender and IMAP poller.
// PollBoardID names the single board the poller triggers on each unseen
// message -- the mail transport, unlike transport/http and
// transport/chat, is scoped to one mailbox-to-board pairing per process
// rather than a multi-tenant route table.
type MailConfig struct {
	Enabled      bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPMailbox  string
	PollInterval time.Duration
	PollBoardID  string
}

// Load reads configuration from the environment, applying the same
// defaults this stack's services boot with in development.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "flowengine"),
			User:        getEnv("POSTGRES_USER", "flowengine"),
			Password:    getEnv("POSTGRES_PASSWORD", "flowengine"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Queue: QueueConfig{
			Type: getEnv("QUEUE_TYPE", "memory"),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", true),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvBool("RATE_LIMIT_ENABLED", true),
			Limit:         int64(getEnvInt("RATE_LIMIT_PER_MINUTE", 100)),
			WindowSeconds: 60,
		},
		Mail: MailConfig{
			Enabled:      getEnvBool("MAIL_ENABLED", false),
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", "flowengine@localhost"),
			IMAPHost:     getEnv("IMAP_HOST", "localhost"),
			IMAPPort:     getEnvInt("IMAP_PORT", 993),
			IMAPUsername: getEnv("IMAP_USERNAME", ""),
			IMAPPassword: getEnv("IMAP_PASSWORD", ""),
			IMAPMailbox:  getEnv("IMAP_MAILBOX", "INBOX"),
			PollInterval: getEnvDuration("MAIL_POLL_INTERVAL", 30*time.Second),
			PollBoardID:  getEnv("MAIL_POLL_BOARD_ID", ""),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects an obviously broken configuration before it reaches
// the composition root.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("config: invalid port: %d", c.Service.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("config: database host is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("config: max_conns must be >= min_conns")
	}
	if c.Queue.Type != "memory" && c.Queue.Type != "redis" {
		return fmt.Errorf("config: unknown queue type %q", c.Queue.Type)
	}
	if c.Mail.Enabled && c.Mail.PollBoardID != "" && c.Mail.PollInterval <= 0 {
		return fmt.Errorf("config: mail poll interval must be positive when polling is configured")
	}
	return nil
}

// DatabaseURL returns the Postgres connection string for pgxpool.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}
