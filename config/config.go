package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Mail         MailConfig
	Verification VerificationConfig
	Notification NotificationConfig
	Redis        RedisConfig
	S3           S3Config
	Scheduler    SchedulerConfig
	VIES         VIESConfig
	Admin        AdminConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// MailConfig SMTP settings. Empty Username puts the mailer in dev mode (log only).
type MailConfig struct {
	Host          string
	Port          string
	Username      string
	Password      string
	DefaultSender string
	SendsPerSec   float64
	Burst         int
	FrontendURL   string
}

// VerificationConfig rule inputs for the B2B verification evaluator
type VerificationConfig struct {
	AllowedCountries []string
	BlockedCountries []string
	RequireDocuments bool
}

// NotificationConfig dispatcher queue and retry policy
type NotificationConfig struct {
	Workers          int
	QueueSize        int
	MaxRetries       int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	CriticalStreak   int
	UseRedisTracking bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

// SchedulerConfig cron specs for background verification jobs
type SchedulerConfig struct {
	Enabled          bool
	RecheckSpec      string
	PendingSweepSpec string
	PendingAfter     time.Duration
	StaleReviewAfter time.Duration
	RecheckAfter     time.Duration
	BatchSize        int
	VIESConcurrency  int
}

type VIESConfig struct {
	BaseURL string
	Timeout time.Duration
	Enabled bool
}

// AdminConfig bootstrap account created by migrations when set
type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "smartshop"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Mail: MailConfig{
			Host:          getEnv("MAIL_SERVER", "smtp.gmail.com"),
			Port:          getEnv("MAIL_PORT", "587"),
			Username:      getEnv("MAIL_USERNAME", ""),
			Password:      getEnv("MAIL_PASSWORD", ""),
			DefaultSender: getEnv("MAIL_DEFAULT_SENDER", "noreply@smartshop.com"),
			SendsPerSec:   parseFloat(getEnv("MAIL_SENDS_PER_SEC", "5"), 5),
			Burst:         parseInt(getEnv("MAIL_BURST", "10"), 10),
			FrontendURL:   getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Verification: VerificationConfig{
			AllowedCountries: parseSlice(getEnv("B2B_ALLOWED_COUNTRIES",
				"AT,BE,BG,CY,CZ,DE,DK,EE,GR,ES,FI,FR,HR,HU,IE,IT,LT,LU,LV,MT,NL,PL,PT,RO,SE,SI,SK,UA")),
			BlockedCountries: parseSlice(getEnv("B2B_BLOCKED_COUNTRIES", "RU,BY,KP,IR")),
			RequireDocuments: parseBool(getEnv("B2B_REQUIRE_DOCUMENTS", "true"), true),
		},
		Notification: NotificationConfig{
			Workers:          parseInt(getEnv("NOTIFY_WORKERS", "2"), 2),
			QueueSize:        parseInt(getEnv("NOTIFY_QUEUE_SIZE", "256"), 256),
			MaxRetries:       parseInt(getEnv("NOTIFY_MAX_RETRIES", "2"), 2),
			InitialBackoff:   parseDuration(getEnv("NOTIFY_INITIAL_BACKOFF", "2s"), 2*time.Second),
			MaxBackoff:       parseDuration(getEnv("NOTIFY_MAX_BACKOFF", "30s"), 30*time.Second),
			CriticalStreak:   parseInt(getEnv("NOTIFY_CRITICAL_STREAK", "3"), 3),
			UseRedisTracking: parseBool(getEnv("NOTIFY_REDIS_TRACKING", "false"), false),
		},
		Redis: RedisConfig{
			Enabled:  parseBool(getEnv("REDIS_ENABLED", "false"), false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "eu-central-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "smartshop-documents"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:          parseBool(getEnv("SCHEDULER_ENABLED", "true"), true),
			RecheckSpec:      getEnv("SCHEDULER_RECHECK_SPEC", "0 3 * * *"),
			PendingSweepSpec: getEnv("SCHEDULER_PENDING_SWEEP_SPEC", "*/15 * * * *"),
			PendingAfter:     parseDuration(getEnv("SCHEDULER_PENDING_AFTER", "10m"), 10*time.Minute),
			StaleReviewAfter: parseDuration(getEnv("SCHEDULER_STALE_REVIEW_AFTER", "72h"), 72*time.Hour),
			RecheckAfter:     parseDuration(getEnv("SCHEDULER_RECHECK_AFTER", "720h"), 720*time.Hour),
			BatchSize:        parseInt(getEnv("SCHEDULER_BATCH_SIZE", "100"), 100),
			VIESConcurrency:  parseInt(getEnv("SCHEDULER_VIES_CONCURRENCY", "4"), 4),
		},
		VIES: VIESConfig{
			BaseURL: getEnv("VIES_BASE_URL", "https://ec.europa.eu/taxation_customs/vies/rest-api"),
			Timeout: parseDuration(getEnv("VIES_TIMEOUT", "30s"), 30*time.Second),
			Enabled: parseBool(getEnv("VAT_CHECK_ENABLED", "true"), true),
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Name:     getEnv("ADMIN_NAME", "Administrator"),
		},
	}

	if config.Server.Environment == "production" && config.JWT.Secret == "your-secret-key" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("Invalid number %s, using default %v", s, fallback)
		return fallback
	}
	return f
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
