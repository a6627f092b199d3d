package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends.
const (
	SessionStoreDynamo = "dynamo"
	SessionStoreRedis  = "redis"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort    string
	AppEnv     string
	AppBaseURL string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SessionStore      string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	SessionSecret     string
	SessionTTL        time.Duration
	SessionCookieName string
	CookieSecure      bool

	OTPTTL        time.Duration
	ResetTokenTTL time.Duration
	BcryptCost    int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	MailTemplateBucket string
	SNSTopicARN        string

	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users    string
	Sessions string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	appEnv := getEnv("APP_ENV", "development")
	return &Config{
		AppPort:    getEnv("APP_PORT", "3000"),
		AppEnv:     appEnv,
		AppBaseURL: strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:    getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions: getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
		},

		SessionStore:      strings.ToLower(getEnv("SESSION_STORE", SessionStoreDynamo)),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionTTL:        time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "sid"),
		CookieSecure:      getEnvBool("COOKIE_SECURE", appEnv == "production"),

		OTPTTL:        time.Duration(getEnvInt("OTP_TTL_MINUTES", 10)) * time.Minute,
		ResetTokenTTL: time.Duration(getEnvInt("RESET_TOKEN_TTL_MINUTES", 10)) * time.Minute,
		BcryptCost:    getEnvInt("BCRYPT_COST", 12),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		MailTemplateBucket: getEnv("MAIL_TEMPLATE_BUCKET", ""),
		SNSTopicARN:        getEnv("SNS_TOPIC_ARN", ""),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ","),
	}
}

// IsDevelopment reports whether error detail may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Validate rejects configurations the server must not start with.
func (c *Config) Validate() error {
	var errs []error
	if c.SessionSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	switch c.SessionStore {
	case SessionStoreDynamo, SessionStoreRedis:
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreDynamo, SessionStoreRedis, c.SessionStore))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_HOURS must be positive"))
	}
	if c.OTPTTL <= 0 || c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL_MINUTES and RESET_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost))
	}
	return errors.Join(errs...)
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
