package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// SecretKey signs link, reset, and session tokens. Single key, no rotation.
	SecretKey string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AWSRegion        string
	AWSEndpointURL   string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID   string
	AWSSecretKey     string
	DynamoUsersTable string

	// Verification lifetimes. Cooldown and OTP TTL are equal by default but
	// tunable independently.
	OTPTTL          time.Duration
	LinkMaxAge      time.Duration
	ResendCooldown  time.Duration
	VerifyFlagTTL   time.Duration
	ResetTokenTTL   time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// LinkBaseURL is the public frontend URL that confirmation links point at.
	LinkBaseURL string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	TurnstileEnabled   bool
	TurnstileSecretKey string

	AllowedOrigins []string // CORS allowed origins
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		SecretKey: getEnv("SECRET_KEY", "insecure-dev-secret"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:   getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoUsersTable: getEnv("DYNAMO_TABLE_USERS", "users"),

		OTPTTL:          getEnvDur("OTP_TTL", 2*time.Minute),
		LinkMaxAge:      getEnvDur("LINK_MAX_AGE", 15*time.Minute),
		ResendCooldown:  getEnvDur("RESEND_COOLDOWN", 2*time.Minute),
		VerifyFlagTTL:   getEnvDur("VERIFY_FLAG_TTL", 10*time.Minute),
		ResetTokenTTL:   getEnvDur("RESET_TOKEN_TTL", 30*time.Minute),
		AccessTokenTTL:  getEnvDur("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDur("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		LinkBaseURL: getEnv("LINK_BASE_URL", "http://localhost:3000"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		TurnstileEnabled:   getEnvBool("TURNSTILE_ENABLED", false),
		TurnstileSecretKey: getEnv("TURNSTILE_SECRET_KEY", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
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

func getEnvDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
