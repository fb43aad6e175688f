// Package config loads runtime settings from the environment. A .env file in
// the working directory is read first when present.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mail providers understood by MailConfig.Provider.
const (
	MailProviderLog      = "log"
	MailProviderPostmark = "postmark"
	MailProviderSendgrid = "sendgrid"
)

type Config struct {
	Env            string
	Port           string
	RequestTimeout time.Duration

	MongoURI      string
	MongoDatabase string

	Session   SessionConfig
	Mail      MailConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig

	ResetTokenTTL time.Duration
}

type SessionConfig struct {
	Secret       string
	TokenTTL     time.Duration
	CookieTTL    time.Duration
	CookieSecure bool
}

type MailConfig struct {
	Provider      string
	From          string
	FromName      string
	AppURL        string
	PostmarkToken string
	SendgridKey   string
	Timeout       time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
	// TrustProxy keys clients by the last X-Forwarded-For hop. Only set it
	// behind a reverse proxy that appends the peer address to that header.
	TrustProxy bool
}

// Load reads the environment into a Config. It does not validate it.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	cfg := Config{
		Env:            envStr("APP_ENV", "development"),
		Port:           envStr("PORT", "8000"),
		RequestTimeout: envDur("REQUEST_TIMEOUT", 10*time.Second),
		MongoURI:       envStr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  envStr("MONGO_DATABASE", "zipngo"),
		Session: SessionConfig{
			Secret:       os.Getenv("JWT_SECRET"),
			TokenTTL:     envDur("JWT_EXPIRE", 120*time.Hour),
			CookieTTL:    envDur("COOKIE_EXPIRE", 120*time.Hour),
			CookieSecure: envBool("COOKIE_SECURE", false),
		},
		Mail: MailConfig{
			Provider:      strings.ToLower(envStr("MAIL_PROVIDER", MailProviderLog)),
			From:          envStr("MAIL_FROM", "no-reply@zipngo.app"),
			FromName:      envStr("MAIL_FROM_NAME", "ZipNGo"),
			AppURL:        envStr("APP_URL", "http://localhost:3000"),
			PostmarkToken: os.Getenv("POSTMARK_API_TOKEN"),
			SendgridKey:   os.Getenv("SENDGRID_API_KEY"),
			Timeout:       envDur("MAIL_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:        envBool("RATE_LIMIT_ENABLED", true),
			Capacity:       envInt("RATE_LIMIT_CAPACITY", 10),
			RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
			TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
			Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
			TrustProxy:     envBool("TRUST_PROXY", false),
		},
		ResetTokenTTL: envDur("RESET_TOKEN_TTL", 30*time.Minute),
	}

	if cfg.RateLimit.Capacity < 1 {
		cfg.RateLimit.Capacity = 1
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RateLimit.RefillInterval; cfg.RateLimit.TTL < minTTL {
		cfg.RateLimit.TTL = minTTL
	}
	return cfg
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	switch c.Mail.Provider {
	case MailProviderLog:
	case MailProviderPostmark:
		if c.Mail.PostmarkToken == "" {
			errs = append(errs, errors.New("POSTMARK_API_TOKEN is not set"))
		}
	case MailProviderSendgrid:
		if c.Mail.SendgridKey == "" {
			errs = append(errs, errors.New("SENDGRID_API_KEY is not set"))
		}
	default:
		errs = append(errs, errors.New("MAIL_PROVIDER must be one of log, postmark, sendgrid"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("RESET_TOKEN_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
