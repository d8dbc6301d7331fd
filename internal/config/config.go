// Package config builds the process configuration from the environment.
//
// LOADING ORDER:
//  1. An optional .env file (joho/godotenv). Values already present in the
//     real environment win, so a deployed process is never overridden by a
//     stray file.
//  2. The process environment.
//  3. Defaults for everything that has a sensible one.
//
// MISSING vs MALFORMED:
// A malformed value (PORT=abc, RATE_IP_MAX=-1, RATE_WINDOW_MS=0) is a startup error: the
// operator typed something wrong and should find out immediately.
// A missing value for a required setting (JWT_SECRET, DATABASE_URL, ...) is
// NOT a startup error. The server still boots so /health and the catalog
// keep working, and each operation that needs the setting checks it with
// one of the Require* methods and fails with a configuration error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/picketly/api/internal/apperror"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is immutable after Load returns. Pass it by value or pointer, but
// never mutate it.
type Config struct {
	Port     int
	Env      string
	LogLevel slog.Level

	// AllowedOrigins is the CORS allow-list. Empty means no cross-origin
	// browser request is allowed.
	AllowedOrigins []string

	// TrustedProxyHops is how many reverse proxies sit in front of the
	// server. The client address is read from that many X-Forwarded-For
	// entries from the right; 0 uses the TCP peer only.
	TrustedProxyHops int

	AppBaseURL      string
	ThankYouURL     string
	JWTSecret       string
	MagicLinkExpiry time.Duration

	DB          DBConfig
	Mail        MailConfig
	RateLimit   RateLimitConfig
	Redis       RedisConfig
	CatalogPath string
}

type DBConfig struct {
	Driver       string
	URL          string // postgres connection string
	SSLMode      string
	Path         string // sqlite file
	QueryTimeout time.Duration
	AutoMigrate  bool
}

type MailConfig struct {
	FromEmail string
	FromName  string
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	Timeout   time.Duration
}

type RateLimitConfig struct {
	Window        time.Duration
	IPMax         int
	EmailMax      int
	EmailCooldown time.Duration
	SweepInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads the given .env files (".env" when none are named), then the
// process environment. A missing .env file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Tests pass a map lookup.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Port:             p.integer("PORT", 4000),
		Env:              p.str("APP_ENV", p.str("NODE_ENV", "development")),
		LogLevel:         p.level("LOG_LEVEL", slog.LevelInfo),
		AllowedOrigins:   p.list("FRONTEND_ALLOWED_ORIGINS"),
		TrustedProxyHops: p.integer("TRUSTED_PROXY_HOPS", 1),
		AppBaseURL:       strings.TrimRight(p.str("APP_BASE_URL", ""), "/"),
		ThankYouURL:      p.str("THANK_YOU_URL", ""),
		JWTSecret:        p.str("JWT_SECRET", ""),
		MagicLinkExpiry:  p.expiry("MAGIC_LINK_EXPIRY", time.Hour),
		DB: DBConfig{
			Driver:       strings.ToLower(p.str("DB_DRIVER", DriverPostgres)),
			URL:          p.str("DATABASE_URL", ""),
			SSLMode:      p.str("PGSSLMODE", ""),
			Path:         p.str("DB_PATH", ""),
			QueryTimeout: p.duration("DB_QUERY_TIMEOUT", 5*time.Second),
			AutoMigrate:  p.boolean("DB_AUTO_MIGRATE", true),
		},
		Mail: MailConfig{
			FromEmail: p.str("FROM_EMAIL", "no-reply@picketly.example"),
			FromName:  p.str("FROM_NAME", "Picketly"),
			SMTPHost:  p.str("SMTP_HOST", ""),
			SMTPPort:  p.integer("SMTP_PORT", 0),
			SMTPUser:  p.str("SMTP_USER", ""),
			SMTPPass:  p.str("SMTP_PASS", ""),
			Timeout:   p.duration("SMTP_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Window:        p.millis("RATE_WINDOW_MS", 10*time.Minute),
			IPMax:         p.integer("RATE_IP_MAX", 20),
			EmailMax:      p.integer("RATE_EMAIL_MAX", 5),
			EmailCooldown: p.millis("RATE_EMAIL_COOLDOWN_MS", time.Minute),
			SweepInterval: p.duration("RATE_SWEEP_INTERVAL", time.Minute),
		},
		Redis: RedisConfig{
			Addr:     p.str("REDIS_ADDR", ""),
			Password: p.str("REDIS_PASSWORD", ""),
			DB:       p.integer("REDIS_DB", 0),
		},
		CatalogPath: p.str("CATALOG_PATH", "data/opportunities.json"),
	}

	switch cfg.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		p.fail("DB_DRIVER", cfg.DB.Driver, "must be postgres or sqlite")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		p.fail("PORT", strconv.Itoa(cfg.Port), "out of range")
	}
	if cfg.RateLimit.IPMax <= 0 {
		p.fail("RATE_IP_MAX", strconv.Itoa(cfg.RateLimit.IPMax), "must be positive")
	}
	if cfg.TrustedProxyHops < 0 {
		p.fail("TRUSTED_PROXY_HOPS", strconv.Itoa(cfg.TrustedProxyHops), "must not be negative")
	}
	if cfg.RateLimit.EmailMax <= 0 {
		p.fail("RATE_EMAIL_MAX", strconv.Itoa(cfg.RateLimit.EmailMax), "must be positive")
	}

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, nil
}

// IsProduction controls the session cookie's Secure flag and the log format.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// SMTPConfigured reports whether all four SMTP settings are present.
// With any of them missing, magic links are logged instead of mailed.
func (c Config) SMTPConfigured() bool {
	m := c.Mail
	return m.SMTPHost != "" && m.SMTPPort != 0 && m.SMTPUser != "" && m.SMTPPass != ""
}

// DatabaseConfigured reports whether the selected driver has a location.
func (c Config) DatabaseConfigured() bool {
	if c.DB.Driver == DriverSQLite {
		return c.DB.Path != ""
	}
	return c.DB.URL != ""
}

// DSN returns the connection string for the selected driver. For Postgres,
// PGSSLMODE is appended as sslmode unless the URL already sets one.
func (c Config) DSN() string {
	if c.DB.Driver == DriverSQLite {
		return c.DB.Path
	}
	if c.DB.SSLMode == "" || c.DB.URL == "" {
		return c.DB.URL
	}
	u, err := url.Parse(c.DB.URL)
	if err != nil || u.Scheme == "" {
		// key=value form
		if strings.Contains(c.DB.URL, "sslmode=") {
			return c.DB.URL
		}
		return c.DB.URL + " sslmode=" + c.DB.SSLMode
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", c.DB.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c Config) RequireDatabase() error {
	if c.DatabaseConfigured() {
		return nil
	}
	if c.DB.Driver == DriverSQLite {
		return apperror.ConfigMissing("DB_PATH", "")
	}
	return apperror.ConfigMissing("DATABASE_URL", "")
}

func (c Config) RequireJWTSecret() error {
	if c.JWTSecret != "" {
		return nil
	}
	return apperror.ConfigMissing("JWT_SECRET", "")
}

func (c Config) RequireBaseURL() error {
	if c.AppBaseURL != "" {
		return nil
	}
	return apperror.ConfigMissing("APP_BASE_URL", "needed to build confirmation links")
}

func (c Config) RequireThankYouURL() error {
	if c.ThankYouURL != "" {
		return nil
	}
	return apperror.ConfigMissing("THANK_YOU_URL", "needed to redirect after confirmation")
}
