package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/picketly/api/internal/auth"
	"github.com/picketly/api/internal/catalog"
	"github.com/picketly/api/internal/config"
	"github.com/picketly/api/internal/mailer"
	"github.com/picketly/api/internal/metrics"
	"github.com/picketly/api/internal/ratelimit"
	"github.com/picketly/api/internal/repository"
	"github.com/picketly/api/internal/repository/postgres"
	sqliteRepo "github.com/picketly/api/internal/repository/sqlite"
)

// Redis key prefixes for the two limiter scopes.
const (
	redisIPPrefix    = "picketly:rl:ip:"
	redisEmailPrefix = "picketly:rl:email:"
)

// Deps are the long-lived components a Server wires into its routes.
//
// OPTIONAL PIECES:
// Store, Tokens and Sender may be nil. A missing database or JWT secret is
// not a startup error: the routes that need them answer with a
// configuration error instead, while /health and the catalog keep working.
// A nil Sender means magic links are logged rather than mailed.
type Deps struct {
	Store   repository.Store
	Limiter *ratelimit.Limiter
	Tokens  *auth.TokenService
	Sender  mailer.Sender
	Catalog *catalog.Loader
	Metrics *metrics.Registry

	redis *redis.Client
}

// Open builds every dependency from cfg. On error, anything already opened
// is closed again.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Deps, error) {
	d := &Deps{
		Catalog: catalog.NewLoader(cfg.CatalogPath),
		Metrics: metrics.New(),
	}

	store, err := OpenStore(ctx, cfg, logger, cfg.DB.AutoMigrate)
	if err != nil {
		return nil, err
	}
	d.Store = store

	if cfg.JWTSecret != "" {
		d.Tokens, err = auth.NewTokenService(cfg.JWTSecret, cfg.MagicLinkExpiry)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("creating token service: %w", err)
		}
	} else {
		logger.Warn("JWT_SECRET not set, promise submission and confirmation are disabled")
	}

	if err := d.openLimiter(ctx, cfg); err != nil {
		d.Close()
		return nil, err
	}

	if cfg.SMTPConfigured() {
		d.Sender, err = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUser,
			Password: cfg.Mail.SMTPPass,
			Timeout:  cfg.Mail.Timeout,
		}, logger)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("creating mailer: %w", err)
		}
	} else {
		logger.Warn("SMTP not configured, magic links will be logged")
	}

	return d, nil
}

// OpenStore connects to the configured database, or returns a nil Store
// when none is configured. With migrate set, Postgres migrations are
// applied; the SQLite backend always brings its schema up to date.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger, migrate bool) (repository.Store, error) {
	if !cfg.DatabaseConfigured() {
		logger.Warn("database not configured, promise and artwork routes are disabled",
			slog.String("driver", cfg.DB.Driver),
		)
		return nil, nil
	}

	switch cfg.DB.Driver {
	case config.DriverSQLite:
		db, err := sqliteRepo.New(cfg.DSN(), sqliteRepo.WithQueryTimeout(cfg.DB.QueryTimeout))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		return db, nil

	default:
		db, err := postgres.Open(ctx, cfg.DSN(), postgres.WithQueryTimeout(cfg.DB.QueryTimeout))
		if err != nil {
			return nil, fmt.Errorf("opening postgres database: %w", err)
		}
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
			logger.Info("database migrations applied")
		}
		return db, nil
	}
}

// openLimiter uses Redis when REDIS_ADDR is set, process memory otherwise.
func (d *Deps) openLimiter(ctx context.Context, cfg config.Config) error {
	policy := ratelimit.Policy{
		Window:        cfg.RateLimit.Window,
		IPMax:         cfg.RateLimit.IPMax,
		EmailMax:      cfg.RateLimit.EmailMax,
		EmailCooldown: cfg.RateLimit.EmailCooldown,
	}

	if cfg.Redis.Addr == "" {
		d.Limiter = ratelimit.NewMemoryLimiter(policy)
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Addr, err)
	}
	d.redis = client
	d.Limiter = ratelimit.NewLimiter(policy,
		ratelimit.NewRedisStore(client, redisIPPrefix, policy.Window),
		ratelimit.NewRedisStore(client, redisEmailPrefix, policy.Window),
	)
	return nil
}

// Close releases the database pool and the Redis client.
func (d *Deps) Close() error {
	var errs []error
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// describe summarizes the wiring for the startup log.
func (d *Deps) describe(cfg config.Config) []any {
	database := "none"
	if d.Store != nil {
		database = cfg.DB.Driver
	}
	mail := "log"
	if d.Sender != nil {
		mail = "smtp"
	}
	limiter := "memory"
	if d.redis != nil {
		limiter = "redis"
	}
	return []any{
		slog.String("database", database),
		slog.String("mail", mail),
		slog.String("rateLimitStore", limiter),
		slog.Bool("sessions", d.Tokens != nil),
	}
}
