// Package authcore assembles the credential and session authority from its
// parts: secret provisioning, Argon2id password hashing, HS256 tokens, the
// TOTP second-factor state machine, the permission model, and the PostgreSQL
// stores behind them.
//
// New reads every subsystem's configuration from the environment, resolves
// the signing secret and envelope key, connects and migrates the database,
// and returns a ready auth.Service. Applications that bring their own
// storage or token layer can skip this package and wire pkg/auth directly.
package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/authcore/pkg/auth"
	"github.com/dmitrymomot/authcore/pkg/config"
	"github.com/dmitrymomot/authcore/pkg/jwt"
	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/password"
	"github.com/dmitrymomot/authcore/pkg/postgres"
	"github.com/dmitrymomot/authcore/pkg/secrets"
	"github.com/dmitrymomot/authcore/pkg/twofa"
)

// Config carries the top-level knobs that do not belong to any one subsystem.
type Config struct {
	// TokenTTL is the lifetime of issued session tokens.
	TokenTTL time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
}

// App is the assembled authority plus the infrastructure it owns.
type App struct {
	Auth    *auth.Service
	Tokens  *jwt.Service
	Storage *postgres.Storage
	Log     *slog.Logger

	pool *pgxpool.Pool
}

// Option configures New.
type Option func(*options)

type options struct {
	log *slog.Logger
}

// WithLogger routes all subsystem logging through the given logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// New assembles the full stack from environment configuration. The returned
// App owns the database pool; call Close on shutdown.
func New(ctx context.Context, opts ...Option) (*App, error) {
	o := options{log: logger.New(logger.WithAttr(logger.Component("authcore")))}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log

	cfg, err := config.Load[Config]()
	if err != nil {
		return nil, err
	}

	secretsCfg, err := config.Load[secrets.Config]()
	if err != nil {
		return nil, err
	}
	provider, err := secrets.New(secretsCfg, log)
	if err != nil {
		return nil, err
	}
	envelopeKey, err := provider.EncryptionKey()
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.New(provider.SigningSecret(), jwt.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		return nil, err
	}

	pgCfg, err := config.Load[postgres.Config]()
	if err != nil {
		return nil, err
	}
	pool, err := postgres.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool, pgCfg, log); err != nil {
		pool.Close()
		return nil, err
	}
	store := postgres.NewStorage(pool)

	twofaCfg, err := config.Load[twofa.Config]()
	if err != nil {
		pool.Close()
		return nil, err
	}
	secondFactor := twofa.NewService(store, envelopeKey, twofaCfg, twofa.WithLogger(log))

	authSvc, err := auth.NewService(store, password.New(), tokens, secondFactor,
		auth.WithLogger(log),
		auth.WithShareStorage(store),
	)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &App{
		Auth:    authSvc,
		Tokens:  tokens,
		Storage: store,
		Log:     log,
		pool:    pool,
	}, nil
}

// Healthcheck validates database connectivity for readiness probes.
func (a *App) Healthcheck(ctx context.Context) error {
	return postgres.Healthcheck(a.pool)(ctx)
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.pool == nil {
		return errors.New("authcore: already closed")
	}
	a.pool.Close()
	a.pool = nil
	return nil
}
