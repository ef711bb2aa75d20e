// Package app wires configuration into the stores and the auth usecase.
// Both the API server and the seed command build on it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/config"
	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
	"github.com/FilipeAphrody/lifeline-auth/internal/metrics"
	"github.com/FilipeAphrody/lifeline-auth/internal/repository"
	"github.com/FilipeAphrody/lifeline-auth/internal/usecase"
	"github.com/FilipeAphrody/lifeline-auth/pkg/security"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Auth    *usecase.AuthUsecase
	Metrics *metrics.Metrics

	db  *sql.DB
	rdb *redis.Client
}

// New opens the configured stores, applies migrations and builds the usecase.
// A missing or weak JWT secret is a configuration error.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	tokens, err := security.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	a := &App{Metrics: metrics.New()}

	var (
		users domain.UserRepository
		audit domain.AuditLog
	)
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		log.Warn("using in-memory storage; data is lost on restart")
		users = repository.NewMemoryUserRepo()
		audit = repository.NewMemoryAuditRepo()
	default:
		db, err := openPostgres(ctx, cfg.Storage.DBURL)
		if err != nil {
			return nil, err
		}
		a.db = db
		if err := repository.Migrate(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		users = repository.NewPostgresUserRepo(db)
		audit = repository.NewPostgresAuditRepo(db)
	}

	opts := []usecase.Option{
		usecase.WithLogger(log.Named("auth")),
		usecase.WithMetrics(a.Metrics),
	}
	if cfg.Login.MaxAttempts > 0 && cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			// The throttle fails open, so the server can still start.
			log.Warn("redis unreachable, login throttling degraded", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		opts = append(opts, usecase.WithAttemptLimiter(
			repository.NewRedisAttemptRepo(a.rdb, cfg.Login.MaxAttempts, cfg.Login.Window),
		))
	}

	a.Auth = usecase.NewAuthUsecase(users, audit, security.NewHasher(cfg.Password.HashParams()), tokens, opts...)
	return a, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return db, nil
}
