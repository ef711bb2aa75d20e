// Command seed provisions the first administrator account.
//
// It reads the same configuration as the API server plus SEED_ADMIN_EMAIL,
// SEED_ADMIN_PASSWORD and the optional SEED_ADMIN_NAME. Running it again
// against an existing account is a no-op.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/app"
	"github.com/FilipeAphrody/lifeline-auth/internal/config"
	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
	"github.com/FilipeAphrody/lifeline-auth/internal/logger"
	"github.com/FilipeAphrody/lifeline-auth/internal/usecase"
)

type seedConfig struct {
	Email    string `env:"SEED_ADMIN_EMAIL" env-required:"true"`
	Password string `env:"SEED_ADMIN_PASSWORD" env-required:"true"`
	Name     string `env:"SEED_ADMIN_NAME" env-default:"System Administrator"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("prod", "info").Fatal("invalid configuration", zap.Error(err))
	}
	log := logger.New(cfg.Env, cfg.LogLevel).Named("seed")
	defer func() { _ = log.Sync() }()

	var seed seedConfig
	if err := cleanenv.ReadEnv(&seed); err != nil {
		log.Fatal("invalid seed configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	admin, err := application.Auth.Provision(ctx, "", usecase.RegisterInput{
		Email:    seed.Email,
		Password: seed.Password,
		Name:     seed.Name,
		Role:     string(domain.RoleAdmin),
	})
	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		log.Info("admin already exists", zap.String("email", domain.NormalizeEmail(seed.Email)))
	case err != nil:
		log.Fatal("failed to create admin", zap.Error(err))
	default:
		log.Info("admin created", zap.String("email", admin.Email), zap.String("id", admin.ID))
	}
}
