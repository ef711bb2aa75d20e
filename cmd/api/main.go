package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/app"
	"github.com/FilipeAphrody/lifeline-auth/internal/config"
	delivery "github.com/FilipeAphrody/lifeline-auth/internal/delivery/http"
	"github.com/FilipeAphrody/lifeline-auth/internal/logger"
)

const version = "1.0.0"

func main() {
	// 1. Load Configuration (file and environment)
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("prod", "info")
		bootLog.Fatal("invalid configuration", zap.Error(err))
	}

	log := logger.New(cfg.Env, cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	log.Info("starting lifeline auth", zap.String("config", cfg.String()))

	// 2. Initialize Infrastructure, Repositories and Usecases
	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("failed to close connections", zap.Error(err))
		}
	}()

	// 3. Setup Framework
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.HTTP.ReadTimeout
	e.Server.WriteTimeout = cfg.HTTP.WriteTimeout

	// 4. Global Middlewares
	e.Use(middleware.RequestID())
	e.Use(delivery.RequestLogger(log.Named("http")))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit("1M"))

	// 5. Register Delivery Handlers (Routes)
	delivery.Register(e, application.Auth, log.Named("http"))

	// 6. Health Check and Metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "healthy",
			"version": version,
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(application.Metrics.Handler()))

	// 7. Start Server with Graceful Shutdown
	go func() {
		log.Info("listening", zap.String("port", cfg.HTTP.Port))
		if err := e.Start(":" + cfg.HTTP.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("shutting down the server due to error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exiting")
}
