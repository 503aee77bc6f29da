// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/oliverandrich/signup-desk/internal/config"
	"codeberg.org/oliverandrich/signup-desk/internal/database"
	"codeberg.org/oliverandrich/signup-desk/internal/events"
	"codeberg.org/oliverandrich/signup-desk/internal/handlers"
	"codeberg.org/oliverandrich/signup-desk/internal/i18n"
	"codeberg.org/oliverandrich/signup-desk/internal/middleware"
	"codeberg.org/oliverandrich/signup-desk/internal/repository"
	"codeberg.org/oliverandrich/signup-desk/internal/services/activation"
	"codeberg.org/oliverandrich/signup-desk/internal/services/admin"
	"codeberg.org/oliverandrich/signup-desk/internal/services/approval"
	"codeberg.org/oliverandrich/signup-desk/internal/services/email"
	"codeberg.org/oliverandrich/signup-desk/internal/services/notify"
	"codeberg.org/oliverandrich/signup-desk/internal/services/query"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	SetupLogger(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"mail_driver", cfg.Mail.Driver,
	)

	// Database (migrations are applied on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// Notification retries outlive the request that started them, but not the process.
	lifetime, stopDelivery := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDelivery()

	e, err := New(cfg, repository.New(db), lifetime)
	if err != nil {
		return err
	}

	return startWithGracefulShutdown(ctx, e, cfg, stopDelivery)
}

// New wires the application and returns the configured echo instance.
// Notification delivery is cancelled when lifetime ends.
func New(cfg *config.Config, repo *repository.Repository, lifetime context.Context) (*echo.Echo, error) {
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	logger := slog.Default()
	mailer, err := email.NewMailer(&cfg.Mail, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}

	hub := events.NewHub()
	issuer := activation.NewIssuer(repo,
		activation.WithTTL(cfg.Activation.TokenTTL),
		activation.WithLogger(logger),
	)
	dispatcher := notify.New(repo, mailer, notify.Config{
		LinkBaseURL:   cfg.Activation.LinkBaseURL,
		Locale:        cfg.Dispatch.Locale,
		TokenTTL:      cfg.Activation.TokenTTL,
		MaxAttempts:   cfg.Dispatch.MaxAttempts,
		BackoffBase:   cfg.Dispatch.BackoffBase,
		BackoffFactor: cfg.Dispatch.BackoffFactor,
	}, logger)
	engine := approval.New(repo, issuer, dispatcher,
		approval.WithEvents(hub),
		approval.WithLogger(logger),
		approval.WithLifetime(lifetime),
	)
	adminSvc, err := admin.New(engine, query.New(repo), logger)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg)

	h := handlers.New(repo, engine, issuer, adminSvc, hub)
	h.Routes(e,
		[]echo.MiddlewareFunc{middleware.AdminToken(cfg.Server.AdminToken)},
		middleware.Idempotency(middleware.NewIdempotencyStore(cfg.Server.IdempotencyTTL)),
	)

	return e, nil
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config, stopDelivery context.CancelFunc) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("shutting down server", "reason", ctx.Err())
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Abort pending retries first so in-flight requests can finish.
	stopDelivery()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
