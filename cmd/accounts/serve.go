package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-router"
	"github.com/spf13/cobra"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
)

const shutdownTimeout = 10 * time.Second

func createServeCmd(configManager *config.Manager) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Launch the accounts HTTP server",
		Long: `
Launch the accounts HTTP server

The server exposes the user API, the signed activation and email change
confirmation endpoints and Prometheus metrics at /metrics.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configManager.Load()
			if err != nil {
				initFatal(err, "loading config")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg)
			if err != nil {
				initFatal(err, "initializing application")
			}
			defer app.Close()

			if _, err := accounts.Migrate(ctx, app.db); err != nil {
				initFatal(err, "migrating database")
			}

			return app.serve(ctx)
		},
	}

	return serveCmd
}

func (a *application) newHTTPServer() router.Server[*fiber.App] {
	srv := accounts.NewFiberServer(a.logger, fiber.Config{
		AppName:               "accounts",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})

	app := srv.WrappedRouter()
	app.Use(recover.New())
	app.Use(a.metrics.Middleware())
	app.Get("/metrics", a.metrics.Handler())

	controller := accounts.NewUserController(a.deps, a.tokens,
		accounts.WithControllerDebug(a.cfg.App.Debug),
		accounts.WithControllerLogger(a.logger),
		accounts.WithMailRateLimit(a.cfg.RateLimit.MailMax, a.cfg.RateLimit.MailWindow),
	)
	accounts.RegisterUserRoutes(srv.Router(), controller)

	return srv
}

func (a *application) serve(ctx context.Context) error {
	srv := a.newHTTPServer()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening on %s", a.cfg.Server.Address)
		errCh <- srv.Serve(a.cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
