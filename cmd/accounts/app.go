package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	"github.com/uptrace/bun"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/mailer"
	"github.com/goliatone/go-accounts/metrics"
	"github.com/goliatone/go-accounts/persistence"
	"github.com/goliatone/go-accounts/signedlink"
)

// application holds the wired services every subcommand draws from.
type application struct {
	cfg      *config.Config
	db       *bun.DB
	log      logr.Logger
	logger   accounts.Logger
	metrics  *metrics.Metrics
	repo     accounts.RepositoryManager
	tokens   *accounts.TokenServiceImpl
	notifier *accounts.Notifier
	deps     accounts.Dependencies
}

func newLogr(cfg config.LogConfig) logr.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return logr.FromSlogHandler(h)
}

func newMailTransport(cfg config.MailConfig, log logr.Logger) mailer.Transport {
	if cfg.Driver == "smtp" {
		return mailer.NewSMTPTransport(mailer.SMTPConfig{
			Host:       cfg.Host,
			Port:       cfg.Port,
			Username:   cfg.Username,
			Password:   cfg.Password,
			RequireTLS: cfg.RequireTLS,
			Timeout:    cfg.Timeout,
		})
	}
	return mailer.NewLogTransport(log.WithName("mail"))
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	log := newLogr(cfg.Log)
	logger := accounts.NewLogger(log)

	var dbOpts []persistence.Option
	if cfg.App.Debug {
		dbOpts = append(dbOpts, persistence.WithQueryDebug(cfg.Log.Level == "debug"))
	}
	db, err := persistence.Open(ctx, cfg.Database.DSN, dbOpts...)
	if err != nil {
		return nil, err
	}

	signer, err := signedlink.New([]byte(cfg.Links.Key))
	if err != nil {
		db.Close()
		return nil, err
	}

	renderer, err := mailer.NewRenderer()
	if err != nil {
		db.Close()
		return nil, err
	}

	m := metrics.New()
	repo := accounts.NewRepositoryManager(db)
	repo.MustValidate()

	mail := mailer.New(renderer, newMailTransport(cfg.Mail, log), cfg.Mail.From,
		mailer.WithLogger(log.WithName("mailer")),
	)

	notifierOpts := []accounts.NotifierOption{
		accounts.WithNotifierLogger(logger),
		accounts.WithNotifierObserver(m),
	}
	if cfg.Mail.Async {
		notifierOpts = append(notifierOpts, accounts.WithAsyncDelivery())
	}
	notifier := accounts.NewNotifier(repo.Notifications(), mail, notifierOpts...)

	activity := accounts.NewActivityRecorder(repo.Activities())
	states := accounts.NewUserStateMachine(repo.Users(),
		accounts.WithStateMachineActivitySink(activity),
		accounts.WithStateMachineLogger(logger),
	)

	tokens := accounts.NewTokenService(
		[]byte(cfg.Auth.SigningKey),
		cfg.Auth.TokenExpiration,
		cfg.Auth.Issuer,
		cfg.Auth.Audience,
		accounts.WithTokenLogger(logger),
		accounts.WithClaimsDecorators(accounts.ProfileClaims()),
	)

	return &application{
		cfg:      cfg,
		db:       db,
		log:      log,
		logger:   logger,
		metrics:  m,
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		deps: accounts.Dependencies{
			Repo:     repo,
			Links:    accounts.NewSignedLinks(signer, cfg, accounts.WithLinkObserver(m)),
			Notifier: notifier,
			States:   states,
			Activity: activity,
			Hasher:   accounts.BcryptHasher{},
			Config:   cfg,
			Logger:   logger,
		},
	}, nil
}

// Close waits for background mail and closes the database.
func (a *application) Close() error {
	a.notifier.Wait()
	return a.db.Close()
}
