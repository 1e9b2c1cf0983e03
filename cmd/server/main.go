package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"accountforge/internal/audit"
	"accountforge/internal/auth"
	"accountforge/internal/avatar"
	"accountforge/internal/config"
	"accountforge/internal/database"
	"accountforge/internal/email"
	"accountforge/internal/logging"
	redisx "accountforge/internal/redis"
	"accountforge/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    !cfg.IsProduction(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("log setup error")
	}
	defer logCloser.Close()

	if err := run(cfg, logger, logCloser); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger zerolog.Logger, logCloser interface{ Close() error }) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolOptions{
		MinConns: cfg.DBMinConns,
		MaxConns: cfg.DBMaxConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := redisx.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	hasher, err := auth.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionIssuer(auth.SessionConfig{
		AccessSecret:  cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return err
	}
	avatars, err := avatar.NewStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	transport, err := mailTransport(cfg, logger)
	if err != nil {
		return err
	}

	users := auth.NewUserRepository(db)
	authLog := auth.WithLogger(logger.With().Str("component", "auth").Logger())
	creds := auth.NewCredentialStore(users, hasher, authLog)

	api := server.NewServer(cfg, server.Deps{
		Credentials: creds,
		Tokens:      auth.NewTokenManager(users, authLog),
		Sessions:    sessions,
		Gate:        auth.NewGate(creds, authLog),
		Users:       users,
		Audit:       audit.NewRepository(db),
		Security:    audit.NewSecurityLog(redisClient, audit.DefaultSecurityMaxLen),
		Mailer:      email.NewDispatcher(transport, cfg.FrontendURL, logger.With().Str("component", "email").Logger()),
		RateLimiter: auth.NewRateLimiter(redisClient),
		Avatars:     avatars,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	if rotator, ok := logCloser.(*logging.RotatingFileWriter); ok {
		go rotateOnHangup(ctx, rotator, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// mailTransport falls back to logging messages outside production when SMTP
// is not configured.
func mailTransport(cfg config.Config, logger zerolog.Logger) (email.Transport, error) {
	if cfg.Email.Enabled() {
		return email.NewSMTPTransport(cfg.Email)
	}
	if cfg.IsProduction() {
		return nil, errors.New("EMAIL_HOST and EMAIL_FROM are required in production")
	}
	logger.Warn().Msg("smtp not configured, emails will only be logged")
	return email.LogTransport{Logger: logger}, nil
}

func rotateOnHangup(ctx context.Context, w *logging.RotatingFileWriter, logger zerolog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := w.Rotate(); err != nil {
				logger.Error().Err(err).Msg("log rotation failed")
				continue
			}
			logger.Info().Msg("log file rotated")
		}
	}
}
