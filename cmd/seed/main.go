package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"accountforge/internal/auth"
	"accountforge/internal/database"
)

// seedConfig is the subset of the server environment the seeder needs.
type seedConfig struct {
	DatabaseURL      string `env:"DATABASE_URL,required"`
	PasswordHasher   string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
	BcryptCost       int    `env:"BCRYPT_COST" envDefault:"12"`
	AdminPassword    string `env:"SEED_ADMIN_PASSWORD"`
	MerchantPassword string `env:"SEED_MERCHANT_PASSWORD"`
}

type seedAccount struct {
	email       string
	name        string
	role        auth.Role
	password    string
	passwordEnv string
}

func seedAccounts(cfg seedConfig) []seedAccount {
	return []seedAccount{
		{"admin@accountforge.com", "Admin User", auth.RoleAdmin, cfg.AdminPassword, "SEED_ADMIN_PASSWORD"},
		{"merchant@example.com", "Merchant User", auth.RoleMerchant, cfg.MerchantPassword, "SEED_MERCHANT_PASSWORD"},
	}
}

func main() {
	_ = godotenv.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := env.ParseAs[seedConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	hasher, err := auth.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("password hasher")
	}
	users := auth.NewUserRepository(db)

	failed := false
	for _, acct := range seedAccounts(cfg) {
		l := logger.With().Str("email", acct.email).Str("role", string(acct.role)).Logger()
		if err := seed(ctx, users, hasher, acct); err != nil {
			if errors.Is(err, auth.ErrDuplicateEmail) {
				l.Info().Msg("account already exists, skipped")
				continue
			}
			l.Error().Err(err).Msg("seed failed")
			failed = true
			continue
		}
		l.Info().Msg("account created")
	}
	if failed {
		db.Close()
		os.Exit(1)
	}
}

// seed inserts a verified account unless the email is already taken.
func seed(ctx context.Context, users *auth.UserRepository, hasher auth.PasswordHasher, acct seedAccount) error {
	existing, err := users.FindByEmail(ctx, acct.email)
	if err != nil {
		return err
	}
	if existing != nil {
		return auth.ErrDuplicateEmail
	}

	if len(acct.password) < 6 {
		return errors.New(acct.passwordEnv + " must be set to at least 6 characters")
	}
	hash, err := hasher.Hash(acct.password)
	if err != nil {
		return err
	}
	_, err = users.InsertUser(ctx, auth.NewUser{
		Email:        acct.email,
		PasswordHash: hash,
		Name:         acct.name,
		Role:         acct.role,
		IsVerified:   true,
	})
	return err
}
