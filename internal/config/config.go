package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env            string   `env:"APP_ENV" envDefault:"development"`
	Port           string   `env:"PORT" envDefault:"3001"`
	FrontendURL    string   `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	DatabaseURL    string   `env:"DATABASE_URL,required"`
	DBMinConns     int32    `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConns     int32    `env:"DB_MAX_CONNS" envDefault:"10"`
	RedisURL       string   `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	UploadDir      string   `env:"UPLOAD_DIR" envDefault:"uploads"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:","`

	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"12"`

	Log   LogConfig   `envPrefix:"LOG_"`
	JWT   JWTConfig   `envPrefix:"JWT_"`
	Email EmailConfig `envPrefix:"EMAIL_"`
}

type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	File       string `env:"FILE" envDefault:"logs/server.log"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"20"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"5"`
}

type JWTConfig struct {
	Secret        string        `env:"SECRET,required"`
	RefreshSecret string        `env:"REFRESH_SECRET,required"`
	AccessTTL     time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	Issuer        string        `env:"ISSUER" envDefault:"accountforge"`
}

type EmailConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USER"`
	Password string `env:"PASS"`
	From     string `env:"FROM" envDefault:"\"AccountForge\" <noreply@accountforge.com>"`
	Secure   bool   `env:"SECURE"`
}

func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	if absUpload, err := filepath.Abs(cfg.UploadDir); err == nil {
		cfg.UploadDir = absUpload
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWT.Secret == c.JWT.RefreshSecret {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT token lifetimes must be positive")
	}
	if c.BcryptCost < 12 {
		return fmt.Errorf("BCRYPT_COST must be at least 12, got %d", c.BcryptCost)
	}
	switch strings.ToLower(c.PasswordHasher) {
	case "bcrypt", "argon2", "argon2id":
	default:
		return fmt.Errorf("PASSWORD_HASHER must be bcrypt or argon2, got %q", c.PasswordHasher)
	}
	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		return errors.New("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	return nil
}
