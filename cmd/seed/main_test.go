package main

import (
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountforge/internal/auth"
)

func TestSeedConfigFollowsServerEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accountforge")
	t.Setenv("PASSWORD_HASHER", "argon2")
	t.Setenv("BCRYPT_COST", "13")
	t.Setenv("SEED_ADMIN_PASSWORD", "admin-secret")
	t.Setenv("SEED_MERCHANT_PASSWORD", "merchant-secret")

	cfg, err := env.ParseAs[seedConfig]()
	require.NoError(t, err)
	assert.Equal(t, "argon2", cfg.PasswordHasher)
	assert.Equal(t, 13, cfg.BcryptCost)

	accounts := seedAccounts(cfg)
	require.Len(t, accounts, 2)
	assert.Equal(t, auth.RoleAdmin, accounts[0].role)
	assert.Equal(t, "admin-secret", accounts[0].password)
	assert.Equal(t, auth.RoleMerchant, accounts[1].role)
	assert.Equal(t, "merchant-secret", accounts[1].password)
}

func TestSeedConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/accountforge")

	cfg, err := env.ParseAs[seedConfig]()
	require.NoError(t, err)
	assert.Equal(t, "bcrypt", cfg.PasswordHasher)
	assert.Equal(t, auth.MinBcryptCost, cfg.BcryptCost)
}
