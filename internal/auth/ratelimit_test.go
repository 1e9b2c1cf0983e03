package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountforge/internal/auth"
)

func newLimiter(t *testing.T) (*auth.RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return auth.NewRateLimiter(client), mr
}

func TestLoginFailuresBanIP(t *testing.T) {
	rl, mr := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, rl.RegisterLoginFailure(ctx, "10.0.0.1"))
		assert.False(t, rl.IsIPBanned(ctx, "10.0.0.1"))
	}
	require.NoError(t, rl.RegisterLoginFailure(ctx, "10.0.0.1"))
	assert.True(t, rl.IsIPBanned(ctx, "10.0.0.1"))
	assert.False(t, rl.IsIPBanned(ctx, "10.0.0.2"))

	mr.FastForward(time.Hour + time.Second)
	assert.False(t, rl.IsIPBanned(ctx, "10.0.0.1"))
}

func TestResetLoginClearsCounter(t *testing.T) {
	rl, _ := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, rl.RegisterLoginFailure(ctx, "10.0.0.1"))
	}
	rl.ResetLogin(ctx, "10.0.0.1")
	require.NoError(t, rl.RegisterLoginFailure(ctx, "10.0.0.1"))
	assert.False(t, rl.IsIPBanned(ctx, "10.0.0.1"))
}

func TestRegisterAttemptsPerEmail(t *testing.T) {
	rl, _ := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		locked, _, err := rl.RegisterRegisterAttempt(ctx, "New@Example.com", "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, locked, "attempt %d", i+1)
	}
	locked, ttl, err := rl.RegisterRegisterAttempt(ctx, "new@example.com", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Greater(t, ttl, 29*time.Minute)
}

func TestResetAttemptsPerIP(t *testing.T) {
	rl, mr := newLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		locked, _, err := rl.RegisterResetAttempt(ctx, "", "10.0.0.9")
		require.NoError(t, err)
		assert.False(t, locked)
	}
	locked, _, err := rl.RegisterResetAttempt(ctx, "", "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, locked)

	mr.FastForward(16 * time.Minute)
	locked, _, err = rl.RegisterResetAttempt(ctx, "", "10.0.0.9")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestEmailCooldown(t *testing.T) {
	rl, mr := newLimiter(t)
	ctx := context.Background()

	assert.Zero(t, rl.Cooldown(ctx, auth.CooldownVerification, "a@example.com"))

	rl.StartCooldown(ctx, auth.CooldownVerification, "a@example.com")
	assert.Greater(t, rl.Cooldown(ctx, auth.CooldownVerification, "A@example.com"), 50*time.Second)
	assert.Zero(t, rl.Cooldown(ctx, auth.CooldownPasswordReset, "a@example.com"))

	mr.FastForward(auth.EmailCooldown)
	assert.Zero(t, rl.Cooldown(ctx, auth.CooldownVerification, "a@example.com"))
}
