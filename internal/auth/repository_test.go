package auth_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountforge/internal/auth"
	"accountforge/internal/database"
	"accountforge/migrations"
)

// testPool connects to TEST_DATABASE_URL, applies the schema and empties the
// tables. Tests using it are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, url, database.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.ApplyMigrations(ctx, pool, migrations.FS, zerolog.Nop()))
	_, err = pool.Exec(ctx, `TRUNCATE audit_logs, users CASCADE`)
	require.NoError(t, err)
	return pool
}

func TestUserRepositoryLifecycle(t *testing.T) {
	repo := auth.NewUserRepository(testPool(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u, err := repo.InsertUser(ctx, auth.NewUser{
		Email: "pg@example.com", PasswordHash: "hash", Name: "Pg", Role: auth.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, "UTC", u.Timezone)
	assert.Empty(t, u.Metadata)

	_, err = repo.InsertUser(ctx, auth.NewUser{
		Email: "pg@example.com", PasswordHash: "hash", Name: "Pg", Role: auth.RoleUser,
	})
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

	missing, err := repo.FindByID(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := repo.SetVerificationToken(ctx, u.ID, "digest-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	expired, err := repo.ConsumeVerificationToken(ctx, "digest-1", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, expired)

	verified, err := repo.ConsumeVerificationToken(ctx, "digest-1", now)
	require.NoError(t, err)
	require.NotNil(t, verified)
	assert.True(t, verified.IsVerified)
	assert.Nil(t, verified.VerificationToken)

	again, err := repo.ConsumeVerificationToken(ctx, "digest-1", now)
	require.NoError(t, err)
	assert.Nil(t, again)

	ok, err = repo.SetVerificationToken(ctx, u.ID, "digest-2", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "verified users cannot hold a verification token")

	ok, err = repo.SetResetToken(ctx, u.ID, "reset-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	found, err := repo.FindByResetToken(ctx, "reset-1", now)
	require.NoError(t, err)
	require.NotNil(t, found)

	reset, err := repo.ResetPassword(ctx, "reset-1", "hash-2", now)
	require.NoError(t, err)
	require.NotNil(t, reset)
	assert.Equal(t, "hash-2", reset.PasswordHash)
	assert.Nil(t, reset.ResetToken)

	reset, err = repo.ResetPassword(ctx, "reset-1", "hash-3", now)
	require.NoError(t, err)
	assert.Nil(t, reset)

	name := "Renamed"
	updated, err := repo.UpdateProfile(ctx, u.ID, auth.ProfileChanges{
		Name:        &name,
		Preferences: map[string]any{"theme": "dark"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "dark", updated.Preferences["theme"])

	url := "/uploads/avatars/a.png"
	_, prev, err := repo.SetAvatar(ctx, u.ID, &url)
	require.NoError(t, err)
	assert.Nil(t, prev)
	_, prev, err = repo.SetAvatar(ctx, u.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, url, *prev)

	require.NoError(t, repo.RecordLogin(ctx, u.ID, "10.0.0.1", now))

	deleted, err := repo.SoftDelete(ctx, u.ID, now)
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.True(t, strings.HasPrefix(deleted.Email, "deleted_"))
	assert.True(t, deleted.IsDeleted())

	byEmail, err := repo.FindByEmail(ctx, "pg@example.com")
	require.NoError(t, err)
	assert.Nil(t, byEmail)
}

func TestSoftDeleteLongestEmail(t *testing.T) {
	repo := auth.NewUserRepository(testPool(t))
	ctx := context.Background()

	email := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 186) + ".com"
	require.Len(t, email, 255)
	u, err := repo.InsertUser(ctx, auth.NewUser{
		Email: email, PasswordHash: "hash", Name: "Long", Role: auth.RoleUser,
	})
	require.NoError(t, err)

	deleted, err := repo.SoftDelete(ctx, u.ID, time.Now())
	require.NoError(t, err)
	require.NotNil(t, deleted)
	assert.True(t, strings.HasSuffix(deleted.Email, "_"+email))
}

func TestUserRepositoryListAndStats(t *testing.T) {
	repo := auth.NewUserRepository(testPool(t))
	ctx := context.Background()

	for _, nu := range []auth.NewUser{
		{Email: "alice@example.com", Name: "Alice", Role: auth.RoleUser, IsVerified: true},
		{Email: "bob@example.com", Name: "Bob", Role: auth.RoleMerchant},
		{Email: "carol@example.com", Name: "Carol", Role: auth.RoleAdmin, IsVerified: true},
	} {
		nu.PasswordHash = "hash"
		_, err := repo.InsertUser(ctx, nu)
		require.NoError(t, err)
	}

	verified := true
	users, total, err := repo.ListUsers(ctx, auth.UserFilter{IsVerified: &verified, Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, users, 1)

	users, total, err = repo.ListUsers(ctx, auth.UserFilter{Search: "BOB", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "bob@example.com", users[0].Email)

	stats, err := repo.Stats(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Verified)
	assert.Equal(t, 3, stats.Recent)
	assert.Equal(t, 1, stats.RoleDistribution[auth.RoleMerchant])
}
