package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountforge/internal/auth"
	"accountforge/internal/auth/authtest"
)

type fixture struct {
	store  *authtest.Store
	clock  *authtest.Clock
	creds  *auth.CredentialStore
	tokens *auth.TokenManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := authtest.NewClock(time.Date(2025, 11, 6, 12, 0, 0, 0, time.UTC))
	store := authtest.NewStore()
	store.SetClock(clock.Now)
	return &fixture{
		store:  store,
		clock:  clock,
		creds:  auth.NewCredentialStore(store, authtest.FastHasher(), auth.WithClock(clock.Now)),
		tokens: auth.NewTokenManager(store, auth.WithClock(clock.Now)),
	}
}

func (f *fixture) verifiedUser(t *testing.T, email, password string, role auth.Role) *auth.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.creds.Create(ctx, email, password, "Test User", role)
	require.NoError(t, err)
	tok, err := f.tokens.Issue(ctx, u.ID, auth.TokenVerification)
	require.NoError(t, err)
	u, err = f.tokens.Consume(ctx, tok.Value, auth.TokenVerification)
	require.NoError(t, err)
	return u
}

func TestCreateStoresHashAndDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.creds.Create(ctx, "ada@example.com", "hunter22", "Ada", "")
	require.NoError(t, err)

	assert.Equal(t, auth.RoleUser, u.Role)
	assert.False(t, u.IsVerified)
	assert.Empty(t, u.Metadata)

	found, err := f.creds.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", found.PasswordHash)
	assert.True(t, f.creds.VerifyPassword("hunter22", found.PasswordHash))
	assert.False(t, f.creds.VerifyPassword("hunter23", found.PasswordHash))
}

func TestCreateRejectsDuplicatesAndBadRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.creds.Create(ctx, "dup@example.com", "password", "A", auth.RoleUser)
	require.NoError(t, err)

	_, err = f.creds.Create(ctx, "dup@example.com", "password", "B", auth.RoleUser)
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

	_, err = f.creds.Create(ctx, "Dup@example.com", "password", "C", auth.RoleUser)
	assert.NoError(t, err, "emails are matched case-sensitively")

	_, err = f.creds.Create(ctx, "x@example.com", "password", "D", auth.Role("root"))
	assert.ErrorIs(t, err, auth.ErrInvalidRole)
}

func TestCreateConcurrentDuplicatesYieldOneUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		duplicate int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.creds.Create(ctx, "race@example.com", "password", "R", auth.RoleUser)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, auth.ErrDuplicateEmail):
				duplicate++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 7, duplicate)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, err := f.creds.Create(ctx, "pending@example.com", "password1", "P", auth.RoleUser)
	require.NoError(t, err)
	f.verifiedUser(t, "ok@example.com", "password1", auth.RoleUser)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid", "ok@example.com", "password1", nil},
		{"wrong password", "ok@example.com", "password2", auth.ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", "password1", auth.ErrInvalidCredentials},
		{"unverified", "pending@example.com", "password1", auth.ErrUnverified},
		{"unverified wrong password", "pending@example.com", "nope", auth.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := f.creds.Authenticate(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.email, u.Email)
		})
	}
	assert.NotEmpty(t, pending.ID)
}

func TestUpdatePasswordInvalidatesResetToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.verifiedUser(t, "reset@example.com", "oldpass", auth.RoleUser)

	tok, err := f.tokens.Issue(ctx, u.ID, auth.TokenReset)
	require.NoError(t, err)

	_, err = f.creds.UpdatePassword(ctx, u.ID, "newpass")
	require.NoError(t, err)

	_, err = f.tokens.Consume(ctx, tok.Value, auth.TokenReset)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)

	_, err = f.creds.ResetPassword(ctx, tok.Value, "other")
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)

	_, err = f.creds.Authenticate(ctx, "reset@example.com", "newpass")
	assert.NoError(t, err)
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.verifiedUser(t, "change@example.com", "current", auth.RoleUser)

	_, err := f.creds.ChangePassword(ctx, u.ID, "wrong", "next-one")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.creds.ChangePassword(ctx, u.ID, "current", "next-one")
	require.NoError(t, err)

	_, err = f.creds.Authenticate(ctx, "change@example.com", "next-one")
	assert.NoError(t, err)
}

func TestResetPasswordSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.verifiedUser(t, "once@example.com", "before", auth.RoleUser)

	tok, err := f.tokens.Issue(ctx, u.ID, auth.TokenReset)
	require.NoError(t, err)

	located, err := f.tokens.Consume(ctx, tok.Value, auth.TokenReset)
	require.NoError(t, err)
	assert.Equal(t, u.ID, located.ID)

	_, err = f.creds.ResetPassword(ctx, tok.Value, "after")
	require.NoError(t, err)
	assert.Nil(t, f.store.Raw(u.ID).ResetToken)

	_, err = f.creds.ResetPassword(ctx, tok.Value, "again")
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)

	_, err = f.creds.Authenticate(ctx, "once@example.com", "after")
	assert.NoError(t, err)
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.verifiedUser(t, "late@example.com", "before", auth.RoleUser)

	tok, err := f.tokens.Issue(ctx, u.ID, auth.TokenReset)
	require.NoError(t, err)
	f.clock.Advance(auth.ResetTokenTTL + time.Second)

	_, err = f.creds.ResetPassword(ctx, tok.Value, "after")
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}

func TestDeleteSoftDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.verifiedUser(t, "admin@example.com", "password", auth.RoleAdmin)
	target := f.verifiedUser(t, "target@example.com", "password", auth.RoleUser)

	_, err := f.creds.Delete(ctx, admin.ID, admin.ID)
	assert.ErrorIs(t, err, auth.ErrSelfDeleteForbidden)

	before, err := f.creds.Delete(ctx, admin.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, "target@example.com", before.Email)

	raw := f.store.Raw(target.ID)
	require.NotNil(t, raw)
	assert.True(t, strings.HasPrefix(raw.Email, "deleted_"))
	assert.True(t, strings.HasSuffix(raw.Email, "_target@example.com"))
	assert.True(t, raw.IsDeleted())
	assert.NotEmpty(t, raw.Metadata["deleted_at"])

	_, err = f.creds.FindByID(ctx, target.ID)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = f.creds.Delete(ctx, admin.ID, target.ID)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = f.creds.Authenticate(ctx, "target@example.com", "password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.creds.Create(ctx, "target@example.com", "password", "Again", auth.RoleUser)
	assert.NoError(t, err, "the freed address can register again after a soft delete")
}

func TestStoreFailuresAreStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.store.Err = authtest.ErrUnavailable

	_, err := f.creds.Authenticate(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
	assert.ErrorIs(t, err, authtest.ErrUnavailable)

	var se *auth.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "find user by email", se.Op)
}

func TestCreateRejectsPasswordOverByteLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.creds.Create(ctx, "multi@example.com", strings.Repeat("é", 40), "Multi", auth.RoleUser)
	require.ErrorIs(t, err, auth.ErrPasswordTooLong)
	assert.False(t, errors.Is(err, auth.ErrStoreUnavailable))

	u := f.verifiedUser(t, "short@example.com", "secret123", auth.RoleUser)
	_, err = f.creds.ChangePassword(ctx, u.ID, "secret123", strings.Repeat("ü", 37))
	assert.ErrorIs(t, err, auth.ErrPasswordTooLong)
}
