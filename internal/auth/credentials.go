package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CredentialStore owns user identity and password material.
type CredentialStore struct {
	store  UserStore
	hasher PasswordHasher
	now    func() time.Time
	logger zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(store UserStore, hasher PasswordHasher, opts ...Option) *CredentialStore {
	o := applyOptions(opts)
	return &CredentialStore{
		store:  store,
		hasher: hasher,
		now:    o.now,
		logger: o.logger,
	}
}

// Create registers an unverified user. The lookup before the insert only
// short-circuits the common case; the unique constraint decides races.
func (c *CredentialStore) Create(ctx context.Context, email, password, name string, role Role) (*User, error) {
	email = strings.TrimSpace(email)
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	existing, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, storeErr("find user by email", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	hash, err := c.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := c.store.InsertUser(ctx, NewUser{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, storeErr("insert user", err)
	}

	c.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")
	return user, nil
}

// Authenticate checks email and password. Unknown emails and wrong passwords
// both yield ErrInvalidCredentials; a correct password on an unverified
// account yields ErrUnverified.
func (c *CredentialStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := c.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, storeErr("find user by email", err)
	}
	if user == nil || user.IsDeleted() {
		c.hasher.Compare(c.fallbackHash(), password)
		return nil, ErrInvalidCredentials
	}
	if !c.hasher.Compare(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrUnverified
	}
	return user, nil
}

func (c *CredentialStore) VerifyPassword(plaintext, storedHash string) bool {
	return c.hasher.Compare(storedHash, plaintext)
}

// UpdatePassword re-hashes and invalidates any outstanding reset token.
func (c *CredentialStore) UpdatePassword(ctx context.Context, userID, newPassword string) (*User, error) {
	hash, err := c.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := c.store.UpdatePassword(ctx, userID, hash)
	if err != nil {
		return nil, storeErr("update password", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword requires the current password before updating.
func (c *CredentialStore) ChangePassword(ctx context.Context, userID, current, next string) (*User, error) {
	user, err := c.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.hasher.Compare(user.PasswordHash, current) {
		return nil, ErrInvalidCredentials
	}
	return c.UpdatePassword(ctx, userID, next)
}

// ResetPassword finalizes a reset. The token match, expiry check, new hash
// and token clearing happen in one conditional update, so a token resets a
// password at most once.
func (c *CredentialStore) ResetPassword(ctx context.Context, token, newPassword string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	hash, err := c.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := c.store.ResetPassword(ctx, HashToken(token), hash, c.now())
	if err != nil {
		return nil, storeErr("reset password", err)
	}
	if user == nil {
		return nil, ErrInvalidOrExpiredToken
	}
	c.logger.Info().Str("user_id", user.ID).Msg("password reset")
	return user, nil
}

// Delete soft deletes targetID on behalf of actorID and returns the user as
// it was before the delete.
func (c *CredentialStore) Delete(ctx context.Context, actorID, targetID string) (*User, error) {
	if actorID == targetID {
		return nil, ErrSelfDeleteForbidden
	}
	before, err := c.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	deleted, err := c.store.SoftDelete(ctx, targetID, c.now())
	if err != nil {
		return nil, storeErr("soft delete user", err)
	}
	if deleted == nil {
		return nil, ErrUserNotFound
	}
	c.logger.Info().Str("user_id", targetID).Str("actor_id", actorID).Msg("user soft deleted")
	return before, nil
}

// FindByID treats soft-deleted users as missing.
func (c *CredentialStore) FindByID(ctx context.Context, id string) (*User, error) {
	user, err := c.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("find user by id", err)
	}
	if user == nil || user.IsDeleted() {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (c *CredentialStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, err := c.store.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, storeErr("find user by email", err)
	}
	if user == nil || user.IsDeleted() {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// fallbackHash keeps unknown-email logins as slow as wrong-password ones.
func (c *CredentialStore) fallbackHash() string {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = c.hasher.Hash("accountforge-unknown-user")
	})
	return c.dummyHash
}
