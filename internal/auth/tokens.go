package auth

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

type TokenKind string

const (
	TokenVerification TokenKind = "verification"
	TokenReset        TokenKind = "reset"
)

const (
	VerificationTokenTTL = 24 * time.Hour
	ResetTokenTTL        = time.Hour
)

func (k TokenKind) TTL() time.Duration {
	if k == TokenReset {
		return ResetTokenTTL
	}
	return VerificationTokenTTL
}

// IssuedToken is the plaintext handed to the user. Only its digest is stored.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenManager issues and consumes single-use verification and reset tokens.
// Each user holds at most one token of each kind; issuing overwrites it.
type TokenManager struct {
	store   UserStore
	now     func() time.Time
	entropy io.Reader
	logger  zerolog.Logger
}

func NewTokenManager(store UserStore, opts ...Option) *TokenManager {
	o := applyOptions(opts)
	return &TokenManager{
		store:   store,
		now:     o.now,
		entropy: o.entropy,
		logger:  o.logger,
	}
}

func (m *TokenManager) Issue(ctx context.Context, userID string, kind TokenKind) (IssuedToken, error) {
	value, err := randomToken(m.entropy)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("generate %s token: %w", kind, err)
	}
	expires := m.now().Add(kind.TTL())
	digest := HashToken(value)

	var ok bool
	switch kind {
	case TokenVerification:
		ok, err = m.store.SetVerificationToken(ctx, userID, digest, expires)
	case TokenReset:
		ok, err = m.store.SetResetToken(ctx, userID, digest, expires)
	default:
		return IssuedToken{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if err != nil {
		return IssuedToken{}, storeErr("store "+string(kind)+" token", err)
	}
	if !ok {
		return IssuedToken{}, m.issueRejected(ctx, userID, kind)
	}

	m.logger.Debug().Str("user_id", userID).Str("kind", string(kind)).Time("expires_at", expires).Msg("token issued")
	return IssuedToken{Value: value, ExpiresAt: expires}, nil
}

func (m *TokenManager) issueRejected(ctx context.Context, userID string, kind TokenKind) error {
	user, err := m.store.FindByID(ctx, userID)
	if err != nil {
		return storeErr("find user by id", err)
	}
	if user == nil || user.IsDeleted() {
		return ErrUserNotFound
	}
	if kind == TokenVerification && user.IsVerified {
		return ErrAlreadyVerified
	}
	return ErrUserNotFound
}

// Consume redeems token. For verification tokens the conditional update that
// marks the user verified is the consumption itself. Reset tokens are only
// located here; CredentialStore.ResetPassword clears them.
func (m *TokenManager) Consume(ctx context.Context, token string, kind TokenKind) (*User, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	digest := HashToken(token)
	now := m.now()

	var (
		user *User
		err  error
	)
	switch kind {
	case TokenVerification:
		user, err = m.store.ConsumeVerificationToken(ctx, digest, now)
	case TokenReset:
		user, err = m.store.FindByResetToken(ctx, digest, now)
	default:
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
	if err != nil {
		return nil, storeErr("consume "+string(kind)+" token", err)
	}
	if user == nil || user.IsDeleted() {
		return nil, ErrInvalidOrExpiredToken
	}
	return user, nil
}
