package auth

import (
	"context"
	"time"
)

// UserStore is the persistence surface the credential and token services need.
// Lookups return (nil, nil) when no row matches. Every mutation is a single
// statement so no partially updated user is observable.
type UserStore interface {
	InsertUser(ctx context.Context, u NewUser) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)

	// UpdatePassword replaces the hash and clears any reset token.
	UpdatePassword(ctx context.Context, id, passwordHash string) (*User, error)

	// SetVerificationToken stores digest+expiry for an unverified user and
	// reports false when the user is missing or already verified.
	SetVerificationToken(ctx context.Context, id, digest string, expires time.Time) (bool, error)
	// ConsumeVerificationToken marks the matching user verified and clears the
	// token in one conditional update. It returns nil when nothing matched.
	ConsumeVerificationToken(ctx context.Context, digest string, now time.Time) (*User, error)

	SetResetToken(ctx context.Context, id, digest string, expires time.Time) (bool, error)
	FindByResetToken(ctx context.Context, digest string, now time.Time) (*User, error)
	// ResetPassword swaps the hash only while the reset token is still valid.
	ResetPassword(ctx context.Context, digest, passwordHash string, now time.Time) (*User, error)

	// SoftDelete scrambles the email, flags metadata and clears tokens.
	SoftDelete(ctx context.Context, id string, at time.Time) (*User, error)
}

// UserFinder is the read-only slice of UserStore used by the gate and the
// session refresh.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*User, error)
}
