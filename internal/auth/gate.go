package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

type AccessLevel int

const (
	AccessPublic AccessLevel = iota
	AccessAuthenticated
	// AccessAdmin admits admins and merchants.
	AccessAdmin
	// AccessSuperAdmin admits admins only.
	AccessSuperAdmin
)

func (l AccessLevel) String() string {
	switch l {
	case AccessPublic:
		return "public"
	case AccessAuthenticated:
		return "authenticated"
	case AccessAdmin:
		return "admin"
	case AccessSuperAdmin:
		return "super-admin"
	}
	return "unknown"
}

func (l AccessLevel) Allows(role Role) bool {
	switch l {
	case AccessPublic, AccessAuthenticated:
		return true
	case AccessAdmin:
		return role == RoleAdmin || role == RoleMerchant
	case AccessSuperAdmin:
		return role == RoleAdmin
	}
	return false
}

// Gate resolves the acting user from the store on every check, so role
// changes and deletions take effect without waiting for tokens to expire.
type Gate struct {
	users  UserFinder
	logger zerolog.Logger
}

func NewGate(users UserFinder, opts ...Option) *Gate {
	o := applyOptions(opts)
	return &Gate{users: users, logger: o.logger}
}

func (g *Gate) Authorize(ctx context.Context, principalID string, level AccessLevel) (*User, error) {
	if level == AccessPublic {
		return nil, nil
	}
	if principalID == "" {
		return nil, ErrUnauthenticated
	}

	user, err := g.users.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, storeErr("find user by id", err)
	}
	if user == nil || user.IsDeleted() {
		return nil, ErrPrincipalNotFound
	}
	if !level.Allows(user.Role) {
		g.logger.Warn().
			Str("user_id", user.ID).
			Str("role", string(user.Role)).
			Str("required", level.String()).
			Msg("access denied")
		return nil, ErrForbidden
	}
	return user, nil
}
