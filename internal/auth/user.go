package auth

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser     Role = "user"
	RoleAdmin    Role = "admin"
	RoleMerchant Role = "merchant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleMerchant:
		return true
	}
	return false
}

// ParseRole returns RoleUser for an empty value.
func ParseRole(s string) (Role, bool) {
	if s == "" {
		return RoleUser, true
	}
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// deletedEmailPrefix marks emails scrambled by a soft delete.
const deletedEmailPrefix = "deleted_"

type User struct {
	ID                       string
	Email                    string
	PasswordHash             string
	Name                     string
	Role                     Role
	Metadata                 map[string]any
	IsVerified               bool
	VerificationToken        *string
	VerificationTokenExpires *time.Time
	ResetToken               *string
	ResetTokenExpires        *time.Time
	Phone                    *string
	AvatarURL                *string
	Timezone                 string
	Locale                   string
	Preferences              map[string]any
	LastLoginAt              *time.Time
	LastLoginIP              *string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// IsDeleted reports whether the account was soft deleted.
func (u *User) IsDeleted() bool {
	if u == nil {
		return false
	}
	if deleted, ok := u.Metadata["deleted"].(bool); ok && deleted {
		return true
	}
	return false
}

// Public is the projection returned to clients.
type Public struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Role        Role           `json:"role"`
	IsVerified  bool           `json:"is_verified"`
	Phone       *string        `json:"phone,omitempty"`
	AvatarURL   *string        `json:"avatar_url,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Locale      string         `json:"locale,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (u *User) Public() Public {
	return Public{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		IsVerified:  u.IsVerified,
		Phone:       u.Phone,
		AvatarURL:   u.AvatarURL,
		Timezone:    u.Timezone,
		Locale:      u.Locale,
		Preferences: u.Preferences,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// NewUser carries the fields persisted by InsertUser.
type NewUser struct {
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	IsVerified   bool
}

// ProfileChanges lists optional profile updates; nil fields are left untouched.
type ProfileChanges struct {
	Name        *string
	Phone       *string
	Timezone    *string
	Locale      *string
	Preferences map[string]any
	Role        *Role
}

func (c ProfileChanges) Empty() bool {
	return c.Name == nil && c.Phone == nil && c.Timezone == nil &&
		c.Locale == nil && c.Preferences == nil && c.Role == nil
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// UserFilter narrows admin listings. Page starts at 1.
type UserFilter struct {
	Role       *Role
	IsVerified *bool
	Search     string
	Since      *time.Time
	Until      *time.Time
	Page       int
	Limit      int
}

func (f UserFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

type UserStats struct {
	Total            int          `json:"total"`
	Verified         int          `json:"verified"`
	Recent           int          `json:"recent"`
	RoleDistribution map[Role]int `json:"-"`
}
