// Package authtest provides an in-memory auth.UserStore for tests.
package authtest

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"accountforge/internal/auth"
)

// Store mirrors the conditional-update semantics of the postgres repository
// under a single mutex.
type Store struct {
	mu    sync.Mutex
	users map[string]*auth.User
	now   func() time.Time

	// Err, when set, is returned by every call.
	Err error
}

func NewStore() *Store {
	return &Store{users: map[string]*auth.User{}, now: time.Now}
}

// SetClock controls created_at/updated_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

var _ auth.UserStore = (*Store)(nil)

func (s *Store) InsertUser(_ context.Context, nu auth.NewUser) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if u.Email == nu.Email {
			return nil, auth.ErrDuplicateEmail
		}
	}
	now := s.now()
	u := &auth.User{
		ID:           uuid.NewString(),
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Name:         nu.Name,
		Role:         nu.Role,
		IsVerified:   nu.IsVerified,
		Metadata:     map[string]any{},
		Preferences:  map[string]any{},
		Timezone:     "UTC",
		Locale:       "en-US",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	return clone(u), nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (s *Store) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return clone(s.users[id]), nil
}

func (s *Store) UpdatePassword(_ context.Context, id, hash string) (*auth.User, error) {
	return s.mutate(func(u *auth.User) bool {
		if u.ID != id || u.IsDeleted() {
			return false
		}
		u.PasswordHash = hash
		u.ResetToken, u.ResetTokenExpires = nil, nil
		return true
	})
}

func (s *Store) SetVerificationToken(_ context.Context, id, digest string, expires time.Time) (bool, error) {
	u, err := s.mutate(func(u *auth.User) bool {
		if u.ID != id || u.IsVerified || u.IsDeleted() {
			return false
		}
		u.VerificationToken, u.VerificationTokenExpires = &digest, &expires
		return true
	})
	return u != nil, err
}

func (s *Store) ConsumeVerificationToken(_ context.Context, digest string, now time.Time) (*auth.User, error) {
	return s.mutate(func(u *auth.User) bool {
		if !tokenMatches(u.VerificationToken, u.VerificationTokenExpires, digest, now) {
			return false
		}
		u.IsVerified = true
		u.VerificationToken, u.VerificationTokenExpires = nil, nil
		return true
	})
}

func (s *Store) SetResetToken(_ context.Context, id, digest string, expires time.Time) (bool, error) {
	u, err := s.mutate(func(u *auth.User) bool {
		if u.ID != id || u.IsDeleted() {
			return false
		}
		u.ResetToken, u.ResetTokenExpires = &digest, &expires
		return true
	})
	return u != nil, err
}

func (s *Store) FindByResetToken(_ context.Context, digest string, now time.Time) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if tokenMatches(u.ResetToken, u.ResetTokenExpires, digest, now) {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (s *Store) ResetPassword(_ context.Context, digest, hash string, now time.Time) (*auth.User, error) {
	return s.mutate(func(u *auth.User) bool {
		if !tokenMatches(u.ResetToken, u.ResetTokenExpires, digest, now) {
			return false
		}
		u.PasswordHash = hash
		u.ResetToken, u.ResetTokenExpires = nil, nil
		return true
	})
}

func (s *Store) SoftDelete(_ context.Context, id string, at time.Time) (*auth.User, error) {
	return s.mutate(func(u *auth.User) bool {
		if u.ID != id || u.IsDeleted() {
			return false
		}
		u.Email = "deleted_" + strconv.FormatInt(at.UnixMilli(), 10) + "_" + u.Email
		u.Metadata["deleted"] = true
		u.Metadata["deleted_at"] = at.UTC().Format(time.RFC3339)
		u.VerificationToken, u.VerificationTokenExpires = nil, nil
		u.ResetToken, u.ResetTokenExpires = nil, nil
		return true
	})
}

func (s *Store) UpdateProfile(_ context.Context, id string, c auth.ProfileChanges) (*auth.User, error) {
	return s.mutate(func(u *auth.User) bool {
		if u.ID != id || u.IsDeleted() {
			return false
		}
		if c.Name != nil {
			u.Name = *c.Name
		}
		if c.Phone != nil {
			u.Phone = ptr(*c.Phone)
		}
		if c.Timezone != nil {
			u.Timezone = *c.Timezone
		}
		if c.Locale != nil {
			u.Locale = *c.Locale
		}
		if c.Role != nil {
			u.Role = *c.Role
		}
		for k, v := range c.Preferences {
			u.Preferences[k] = v
		}
		return true
	})
}

func (s *Store) RecordLogin(_ context.Context, id, ip string, at time.Time) error {
	_, err := s.mutate(func(u *auth.User) bool {
		if u.ID != id {
			return false
		}
		u.LastLoginAt = &at
		if ip != "" {
			u.LastLoginIP = ptr(ip)
		}
		return true
	})
	return err
}

func (s *Store) SetAvatar(_ context.Context, id string, url *string) (*auth.User, *string, error) {
	var previous *string
	u, err := s.mutate(func(u *auth.User) bool {
		if u.ID != id || u.IsDeleted() {
			return false
		}
		previous = u.AvatarURL
		u.AvatarURL = url
		return true
	})
	return u, previous, err
}

func (s *Store) ListUsers(_ context.Context, f auth.UserFilter) ([]auth.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	if f.Limit <= 0 {
		f.Limit = auth.DefaultPageSize
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	matched := []auth.User{}
	for _, u := range s.users {
		switch {
		case u.IsDeleted():
		case f.Role != nil && u.Role != *f.Role:
		case f.IsVerified != nil && u.IsVerified != *f.IsVerified:
		case search != "" && !strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Name), search):
		case f.Since != nil && u.CreatedAt.Before(*f.Since):
		case f.Until != nil && u.CreatedAt.After(*f.Until):
		default:
			matched = append(matched, *clone(u))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *Store) Stats(_ context.Context, since time.Time) (*auth.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	stats := &auth.UserStats{RoleDistribution: map[auth.Role]int{}}
	for _, u := range s.users {
		if u.IsDeleted() {
			continue
		}
		stats.Total++
		if u.IsVerified {
			stats.Verified++
		}
		if !u.CreatedAt.Before(since) {
			stats.Recent++
		}
		stats.RoleDistribution[u.Role]++
	}
	return stats, nil
}

// Raw returns the stored row including token digests.
func (s *Store) Raw(id string) *auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.users[id])
}

// mutate applies fn to the first user it accepts and returns a copy of it.
func (s *Store) mutate(fn func(u *auth.User) bool) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.users {
		if fn(u) {
			u.UpdatedAt = s.now()
			return clone(u), nil
		}
	}
	return nil, nil
}

func tokenMatches(token *string, expires *time.Time, digest string, now time.Time) bool {
	return token != nil && expires != nil && *token == digest && expires.After(now)
}

func clone(u *auth.User) *auth.User {
	if u == nil {
		return nil
	}
	c := *u
	c.Metadata = copyMap(u.Metadata)
	c.Preferences = copyMap(u.Preferences)
	return &c
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// ErrUnavailable is a convenience failure for Store.Err.
var ErrUnavailable = errors.New("authtest: store unavailable")
