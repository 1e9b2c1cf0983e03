package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// SessionConfig holds the two signing secrets and lifetimes. The secrets
// must be non-empty and distinct.
type SessionConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Payload is the identity embedded in both token types. The role is advisory;
// authorization always re-reads it from the store.
type Payload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

func PayloadFor(u *User) Payload {
	return Payload{UserID: u.ID, Email: u.Email, Role: u.Role}
}

type Claims struct {
	Payload
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// SessionIssuer signs and verifies stateless HS256 session tokens.
type SessionIssuer struct {
	cfg SessionConfig
	now func() time.Time
}

func NewSessionIssuer(cfg SessionConfig, opts ...Option) (*SessionIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	o := applyOptions(opts)
	return &SessionIssuer{cfg: cfg, now: o.now}, nil
}

func (s *SessionIssuer) IssueAccessToken(p Payload) (string, error) {
	return s.sign(p, AccessToken)
}

func (s *SessionIssuer) IssueRefreshToken(p Payload) (string, error) {
	return s.sign(p, RefreshToken)
}

func (s *SessionIssuer) IssuePair(p Payload) (TokenPair, error) {
	access, err := s.IssueAccessToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(p)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify parses token as kind and returns its payload, or ErrTokenExpired /
// ErrInvalidSignature.
func (s *SessionIssuer) Verify(token string, kind TokenType) (*Payload, error) {
	secret, _, err := s.params(kind)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidSignature
	}
	if claims.Type != kind || claims.UserID == "" {
		return nil, ErrInvalidSignature
	}

	p := claims.Payload
	return &p, nil
}

// Refresh exchanges a valid refresh token for a new pair. The user is loaded
// again so the new tokens carry the current email and role.
func (s *SessionIssuer) Refresh(ctx context.Context, refreshToken string, users UserFinder) (TokenPair, *User, error) {
	p, err := s.Verify(refreshToken, RefreshToken)
	if err != nil {
		return TokenPair{}, nil, err
	}
	user, err := users.FindByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenPair{}, nil, ErrPrincipalNotFound
		}
		return TokenPair{}, nil, storeErr("find user by id", err)
	}
	if user == nil || user.IsDeleted() {
		return TokenPair{}, nil, ErrPrincipalNotFound
	}
	pair, err := s.IssuePair(PayloadFor(user))
	if err != nil {
		return TokenPair{}, nil, err
	}
	return pair, user, nil
}

func (s *SessionIssuer) sign(p Payload, kind TokenType) (string, error) {
	secret, ttl, err := s.params(kind)
	if err != nil {
		return "", err
	}
	now := s.now()
	claims := Claims{
		Payload: p,
		Type:    kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.UserID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (s *SessionIssuer) params(kind TokenType) (string, time.Duration, error) {
	switch kind {
	case AccessToken:
		return s.cfg.AccessSecret, s.cfg.AccessTTL, nil
	case RefreshToken:
		return s.cfg.RefreshSecret, s.cfg.RefreshTTL, nil
	}
	return "", 0, fmt.Errorf("unknown token type %q", kind)
}
