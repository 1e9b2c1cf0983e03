package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"accountforge/internal/audit"
	"accountforge/internal/auth"
	"accountforge/internal/avatar"
	"accountforge/internal/config"
	"accountforge/internal/logging"
)

// Directory is the profile and admin side of the user store.
type Directory interface {
	auth.UserFinder
	UpdateProfile(ctx context.Context, id string, c auth.ProfileChanges) (*auth.User, error)
	RecordLogin(ctx context.Context, id, ip string, at time.Time) error
	SetAvatar(ctx context.Context, id string, url *string) (*auth.User, *string, error)
	ListUsers(ctx context.Context, f auth.UserFilter) ([]auth.User, int, error)
	Stats(ctx context.Context, since time.Time) (*auth.UserStats, error)
}

type AuditLog interface {
	Log(ctx context.Context, e audit.Entry) error
	ForUser(ctx context.Context, userID string, limit int) ([]audit.Record, error)
	Search(ctx context.Context, f audit.Filter) ([]audit.Record, int, error)
	Stats(ctx context.Context) (*audit.Stats, error)
}

type SecurityEvents interface {
	Log(ctx context.Context, e audit.SecurityEvent) error
	Recent(ctx context.Context, n int64) ([]audit.SecurityEvent, error)
}

type Mailer interface {
	SendVerification(ctx context.Context, locale, to, name, token string) error
	SendPasswordReset(ctx context.Context, locale, to, name, token string) error
}

type Limiter interface {
	IsIPBanned(ctx context.Context, ip string) bool
	RegisterLoginFailure(ctx context.Context, ip string) error
	ResetLogin(ctx context.Context, ip string)
	RegisterVerifyAttempt(ctx context.Context, ip string) (bool, time.Duration, error)
	RegisterResetAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error)
	RegisterRegisterAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error)
	Cooldown(ctx context.Context, kind auth.CooldownKind, email string) time.Duration
	StartCooldown(ctx context.Context, kind auth.CooldownKind, email string)
}

// Deps are the collaborators handed to NewServer.
type Deps struct {
	Credentials *auth.CredentialStore
	Tokens      *auth.TokenManager
	Sessions    *auth.SessionIssuer
	Gate        *auth.Gate
	Users       Directory
	Audit       AuditLog
	Security    SecurityEvents
	Mailer      Mailer
	RateLimiter Limiter
	Avatars     *avatar.Store
}

type Server struct {
	Deps
	Config config.Config
	Logger zerolog.Logger

	trustedProxies []net.IPNet
	validator      *requestValidator
	now            func() time.Time
}

func NewServer(cfg config.Config, deps Deps, logger zerolog.Logger) *Server {
	return &Server{
		Deps:           deps,
		Config:         cfg,
		Logger:         logger,
		trustedProxies: parseProxyCIDRs(cfg.TrustedProxies),
		validator:      newRequestValidator(),
		now:            time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&logging.RequestFormatter{Logger: s.Logger}))
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Accept-Language"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "The requested endpoint does not exist")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.route(r, http.MethodGet, "/api/health", s.handleHealth)
	s.route(r, http.MethodGet, "/api/test", s.handleTest)
	s.route(r, http.MethodGet, "/uploads/avatars/*", s.handleAvatarFile)

	s.route(r, http.MethodPost, "/api/auth/register", s.handleRegister)
	s.route(r, http.MethodPost, "/api/auth/login", s.handleLogin)
	s.route(r, http.MethodPost, "/api/auth/verify-email", s.handleVerifyEmail)
	s.route(r, http.MethodPost, "/api/auth/resend-verification", s.handleResendVerification)
	s.route(r, http.MethodPost, "/api/auth/forgot-password", s.handleForgotPassword)
	s.route(r, http.MethodPost, "/api/auth/reset-password", s.handleResetPassword)
	s.route(r, http.MethodPost, "/api/auth/refresh-token", s.handleRefreshToken)
	s.route(r, http.MethodGet, "/api/auth/profile", s.handleProfile)
	s.route(r, http.MethodPost, "/api/auth/logout", s.handleLogout)

	s.route(r, http.MethodGet, "/api/users/profile", s.handleProfile)
	s.route(r, http.MethodPatch, "/api/users/profile", s.handleUpdateProfile)
	s.route(r, http.MethodPost, "/api/users/change-password", s.handleChangePassword)
	s.route(r, http.MethodPost, "/api/users/avatar", s.handleUploadAvatar)
	s.route(r, http.MethodDelete, "/api/users/avatar", s.handleDeleteAvatar)

	s.route(r, http.MethodGet, "/api/admin/users", s.handleAdminListUsers)
	s.route(r, http.MethodGet, "/api/admin/users/{userId}", s.handleAdminGetUser)
	s.route(r, http.MethodPatch, "/api/admin/users/{userId}", s.handleAdminUpdateUser)
	s.route(r, http.MethodDelete, "/api/admin/users/{userId}", s.handleAdminDeleteUser)
	s.route(r, http.MethodGet, "/api/admin/audit-logs", s.handleAdminAuditLogs)
	s.route(r, http.MethodGet, "/api/admin/dashboard/stats", s.handleAdminDashboardStats)

	return r
}

// route mounts h behind the access level recorded for method and path.
func (s *Server) route(r chi.Router, method, path string, h http.HandlerFunc) {
	r.With(s.requireAccess(accessLevel(method, path))).MethodFunc(method, path, h)
}

func (s *Server) allowedOrigins() []string {
	var origins []string
	for _, o := range s.Config.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 && s.Config.FrontendURL != "" {
		origins = append(origins, s.Config.FrontendURL)
	}
	return origins
}
