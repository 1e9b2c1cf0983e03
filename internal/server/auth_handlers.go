package server

import (
	"errors"
	"net/http"
	"strings"

	"accountforge/internal/audit"
	"accountforge/internal/auth"
	"accountforge/internal/i18n"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
	Name     string `json:"name" validate:"required,max=255"`
	Role     string `json:"role" validate:"omitempty,oneof=user merchant admin"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.bind(w, r, &req) {
		return
	}
	role, _ := auth.ParseRole(req.Role)
	if role == auth.RoleAdmin {
		writeError(w, http.StatusBadRequest, "Cannot register as admin")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if locked, ttl, err := s.RateLimiter.RegisterRegisterAttempt(ctx, req.Email, ip); err != nil {
		s.log(r).Error().Err(err).Msg("register: rate limit check failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	} else if locked {
		s.securityEvent(r, audit.EventRateLimited, req.Email, "", map[string]any{"action": "register"})
		writeThrottled(w, "Too many signup attempts. Try again later.", ttl)
		return
	}

	user, err := s.Credentials.Create(ctx, req.Email, req.Password, req.Name, role)
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "User already exists with this email")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, passwordTooLongMessage)
		return
	case err != nil:
		s.log(r).Error().Err(err).Msg("register: create user failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.recordAudit(r, audit.Entry{
		Action:     audit.ActionRegister,
		ResourceID: user.ID,
		UserID:     user.ID,
		NewValues:  map[string]any{"email": user.Email, "name": user.Name, "role": user.Role},
		Metadata:   requestMetadata(r, ip),
	})

	// A failed send leaves the account in place; resend-verification recovers.
	if err := s.sendVerification(r, user); err != nil {
		s.log(r).Error().Err(err).Str("user_id", user.ID).Msg("register: verification email failed")
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully. Please check your email for verification.",
		"user":    user.Public(),
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.bind(w, r, &req) {
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if s.RateLimiter.IsIPBanned(ctx, ip) {
		s.securityEvent(r, audit.EventLoginBlocked, req.Email, "", nil)
		writeError(w, http.StatusForbidden, "Too many failed login attempts. Try again later.")
		return
	}

	user, err := s.Credentials.Authenticate(ctx, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		if err := s.RateLimiter.RegisterLoginFailure(ctx, ip); err != nil {
			s.log(r).Warn().Err(err).Msg("login: record failure")
		}
		s.securityEvent(r, audit.EventLoginFailed, req.Email, "", nil)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	case errors.Is(err, auth.ErrUnverified):
		writeError(w, http.StatusForbidden, "Please verify your email before logging in")
		return
	case err != nil:
		s.log(r).Error().Err(err).Msg("login: authenticate failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	tokens, err := s.Sessions.IssuePair(auth.PayloadFor(user))
	if err != nil {
		s.log(r).Error().Err(err).Msg("login: issue tokens failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.RateLimiter.ResetLogin(ctx, ip)
	meta := requestMetadata(r, ip)
	meta["login_method"] = "email_password"
	s.recordAudit(r, audit.Entry{
		Action:     audit.ActionLogin,
		ResourceID: user.ID,
		UserID:     user.ID,
		Metadata:   meta,
	})
	if err := s.Users.RecordLogin(ctx, user.ID, ip, s.now()); err != nil {
		s.log(r).Warn().Err(err).Str("user_id", user.ID).Msg("login: record last login failed")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"user":    user.Public(),
		"tokens":  tokens,
	})
}

type verifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "Verification token is required")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if locked, ttl, err := s.RateLimiter.RegisterVerifyAttempt(ctx, ip); err != nil {
		s.log(r).Error().Err(err).Msg("verify email: rate limit check failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	} else if locked {
		s.securityEvent(r, audit.EventRateLimited, "", "", map[string]any{"action": "verify_email"})
		writeThrottled(w, "Too many verification attempts. Try again later.", ttl)
		return
	}

	user, err := s.Tokens.Consume(ctx, strings.TrimSpace(req.Token), auth.TokenVerification)
	switch {
	case errors.Is(err, auth.ErrInvalidOrExpiredToken):
		s.securityEvent(r, audit.EventTokenRejected, "", "", map[string]any{"kind": string(auth.TokenVerification)})
		writeError(w, http.StatusBadRequest, "Invalid or expired verification token")
		return
	case err != nil:
		s.log(r).Error().Err(err).Msg("verify email: consume token failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.recordAudit(r, audit.Entry{
		Action:     audit.ActionEmailVerified,
		ResourceID: user.ID,
		UserID:     user.ID,
		NewValues:  map[string]any{"is_verified": true},
		Metadata:   requestMetadata(r, ip),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Email verified successfully! You can now log in.",
		"user":    user.Public(),
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

const resendVerificationMessage = "If an account with this email exists, a verification email has been sent."

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.bind(w, r, &req) {
		return
	}

	ctx := r.Context()
	if wait := s.RateLimiter.Cooldown(ctx, auth.CooldownVerification, req.Email); wait > 0 {
		writeThrottled(w, "Please wait before requesting another verification email.", wait)
		return
	}

	user, err := s.Credentials.FindByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		// unknown addresses get the same cooldown as real ones
		s.RateLimiter.StartCooldown(ctx, auth.CooldownVerification, req.Email)
		writeJSON(w, http.StatusOK, map[string]string{"message": resendVerificationMessage})
		return
	case err != nil:
		s.log(r).Error().Err(err).Msg("resend verification: lookup failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user.IsVerified {
		s.RateLimiter.StartCooldown(ctx, auth.CooldownVerification, req.Email)
		writeError(w, http.StatusBadRequest, "Email is already verified")
		return
	}

	err = s.sendVerification(r, user)
	switch {
	case errors.Is(err, auth.ErrAlreadyVerified):
		writeError(w, http.StatusBadRequest, "Email is already verified")
		return
	case errors.Is(err, auth.ErrUserNotFound):
	case err != nil:
		s.log(r).Error().Err(err).Str("user_id", user.ID).Msg("resend verification failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.RateLimiter.StartCooldown(ctx, auth.CooldownVerification, req.Email)

	writeJSON(w, http.StatusOK, map[string]string{"message": resendVerificationMessage})
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	pair, _, err := s.Sessions.Refresh(r.Context(), req.RefreshToken, s.Credentials)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pair)
	case errors.Is(err, auth.ErrPrincipalNotFound):
		writeError(w, http.StatusUnauthorized, "User not found")
	case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrInvalidSignature):
		s.securityEvent(r, audit.EventTokenRejected, "", "", map[string]any{"kind": string(auth.RefreshToken)})
		writeError(w, http.StatusForbidden, "Invalid or expired refresh token")
	default:
		s.log(r).Error().Err(err).Msg("refresh token failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": currentUser(r.Context()).Public()})
}

// handleLogout only acknowledges; issued tokens stay valid until they expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) sendVerification(r *http.Request, user *auth.User) error {
	issued, err := s.Tokens.Issue(r.Context(), user.ID, auth.TokenVerification)
	if err != nil {
		return err
	}
	locale := i18n.Preferred(r, user.Locale)
	return s.Mailer.SendVerification(r.Context(), locale, user.Email, user.Name, issued.Value)
}

func requestMetadata(r *http.Request, ip string) map[string]any {
	ua := r.UserAgent()
	if ua == "" {
		ua = "Unknown"
	}
	return map[string]any{"ip_address": ip, "user_agent": ua}
}
