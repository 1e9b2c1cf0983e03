package server

import (
	"errors"
	"net/http"
	"strings"

	"accountforge/internal/audit"
	"accountforge/internal/auth"
	"accountforge/internal/i18n"
)

const (
	forgotPasswordMessage  = "If an account with this email exists, a password reset email has been sent."
	passwordTooLongMessage = "Password must be at most 72 bytes long"
)

// handleForgotPassword answers the same way whether or not the account
// exists, including while the per-address cooldown is running.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.bind(w, r, &req) {
		return
	}

	ctx := r.Context()
	ip := clientIP(r, s.trustedProxies)
	if locked, ttl, err := s.RateLimiter.RegisterResetAttempt(ctx, req.Email, ip); err != nil {
		s.log(r).Error().Err(err).Msg("forgot password: rate limit check failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	} else if locked {
		s.securityEvent(r, audit.EventRateLimited, req.Email, "", map[string]any{"action": "forgot_password"})
		writeThrottled(w, "Too many reset requests. Try again later.", ttl)
		return
	}

	if s.RateLimiter.Cooldown(ctx, auth.CooldownPasswordReset, req.Email) > 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
		return
	}

	user, err := s.Credentials.FindByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
		return
	case err != nil:
		s.log(r).Error().Err(err).Msg("forgot password: lookup failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	issued, err := s.Tokens.Issue(ctx, user.ID, auth.TokenReset)
	if err != nil {
		s.log(r).Error().Err(err).Str("user_id", user.ID).Msg("forgot password: issue token failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	locale := i18n.Preferred(r, user.Locale)
	if err := s.Mailer.SendPasswordReset(ctx, locale, user.Email, user.Name, issued.Value); err != nil {
		s.log(r).Error().Err(err).Str("user_id", user.ID).Msg("forgot password: send email failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.RateLimiter.StartCooldown(ctx, auth.CooldownPasswordReset, req.Email)

	writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,maxbytes=72"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.bind(w, r, &req) {
		return
	}

	user, err := s.Credentials.ResetPassword(r.Context(), strings.TrimSpace(req.Token), req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrInvalidOrExpiredToken):
		s.securityEvent(r, audit.EventTokenRejected, "", "", map[string]any{"kind": string(auth.TokenReset)})
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, passwordTooLongMessage)
		return
	case err != nil:
		s.log(r).Error().Err(err).Msg("reset password failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.recordAudit(r, audit.Entry{
		Action:     audit.ActionPasswordReset,
		ResourceID: user.ID,
		UserID:     user.ID,
		Metadata:   requestMetadata(r, clientIP(r, s.trustedProxies)),
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully! You can now log in with your new password.",
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,maxbytes=72"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !s.bind(w, r, &req) {
		return
	}

	user := currentUser(r.Context())
	_, err := s.Credentials.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, passwordTooLongMessage)
		return
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case err != nil:
		s.log(r).Error().Err(err).Str("user_id", user.ID).Msg("change password failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.recordAudit(r, audit.Entry{
		Action:     audit.ActionPasswordChange,
		ResourceID: user.ID,
		UserID:     user.ID,
		Metadata:   requestMetadata(r, clientIP(r, s.trustedProxies)),
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}
