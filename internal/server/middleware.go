package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"accountforge/internal/audit"
	"accountforge/internal/auth"
)

type ctxKey string

const userContextKey ctxKey = "user"

// requireAccess authenticates the bearer token for non-public levels and asks
// the gate to authorize the caller. The gate's fresh copy of the user is put
// on the request context next to the principal.
func (s *Server) requireAccess(level auth.AccessLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if level == auth.AccessPublic {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Access token required")
				return
			}

			payload, err := s.Sessions.Verify(token, auth.AccessToken)
			if err != nil {
				s.securityEvent(r, audit.EventTokenRejected, "", "", map[string]any{"reason": err.Error()})
				writeError(w, http.StatusForbidden, "Invalid or expired token")
				return
			}

			user, err := s.Gate.Authorize(r.Context(), payload.UserID, level)
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrPrincipalNotFound):
				writeError(w, http.StatusUnauthorized, "User not found")
				return
			case errors.Is(err, auth.ErrForbidden):
				s.securityEvent(r, audit.EventAccessDenied, payload.Email, payload.UserID, map[string]any{
					"required": level.String(),
					"path":     r.URL.Path,
				})
				writeError(w, http.StatusForbidden, forbiddenMessage(level))
				return
			default:
				s.log(r).Error().Err(err).Msg("authorize request")
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), auth.Principal{
				UserID: user.ID,
				Email:  user.Email,
				Role:   user.Role,
			})
			ctx = context.WithValue(ctx, userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func forbiddenMessage(level auth.AccessLevel) string {
	if level == auth.AccessSuperAdmin {
		return "Super admin access required"
	}
	return "Admin access required"
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func currentUser(ctx context.Context) *auth.User {
	if val, ok := ctx.Value(userContextKey).(*auth.User); ok {
		return val
	}
	return nil
}
