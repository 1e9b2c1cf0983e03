package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"accountforge/internal/audit"
	"accountforge/internal/auth"
)

const (
	recentActivityLimit  = 10
	recentSecurityEvents = 10
	recentUsersWindow    = 7 * 24 * time.Hour
)

// adminUser is the admin view of an account; it adds the last login address.
type adminUser struct {
	auth.Public
	LastLoginIP *string `json:"last_login_ip,omitempty"`
}

func adminView(u *auth.User) adminUser {
	return adminUser{Public: u.Public(), LastLoginIP: u.LastLoginIP}
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := pageParams(r, auth.DefaultPageSize, auth.MaxPageSize)
	filter := auth.UserFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Page:   page,
		Limit:  limit,
	}

	if v := q.Get("role"); v != "" {
		role, ok := auth.ParseRole(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid role filter")
			return
		}
		filter.Role = &role
	}
	if v := q.Get("is_verified"); v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid is_verified filter")
			return
		}
		filter.IsVerified = &verified
	}
	since, until, ok := dateRange(w, r)
	if !ok {
		return
	}
	filter.Since, filter.Until = since, until

	users, total, err := s.Users.ListUsers(r.Context(), filter)
	if err != nil {
		s.log(r).Error().Err(err).Msg("admin: list users failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	views := make([]adminUser, 0, len(users))
	for i := range users {
		views = append(views, adminView(&users[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":      views,
		"pagination": newPagination(page, limit, total),
	})
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	target, ok := s.targetUser(w, r)
	if !ok {
		return
	}

	activity, err := s.Audit.ForUser(r.Context(), target.ID, recentActivityLimit)
	if err != nil {
		s.log(r).Error().Err(err).Str("user_id", target.ID).Msg("admin: load activity failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if activity == nil {
		activity = []audit.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":            adminView(target),
		"recent_activity": activity,
	})
}

type adminUpdateRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Phone       *string        `json:"phone" validate:"omitempty,max=32"`
	Role        *string        `json:"role" validate:"omitempty,oneof=user admin merchant"`
	Timezone    *string        `json:"timezone" validate:"omitempty,max=64"`
	Locale      *string        `json:"locale" validate:"omitempty,max=16"`
	Preferences map[string]any `json:"preferences"`
}

// handleAdminUpdateUser edits another account. Role changes need super-admin
// on top of the route's admin level.
func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateRequest
	if !s.bind(w, r, &req) {
		return
	}

	actor := currentUser(r.Context())
	changes := auth.ProfileChanges{
		Name:        trimmed(req.Name),
		Phone:       trimmed(req.Phone),
		Timezone:    trimmed(req.Timezone),
		Locale:      trimmed(req.Locale),
		Preferences: req.Preferences,
	}
	if req.Role != nil {
		role, _ := auth.ParseRole(*req.Role)
		if _, err := s.Gate.Authorize(r.Context(), actor.ID, auth.AccessSuperAdmin); err != nil {
			if errors.Is(err, auth.ErrPrincipalNotFound) {
				writeError(w, http.StatusUnauthorized, "User not found")
				return
			}
			if !errors.Is(err, auth.ErrForbidden) {
				s.log(r).Error().Err(err).Msg("admin: authorize role change failed")
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			s.securityEvent(r, audit.EventAccessDenied, actor.Email, actor.ID, map[string]any{
				"required": auth.AccessSuperAdmin.String(),
				"action":   "role_change",
			})
			writeError(w, http.StatusForbidden, "Super admin access required to change roles")
			return
		}
		changes.Role = &role
	}

	before, ok := s.targetUser(w, r)
	if !ok {
		return
	}
	updated, err := s.Users.UpdateProfile(r.Context(), before.ID, changes)
	if err != nil {
		s.log(r).Error().Err(err).Str("user_id", before.ID).Msg("admin: update user failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	s.recordAudit(r, audit.Entry{
		Action:     audit.ActionAdminUserUpdate,
		ResourceID: before.ID,
		UserID:     actor.ID,
		OldValues:  profileValues(before, changes),
		NewValues:  profileValues(updated, changes),
		Metadata:   map[string]any{"updated_by_admin": actor.ID},
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User updated successfully",
		"user":    adminView(updated),
	})
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID, ok := userIDParam(w, r)
	if !ok {
		return
	}
	actor := currentUser(r.Context())

	before, err := s.Credentials.Delete(r.Context(), actor.ID, targetID)
	switch {
	case errors.Is(err, auth.ErrSelfDeleteForbidden):
		writeError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return
	case err != nil:
		s.log(r).Error().Err(err).Str("user_id", targetID).Msg("admin: delete user failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.recordAudit(r, audit.Entry{
		Action:     audit.ActionAdminUserDelete,
		ResourceID: before.ID,
		UserID:     actor.ID,
		OldValues: map[string]any{
			"email": before.Email,
			"name":  before.Name,
			"role":  before.Role,
		},
		Metadata: map[string]any{
			"deleted_by_admin": actor.ID,
			"soft_delete":      true,
		},
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (s *Server) handleAdminAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, until, ok := dateRange(w, r)
	if !ok {
		return
	}
	page, limit := pageParams(r, audit.DefaultLimit, audit.MaxLimit)

	filter := audit.Filter{
		Action:       strings.TrimSpace(q.Get("action")),
		ResourceType: strings.TrimSpace(q.Get("resource_type")),
		UserID:       strings.TrimSpace(q.Get("user_id")),
		Since:        since,
		Until:        until,
		Limit:        limit,
		Offset:       (page - 1) * limit,
	}
	if filter.UserID != "" && uuid.Validate(filter.UserID) != nil {
		writeError(w, http.StatusBadRequest, "Invalid user_id filter")
		return
	}

	logs, total, err := s.Audit.Search(r.Context(), filter)
	if err != nil {
		s.log(r).Error().Err(err).Msg("admin: search audit logs failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if logs == nil {
		logs = []audit.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":       logs,
		"pagination": newPagination(page, limit, total),
	})
}

type roleCount struct {
	Role  auth.Role `json:"role"`
	Count int       `json:"count"`
}

func (s *Server) handleAdminDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := s.Users.Stats(ctx, s.now().Add(-recentUsersWindow))
	if err != nil {
		s.log(r).Error().Err(err).Msg("admin: user stats failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	logs, err := s.Audit.Stats(ctx)
	if err != nil {
		s.log(r).Error().Err(err).Msg("admin: audit stats failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	roles := make([]roleCount, 0, len(users.RoleDistribution))
	for role, n := range users.RoleDistribution {
		roles = append(roles, roleCount{Role: role, Count: n})
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Role < roles[j].Role })

	events := []audit.SecurityEvent{}
	if s.Security != nil {
		recent, err := s.Security.Recent(ctx, recentSecurityEvents)
		if err != nil {
			s.log(r).Warn().Err(err).Msg("admin: security events unavailable")
		} else if recent != nil {
			events = recent
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":             users,
		"audit_logs":        logs,
		"role_distribution": roles,
		"security_events":   events,
	})
}

// targetUser loads the {userId} account, writing 400/404/500 itself.
func (s *Server) targetUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	id, ok := userIDParam(w, r)
	if !ok {
		return nil, false
	}
	user, err := s.Credentials.FindByID(r.Context(), id)
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
		return nil, false
	case err != nil:
		s.log(r).Error().Err(err).Str("user_id", id).Msg("admin: load user failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	return user, true
}

func userIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "userId")
	if uuid.Validate(id) != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return "", false
	}
	return id, true
}
