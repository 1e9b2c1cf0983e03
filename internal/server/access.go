package server

import (
	"fmt"
	"net/http"

	"accountforge/internal/auth"
)

type AccessRule struct {
	Method string
	Path   string
	Level  auth.AccessLevel
}

// endpointAccess is the single source of route permissions. Router panics at
// startup for a route that has no entry here.
var endpointAccess = []AccessRule{
	{Method: http.MethodGet, Path: "/api/health", Level: auth.AccessPublic},
	{Method: http.MethodGet, Path: "/api/test", Level: auth.AccessPublic},
	{Method: http.MethodGet, Path: "/uploads/avatars/*", Level: auth.AccessPublic},

	{Method: http.MethodPost, Path: "/api/auth/register", Level: auth.AccessPublic},
	{Method: http.MethodPost, Path: "/api/auth/login", Level: auth.AccessPublic},
	{Method: http.MethodPost, Path: "/api/auth/verify-email", Level: auth.AccessPublic},
	{Method: http.MethodPost, Path: "/api/auth/resend-verification", Level: auth.AccessPublic},
	{Method: http.MethodPost, Path: "/api/auth/forgot-password", Level: auth.AccessPublic},
	{Method: http.MethodPost, Path: "/api/auth/reset-password", Level: auth.AccessPublic},
	{Method: http.MethodPost, Path: "/api/auth/refresh-token", Level: auth.AccessPublic},

	{Method: http.MethodGet, Path: "/api/auth/profile", Level: auth.AccessAuthenticated},
	{Method: http.MethodPost, Path: "/api/auth/logout", Level: auth.AccessAuthenticated},
	{Method: http.MethodGet, Path: "/api/users/profile", Level: auth.AccessAuthenticated},
	{Method: http.MethodPatch, Path: "/api/users/profile", Level: auth.AccessAuthenticated},
	{Method: http.MethodPost, Path: "/api/users/change-password", Level: auth.AccessAuthenticated},
	{Method: http.MethodPost, Path: "/api/users/avatar", Level: auth.AccessAuthenticated},
	{Method: http.MethodDelete, Path: "/api/users/avatar", Level: auth.AccessAuthenticated},

	{Method: http.MethodGet, Path: "/api/admin/users", Level: auth.AccessAdmin},
	{Method: http.MethodGet, Path: "/api/admin/users/{userId}", Level: auth.AccessAdmin},
	{Method: http.MethodPatch, Path: "/api/admin/users/{userId}", Level: auth.AccessAdmin},
	{Method: http.MethodDelete, Path: "/api/admin/users/{userId}", Level: auth.AccessSuperAdmin},
	{Method: http.MethodGet, Path: "/api/admin/audit-logs", Level: auth.AccessAdmin},
	{Method: http.MethodGet, Path: "/api/admin/dashboard/stats", Level: auth.AccessAdmin},
}

func accessLevel(method, path string) auth.AccessLevel {
	for _, rule := range endpointAccess {
		if rule.Method == method && rule.Path == path {
			return rule.Level
		}
	}
	panic(fmt.Sprintf("missing access rule for %s %s", method, path))
}
