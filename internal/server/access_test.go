package server

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountforge/internal/auth"
	"accountforge/internal/config"
)

func TestEveryRouteHasAnAccessRule(t *testing.T) {
	s := NewServer(config.Config{}, Deps{}, zerolog.Nop())
	routes, ok := s.Router().(chi.Routes)
	require.True(t, ok)

	mounted := 0
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		mounted++
		assert.NotPanics(t, func() { accessLevel(method, route) }, "%s %s", method, route)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, len(endpointAccess), mounted, "every rule is mounted")
}

func TestAccessLevelPanicsForUnknownRoute(t *testing.T) {
	assert.PanicsWithValue(t, "missing access rule for GET /api/unknown", func() {
		accessLevel(http.MethodGet, "/api/unknown")
	})
	assert.Equal(t, auth.AccessSuperAdmin, accessLevel(http.MethodDelete, "/api/admin/users/{userId}"))
	assert.Equal(t, auth.AccessAdmin, accessLevel(http.MethodGet, "/api/admin/users/{userId}"))
}

func TestClientIPHonoursTrustedProxiesOnly(t *testing.T) {
	trusted := parseProxyCIDRs([]string{"10.0.0.0/8", "127.0.0.1", "bogus"})
	require.Len(t, trusted, 2)

	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.1.2.3")
	assert.Equal(t, "198.51.100.4", clientIP(r, trusted))

	r.RemoteAddr = "203.0.113.9:5555"
	assert.Equal(t, "203.0.113.9", clientIP(r, trusted), "untrusted peers cannot spoof")

	r.RemoteAddr = "127.0.0.1:1"
	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "192.0.2.44")
	assert.Equal(t, "192.0.2.44", clientIP(r, trusted))
}

func TestBearerToken(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(r))
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, bearerToken(r))
	r.Header.Set("Authorization", "bearer  tok ")
	assert.Equal(t, "tok", bearerToken(r))
}
