package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"accountforge/internal/audit"
	"accountforge/internal/auth"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// bind decodes and validates a request body, writing the 400 itself.
func (s *Server) bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := s.validator.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) log(r *http.Request) *zerolog.Logger {
	c := s.Logger.With().Str("request_id", middleware.GetReqID(r.Context()))
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		c = c.Str("principal_id", p.UserID)
	}
	l := c.Logger()
	return &l
}

// recordAudit writes an audit entry; failures are logged and do not fail the request.
func (s *Server) recordAudit(r *http.Request, e audit.Entry) {
	if s.Audit == nil {
		return
	}
	if e.ResourceType == "" {
		e.ResourceType = audit.ResourceUser
	}
	if err := s.Audit.Log(r.Context(), e); err != nil {
		s.log(r).Warn().Err(err).Str("action", string(e.Action)).Msg("audit log write failed")
	}
}

func (s *Server) securityEvent(r *http.Request, eventType, email, userID string, meta map[string]any) {
	if s.Security == nil {
		return
	}
	err := s.Security.Log(r.Context(), audit.SecurityEvent{
		EventType: eventType,
		Email:     email,
		UserID:    userID,
		IP:        clientIP(r, s.trustedProxies),
		UserAgent: r.UserAgent(),
		Meta:      meta,
	})
	if err != nil {
		s.log(r).Warn().Err(err).Str("event", eventType).Msg("security event write failed")
	}
}

func writeThrottled(w http.ResponseWriter, message string, ttl time.Duration) {
	writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"message":  message,
		"cooldown": int64(ttl.Seconds()),
	})
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func newPagination(page, limit, total int) pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// pageParams reads page and limit, clamping limit to [1, max].
func pageParams(r *http.Request, defaultLimit, max int) (int, int) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > max {
		limit = max
	}
	return page, limit
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// queryTime parses an RFC 3339 timestamp or a plain date. A bare end date
// covers the whole day. ok is false only for a present but malformed value.
func queryTime(r *http.Request, key string, endOfDay bool) (t *time.Time, ok bool) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil, true
	}
	if parsed, err := time.Parse(time.RFC3339, v); err == nil {
		return &parsed, true
	}
	parsed, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, false
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, true
}

// dateRange reads start_date and end_date, writing the 400 itself.
func dateRange(w http.ResponseWriter, r *http.Request) (since, until *time.Time, ok bool) {
	if since, ok = queryTime(r, "start_date", false); !ok {
		writeError(w, http.StatusBadRequest, "Invalid start_date format")
		return nil, nil, false
	}
	if until, ok = queryTime(r, "end_date", true); !ok {
		writeError(w, http.StatusBadRequest, "Invalid end_date format")
		return nil, nil, false
	}
	return since, until, true
}

func clientIP(r *http.Request, trusted []net.IPNet) string {
	remoteHost, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || remoteHost == "" {
		remoteHost = r.RemoteAddr
	}

	// Forwarded headers count only when the direct peer is a trusted proxy.
	if remoteHost != "" && isTrustedProxy(remoteHost, trusted) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
		if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
			return strings.TrimSpace(xrip)
		}
	}

	return remoteHost
}

func parseProxyCIDRs(values []string) []net.IPNet {
	var nets []net.IPNet
	for _, v := range values {
		val := strings.TrimSpace(v)
		if val == "" {
			continue
		}
		if ip := net.ParseIP(val); ip != nil {
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		if _, cidr, err := net.ParseCIDR(val); err == nil {
			nets = append(nets, *cidr)
		}
	}
	return nets
}

func isTrustedProxy(ipStr string, proxies []net.IPNet) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, n := range proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
