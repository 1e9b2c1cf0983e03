package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SecurityEvent describes an authentication event that has no reliable actor,
// such as a failed login for an unknown address.
type SecurityEvent struct {
	EventType string         `json:"eventType"`
	Email     string         `json:"email,omitempty"`
	UserID    string         `json:"userId,omitempty"`
	IP        string         `json:"ip"`
	UserAgent string         `json:"userAgent"`
	Timestamp time.Time      `json:"timestamp"`
	Meta      map[string]any `json:"meta,omitempty"`
}

const (
	EventLoginFailed      = "login_failed"
	EventLoginBlocked     = "login_blocked"
	EventRateLimited      = "rate_limited"
	EventTokenRejected    = "token_rejected"
	EventAccessDenied     = "access_denied"
	securityEventsKey     = "security_events"
	DefaultSecurityMaxLen = 1000
)

// SecurityLog keeps the newest MaxLen events in a redis list.
type SecurityLog struct {
	Redis  *redis.Client
	MaxLen int64
	now    func() time.Time
}

func NewSecurityLog(client *redis.Client, maxLen int64) *SecurityLog {
	if maxLen <= 0 {
		maxLen = DefaultSecurityMaxLen
	}
	return &SecurityLog{Redis: client, MaxLen: maxLen, now: time.Now}
}

func (s *SecurityLog) Log(ctx context.Context, e SecurityEvent) error {
	e.Timestamp = s.now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	pipe := s.Redis.Pipeline()
	pipe.LPush(ctx, securityEventsKey, data)
	pipe.LTrim(ctx, securityEventsKey, 0, s.MaxLen-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to n events, newest first.
func (s *SecurityLog) Recent(ctx context.Context, n int64) ([]SecurityEvent, error) {
	if n <= 0 {
		n = 20
	}
	raw, err := s.Redis.LRange(ctx, securityEventsKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	events := make([]SecurityEvent, 0, len(raw))
	for _, item := range raw {
		var e SecurityEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
