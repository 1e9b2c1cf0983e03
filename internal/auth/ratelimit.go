package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter keeps attempt counters and cooldowns in redis.
type RateLimiter struct {
	Redis *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{Redis: client}
}

const (
	loginMaxAttempts         = 5
	loginAttemptTTL          = 10 * time.Minute
	loginBanTTL              = 1 * time.Hour
	EmailCooldown            = 60 * time.Second
	verifyMaxAttempts        = 10
	verifyAttemptTTL         = 10 * time.Minute
	resetMaxAttempts         = 5
	resetAttemptTTL          = 15 * time.Minute
	registerMaxAttemptsIP    = 10
	registerAttemptTTLIP     = 30 * time.Minute
	registerMaxAttemptsEmail = 3
	registerAttemptTTLEmail  = 30 * time.Minute
)

// CooldownKind names an email-sending action throttled per address.
type CooldownKind string

const (
	CooldownVerification  CooldownKind = "verify_email"
	CooldownPasswordReset CooldownKind = "reset_email"
)

type window struct {
	key string
	max int64
	ttl time.Duration
}

func loginAttemptKey(ip string) string { return "login_attempts:" + ip }
func loginBanKey(ip string) string     { return "login_ban:" + ip }
func verifyAttemptKey(ip string) string {
	return "verify_attempts:" + ip
}

func emailKey(prefix, email string) string {
	if email == "" {
		return ""
	}
	return prefix + strings.ToLower(strings.TrimSpace(email))
}

func ipKey(prefix, ip string) string {
	if ip == "" {
		return ""
	}
	return prefix + ip
}

func cooldownKey(kind CooldownKind, email string) string {
	return emailKey("cooldown:"+string(kind)+":", email)
}

func (r *RateLimiter) IsIPBanned(ctx context.Context, ip string) bool {
	exists, _ := r.Redis.Exists(ctx, loginBanKey(ip)).Result()
	return exists == 1
}

// RegisterLoginFailure counts a failed login and bans the IP once the
// window fills up.
func (r *RateLimiter) RegisterLoginFailure(ctx context.Context, ip string) error {
	key := loginAttemptKey(ip)

	attempts, err := r.Redis.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if attempts == 1 {
		r.Redis.Expire(ctx, key, loginAttemptTTL)
	}
	if attempts >= loginMaxAttempts {
		r.Redis.Set(ctx, loginBanKey(ip), "1", loginBanTTL)
		r.Redis.Expire(ctx, key, loginBanTTL)
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, ip string) {
	r.Redis.Del(ctx, loginAttemptKey(ip))
}

func (r *RateLimiter) RegisterVerifyAttempt(ctx context.Context, ip string) (bool, time.Duration, error) {
	return r.hit(ctx, window{verifyAttemptKey(ip), verifyMaxAttempts, verifyAttemptTTL})
}

func (r *RateLimiter) RegisterResetAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	return r.hit(ctx,
		window{emailKey("reset_attempts:", email), resetMaxAttempts, resetAttemptTTL},
		window{ipKey("reset_attempts_ip:", ip), resetMaxAttempts, resetAttemptTTL},
	)
}

func (r *RateLimiter) RegisterRegisterAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	return r.hit(ctx,
		window{ipKey("register_attempts_ip:", ip), registerMaxAttemptsIP, registerAttemptTTLIP},
		window{emailKey("register_attempts_email:", email), registerMaxAttemptsEmail, registerAttemptTTLEmail},
	)
}

// hit increments every window and reports whether any of them went past its
// limit, together with the longest remaining TTL.
func (r *RateLimiter) hit(ctx context.Context, windows ...window) (bool, time.Duration, error) {
	locked := false
	var ttlMax time.Duration

	for _, w := range windows {
		if w.key == "" {
			continue
		}
		attempts, err := r.Redis.Incr(ctx, w.key).Result()
		if err != nil {
			return false, 0, err
		}
		if attempts == 1 {
			r.Redis.Expire(ctx, w.key, w.ttl)
		}
		if attempts > w.max {
			locked = true
		}
		if ttl, _ := r.Redis.TTL(ctx, w.key).Result(); ttl > ttlMax {
			ttlMax = ttl
		}
	}

	return locked, ttlMax, nil
}

// Cooldown returns the remaining wait before another email of kind may be
// sent to email, or zero when sending is allowed.
func (r *RateLimiter) Cooldown(ctx context.Context, kind CooldownKind, email string) time.Duration {
	ttl, err := r.Redis.TTL(ctx, cooldownKey(kind, email)).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}

func (r *RateLimiter) StartCooldown(ctx context.Context, kind CooldownKind, email string) {
	r.Redis.Set(ctx, cooldownKey(kind, email), "1", EmailCooldown)
}
