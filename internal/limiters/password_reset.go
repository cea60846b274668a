package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

type PasswordResetConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxAttempts              int
}

// PasswordResetLimiter throttles reset requests and confirmations separately, each
// per email and per client address.
type PasswordResetLimiter struct {
	redis  redis.UniversalClient
	config PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRequest counts one reset request. Unknown emails are counted the same as
// known ones.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	return l.check(ctx, requestIdentifierKey(email), requestIPKey(ip), ip)
}

// CheckConfirm counts one confirmation attempt. Guessing codes for one email is
// bounded by the identifier budget regardless of how many addresses are used.
func (l *PasswordResetLimiter) CheckConfirm(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	return l.check(ctx, confirmIdentifierKey(email), confirmIPKey(ip), ip)
}

func (l *PasswordResetLimiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return l.config.Window
}

func (l *PasswordResetLimiter) check(ctx context.Context, identifierKey, ipKey, ip string) error {
	if l.config.EnableIdentifierThrottle {
		if err := l.enforceFixedWindow(ctx, identifierKey); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, ipKey); err != nil {
			return err
		}
	}
	return nil
}

func (l *PasswordResetLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := incrementWindow(ctx, l.redis, key, l.config.Window, ErrResetRedisUnavailable)
	if err != nil {
		return err
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrResetRateLimited
	}

	return nil
}

func requestIdentifierKey(email string) string {
	return "spri:" + normalizeIdentifier(email)
}

func requestIPKey(ip string) string {
	return "sprip:" + ip
}

func confirmIdentifierKey(email string) string {
	return "sprc:" + normalizeIdentifier(email)
}

func confirmIPKey(ip string) string {
	return "sprcip:" + ip
}
