package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRegistrationRateLimited      = errors.New("registration rate limited")
	ErrRegistrationRedisUnavailable = errors.New("registration redis unavailable")
)

type RegistrationConfig struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

// RegistrationLimiter caps how many sign-ups one client address may attempt per window.
type RegistrationLimiter struct {
	redis  redis.UniversalClient
	config RegistrationConfig
}

func NewRegistrationLimiter(redisClient redis.UniversalClient, cfg RegistrationConfig) *RegistrationLimiter {
	return &RegistrationLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enforce counts one registration attempt from ip. Attempts without a known
// client address are not throttled.
func (l *RegistrationLimiter) Enforce(ctx context.Context, ip string) error {
	if l == nil || !l.config.EnableIPThrottle || ip == "" {
		return nil
	}

	count, err := incrementWindow(ctx, l.redis, registrationIPKey(ip), l.config.Cooldown, ErrRegistrationRedisUnavailable)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxAttempts) {
		return ErrRegistrationRateLimited
	}

	return nil
}

func registrationIPKey(ip string) string {
	return "sreg:" + ip
}
