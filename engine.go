package sphereauth

import (
	"errors"
	"time"

	"github.com/elimusphere/sphereauth/internal/audit"
	"github.com/elimusphere/sphereauth/internal/limiters"
	"github.com/elimusphere/sphereauth/internal/rate"
	"github.com/elimusphere/sphereauth/jwt"
	"github.com/elimusphere/sphereauth/mail"
	"github.com/elimusphere/sphereauth/password"
	"go.uber.org/zap"
)

// Engine defines a public type used by sphereauth APIs.
//
// Engine is the credential store and reset-token manager for one deployment. It is
// created by Builder.Build and is safe for concurrent use.
type Engine struct {
	config              Config
	store               UserStore
	rateLimiter         *rate.Limiter
	resetLimiter        *limiters.PasswordResetLimiter
	registrationLimiter *limiters.RegistrationLimiter
	audit               *audit.Dispatcher
	metrics             *Metrics
	passwordHash        *password.Argon2
	jwtManager          *jwt.Manager
	mailer              *mail.Dispatcher
	logger              *zap.Logger
	clock               func() time.Time

	// dummyHash is verified for unknown identifiers so lookups that miss cost the
	// same as a password mismatch.
	dummyHash string
}

// Close stops the background audit and mail workers after draining their queues.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.mailer != nil {
		e.mailer.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped returns the number of audit events discarded because the buffer was full.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MailDropped returns the number of reset emails that could not be queued.
func (e *Engine) MailDropped() uint64 {
	if e == nil || e.mailer == nil {
		return 0
	}
	return e.mailer.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeLatency(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) warn(msg string, keysAndValues ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Sugar().Warnw(msg, keysAndValues...)
}

func roleValid(role string) bool {
	_, ok := ParseRole(role)
	return ok
}

func mapRegistrationLimiterError(err error) error {
	switch {
	case errors.Is(err, limiters.ErrRegistrationRateLimited):
		return ErrRegistrationRateLimited
	default:
		return ErrRateLimiterUnavailable
	}
}

func mapPasswordResetLimiterError(err error) error {
	switch {
	case errors.Is(err, limiters.ErrResetRateLimited):
		return ErrPasswordResetRateLimited
	default:
		return ErrRateLimiterUnavailable
	}
}

func isLoginRateLimited(err error) bool {
	return errors.Is(err, rate.ErrRateLimited)
}
