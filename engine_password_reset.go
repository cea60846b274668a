package sphereauth

import (
	"context"

	"github.com/elimusphere/sphereauth/internal"
	internalflows "github.com/elimusphere/sphereauth/internal/flows"
	"github.com/elimusphere/sphereauth/mail"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset issues a six digit code for email, replacing any pending code,
// and queues it for delivery. Unknown emails return nil so callers cannot learn which
// addresses are registered.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	return internalflows.RunRequestPasswordReset(ctx, email, e.passwordResetFlowDeps())
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset replaces the password of email when code matches its pending,
// unexpired reset code. A code can be consumed once; replays return ErrInvalidReset
// and expired codes return ErrExpiredReset.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	return internalflows.RunConfirmPasswordReset(ctx, email, code, newPassword, e.passwordResetFlowDeps())
}

func (e *Engine) passwordResetFlowDeps() internalflows.PasswordResetDeps {
	var cfg Config
	if e != nil {
		cfg = e.config
	}

	deps := internalflows.PasswordResetDeps{
		ResetTTL:            cfg.PasswordReset.ResetTTL,
		EnumerationDelayMin: cfg.PasswordReset.EnumerationDelayMin,
		EnumerationDelayMax: cfg.PasswordReset.EnumerationDelayMax,
		ClientIPFromContext: clientIPFromContext,
		Now:                 e.now,
		RandomDuration:      internal.RandomDuration,
		MapLimiterError:     mapPasswordResetLimiterError,
		MapStoreError:       mapStoreError,
		NewResetCode:        internal.NewResetCode,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Warn:          e.warn,
		Metrics: internalflows.PasswordResetMetrics{
			PasswordResetRequest:          int(MetricPasswordResetRequest),
			PasswordResetSuccess:          int(MetricPasswordResetConfirmSuccess),
			PasswordResetFailure:          int(MetricPasswordResetConfirmFailure),
			PasswordResetExpired:          int(MetricPasswordResetExpired),
			PasswordResetAttemptsExceeded: int(MetricPasswordResetAttemptsExceeded),
		},
		Events: internalflows.PasswordResetEvents{
			PasswordResetRequest:          auditEventPasswordResetRequest,
			PasswordResetConfirmSuccess:   auditEventPasswordResetConfirmSuccess,
			PasswordResetConfirmFailure:   auditEventPasswordResetConfirmFailure,
			PasswordResetAttemptsExceeded: auditEventPasswordResetAttemptsExceeded,
		},
		Errors: internalflows.PasswordResetErrors{
			EngineNotReady:   ErrEngineNotReady,
			InvalidInput:     ErrInvalidInput,
			PasswordPolicy:   ErrPasswordPolicy,
			InvalidReset:     ErrInvalidReset,
			ExpiredReset:     ErrExpiredReset,
			UserNotFound:     ErrUserNotFound,
			RateLimited:      ErrPasswordResetRateLimited,
			StoreUnavailable: ErrStoreUnavailable,
		},
	}

	if e == nil {
		return deps
	}

	if e.resetLimiter != nil {
		deps.CheckRequestLimiter = e.resetLimiter.CheckRequest
		deps.CheckConfirmLimiter = e.resetLimiter.CheckConfirm
	}
	if e.rateLimiter != nil {
		deps.ResetLoginRate = e.rateLimiter.ResetLogin
	}
	if e.passwordHash != nil {
		deps.HashPassword = e.passwordHash.Hash
	}
	if e.mailer != nil {
		deps.EnqueueMail = e.enqueueResetMail
	}
	if e.store != nil {
		deps.GetUserByEmail = func(ctx context.Context, email string) (internalflows.ResetUserRecord, error) {
			u, err := e.store.GetUserByEmail(ctx, email)
			if err != nil {
				return internalflows.ResetUserRecord{}, err
			}
			return internalflows.ResetUserRecord{
				UserID:         u.ID,
				Name:           u.Name,
				Email:          u.Email,
				RegNo:          u.RegNo,
				ResetCode:      u.ResetCode,
				ResetExpiresAt: u.ResetExpiresAt,
			}, nil
		}
		deps.SetResetCode = e.store.SetResetCode
		deps.ClearResetCode = e.store.ClearResetCode
		deps.ConsumeResetCode = e.store.ConsumeResetCode
	}

	return deps
}

func (e *Engine) enqueueResetMail(m internalflows.ResetMail) bool {
	msg := mail.ResetMessage(e.config.PasswordReset.MailSubject, m.To, m.Name, m.Code, m.ExpiresIn)
	if !e.mailer.Enqueue(msg) {
		e.metricInc(MetricResetMailDropped)
		return false
	}
	e.metricInc(MetricResetMailQueued)
	return true
}
