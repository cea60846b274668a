package sphereauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventRegisterSuccess               = "account_registration_success"
	auditEventRegisterFailure               = "account_registration_failure"
	auditEventRegisterDuplicate             = "account_registration_duplicate"
	auditEventRegisterRateLimited           = "account_registration_rate_limited"
	auditEventLoginSuccess                  = "login_success"
	auditEventLoginFailure                  = "login_failure"
	auditEventLoginRateLimited              = "login_rate_limited"
	auditEventPasswordResetRequest          = "password_reset_request"
	auditEventPasswordResetConfirmSuccess   = "password_reset_confirm_success"
	auditEventPasswordResetConfirmFailure   = "password_reset_confirm_failure"
	auditEventPasswordResetAttemptsExceeded = "password_reset_attempts_exceeded"
	auditEventStudentRecordUpdate           = "student_record_update"
	auditEventRateLimitTriggered            = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidReset       AuditErrorCode = "invalid_reset"
	auditErrExpiredReset       AuditErrorCode = "expired_reset"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrStudentNotFound    AuditErrorCode = "student_not_found"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		RequestID: RequestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if role, ok := metadata["role"]; ok {
		event.Role = role
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case IsRateLimited(err):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidReset):
		return auditErrInvalidReset
	case errors.Is(err, ErrExpiredReset):
		return auditErrExpiredReset
	case errors.Is(err, ErrDuplicateIdentity):
		return auditErrDuplicate
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrStudentNotFound):
		return auditErrStudentNotFound
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrRateLimiterUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
