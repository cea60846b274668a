package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"
)

// ResetUserRecord is the flow-local view of a user with its pending reset state.
type ResetUserRecord struct {
	UserID         string
	Name           string
	Email          string
	RegNo          string
	ResetCode      string
	ResetExpiresAt time.Time
}

// ResetMail is the message handed to the mail collaborator after a code is issued.
type ResetMail struct {
	To        string
	Name      string
	Code      string
	ExpiresIn time.Duration
}

type PasswordResetMetrics struct {
	PasswordResetRequest          int
	PasswordResetSuccess          int
	PasswordResetFailure          int
	PasswordResetExpired          int
	PasswordResetAttemptsExceeded int
}

type PasswordResetEvents struct {
	PasswordResetRequest          string
	PasswordResetConfirmSuccess   string
	PasswordResetConfirmFailure   string
	PasswordResetAttemptsExceeded string
}

type PasswordResetErrors struct {
	EngineNotReady   error
	InvalidInput     error
	PasswordPolicy   error
	InvalidReset     error
	ExpiredReset     error
	UserNotFound     error
	RateLimited      error
	StoreUnavailable error
}

type PasswordResetDeps struct {
	ResetTTL            time.Duration
	EnumerationDelayMin time.Duration
	EnumerationDelayMax time.Duration

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time
	Sleep               func(context.Context, time.Duration)
	RandomDuration      func(time.Duration, time.Duration) (time.Duration, error)

	CheckRequestLimiter func(context.Context, string, string) error
	CheckConfirmLimiter func(context.Context, string, string) error
	MapLimiterError     func(error) error
	ResetLoginRate      func(context.Context, string, string) error

	GetUserByEmail   func(context.Context, string) (ResetUserRecord, error)
	SetResetCode     func(context.Context, string, string, time.Time) error
	ClearResetCode   func(context.Context, string, string) error
	ConsumeResetCode func(context.Context, string, string, string, time.Time) (bool, error)
	MapStoreError    func(error) error

	NewResetCode func() (string, error)
	HashPassword func(string) (string, error)
	EnqueueMail  func(ResetMail) bool

	MetricInc     func(int)
	EmitAudit     func(context.Context, string, bool, string, error, func() map[string]string)
	EmitRateLimit func(context.Context, string, func() map[string]string)
	Warn          func(string, ...any)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
	Errors  PasswordResetErrors
}

// RunRequestPasswordReset issues a fresh code for email and hands it to the mailer.
// Unknown emails return nil after a short random delay without touching the store.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if deps.GetUserByEmail == nil || deps.SetResetCode == nil || deps.NewResetCode == nil {
		return deps.Errors.EngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return deps.Errors.InvalidInput
	}

	ip := deps.ClientIPFromContext(ctx)
	if err := deps.CheckRequestLimiter(ctx, email, ip); err != nil {
		return rateLimitedReset(ctx, "password_reset_request", email, err, deps)
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			return deps.MapStoreError(err)
		}
		deps.MetricInc(deps.Metrics.PasswordResetRequest)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, "", nil, func() map[string]string {
			return map[string]string{
				"enumeration_safe": "true",
			}
		})
		if delay, err := deps.RandomDuration(deps.EnumerationDelayMin, deps.EnumerationDelayMax); err == nil && delay > 0 {
			deps.Sleep(ctx, delay)
		}
		return nil
	}

	code, err := deps.NewResetCode()
	if err != nil {
		return deps.Errors.StoreUnavailable
	}
	expiresAt := deps.Now().Add(deps.ResetTTL)
	if err := deps.SetResetCode(ctx, user.UserID, code, expiresAt); err != nil {
		mapped := deps.MapStoreError(err)
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, user.UserID, mapped, nil)
		return mapped
	}

	if deps.EnqueueMail != nil {
		queued := deps.EnqueueMail(ResetMail{
			To:        user.Email,
			Name:      user.Name,
			Code:      code,
			ExpiresIn: deps.ResetTTL,
		})
		if !queued {
			deps.Warn("sphereauth: reset mail not queued", "user_id", user.UserID)
		}
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, user.UserID, nil, func() map[string]string {
		return map[string]string{
			"enumeration_safe": "true",
		}
	})
	return nil
}

// RunConfirmPasswordReset consumes code for email and replaces the password. The
// replacement and the clearing of the code happen in one conditional store update.
func RunConfirmPasswordReset(ctx context.Context, email, code, newPassword string, deps PasswordResetDeps) error {
	normalizePasswordResetDeps(&deps)

	if deps.GetUserByEmail == nil ||
		deps.ConsumeResetCode == nil ||
		deps.ClearResetCode == nil ||
		deps.HashPassword == nil {
		return deps.Errors.EngineNotReady
	}

	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" || newPassword == "" {
		return deps.Errors.InvalidInput
	}

	ip := deps.ClientIPFromContext(ctx)
	if err := deps.CheckConfirmLimiter(ctx, email, ip); err != nil {
		return rateLimitedReset(ctx, "password_reset_confirm", email, err, deps)
	}

	failure := func(userID, reason string, err error) error {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirmFailure, false, userID, err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return err
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return failure("", "user_not_found", deps.Errors.InvalidReset)
		}
		return failure("", "lookup_failed", deps.MapStoreError(err))
	}
	if user.ResetCode == "" || user.ResetExpiresAt.IsZero() {
		return failure(user.UserID, "no_pending_code", deps.Errors.InvalidReset)
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(user.ResetCode)) != 1 {
		return failure(user.UserID, "code_mismatch", deps.Errors.InvalidReset)
	}

	now := deps.Now()
	if now.After(user.ResetExpiresAt) {
		if err := deps.ClearResetCode(ctx, user.UserID, user.ResetCode); err != nil {
			deps.Warn("sphereauth: expired reset code clear failed", "user_id", user.UserID, "error", err)
		}
		deps.MetricInc(deps.Metrics.PasswordResetExpired)
		return failure(user.UserID, "expired", deps.Errors.ExpiredReset)
	}

	newHash, err := deps.HashPassword(newPassword)
	newPassword = ""
	if err != nil {
		return failure(user.UserID, "hash_policy", deps.Errors.PasswordPolicy)
	}

	consumed, err := deps.ConsumeResetCode(ctx, user.UserID, code, newHash, now)
	if err != nil {
		return failure(user.UserID, "consume_failed", deps.MapStoreError(err))
	}
	if !consumed {
		return failure(user.UserID, "already_consumed", deps.Errors.InvalidReset)
	}

	// Students may sign in by email or registration number; each has its own counter.
	if deps.ResetLoginRate != nil {
		for _, identifier := range []string{user.Email, user.RegNo} {
			if identifier == "" {
				continue
			}
			if err := deps.ResetLoginRate(ctx, identifier, ip); err != nil {
				deps.Warn("sphereauth: login throttle reset after password reset failed", "user_id", user.UserID, "error", err)
			}
		}
	}

	deps.MetricInc(deps.Metrics.PasswordResetSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirmSuccess, true, user.UserID, nil, nil)
	return nil
}

func rateLimitedReset(ctx context.Context, scope, email string, err error, deps PasswordResetDeps) error {
	mapped := deps.MapLimiterError(err)
	if errors.Is(mapped, deps.Errors.RateLimited) {
		deps.MetricInc(deps.Metrics.PasswordResetAttemptsExceeded)
		deps.EmitAudit(ctx, deps.Events.PasswordResetAttemptsExceeded, false, "", mapped, func() map[string]string {
			return map[string]string{
				"scope": scope,
			}
		})
		deps.EmitRateLimit(ctx, scope, func() map[string]string {
			return map[string]string{
				"email": email,
			}
		})
	}
	return mapped
}

func normalizePasswordResetDeps(deps *PasswordResetDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
			}
		}
	}
	if deps.RandomDuration == nil {
		deps.RandomDuration = func(min, _ time.Duration) (time.Duration, error) { return min, nil }
	}
	if deps.CheckRequestLimiter == nil {
		deps.CheckRequestLimiter = func(context.Context, string, string) error { return nil }
	}
	if deps.CheckConfirmLimiter == nil {
		deps.CheckConfirmLimiter = func(context.Context, string, string) error { return nil }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return deps.Errors.StoreUnavailable }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.EmitRateLimit == nil {
		deps.EmitRateLimit = func(context.Context, string, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}
