package flows

import (
	"context"
	"errors"
	"time"
)

// LoginUserRecord is a flow-local user model used by the verify flow.
type LoginUserRecord struct {
	UserID       string
	Name         string
	Email        string
	Role         string
	RegNo        string
	PasswordHash string
}

// LoginMetrics carries metric IDs needed by the verify flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	PasswordUpgraded int
}

// LoginEvents carries audit event names used by the verify flow.
type LoginEvents struct {
	LoginSuccess     string
	LoginFailure     string
	LoginRateLimited string
}

// LoginErrors carries host-level sentinel errors used by the verify flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidInput       error
	InvalidCredentials error
	LoginRateLimited   error
	UserNotFound       error
}

// LoginDeps captures verify dependencies.
type LoginDeps struct {
	StudentRole            string
	PasswordUpgradeOnLogin bool

	// DummyHash is verified when no user matches so both paths pay one hash.
	DummyHash string

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	CheckLoginRate     func(context.Context, string, string) error
	IncrementLoginRate func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string, string) error
	IsRateLimited      func(error) bool

	RoleValid          func(string) bool
	GetUserByEmail     func(context.Context, string) (LoginUserRecord, error)
	GetUserByRegNo     func(context.Context, string) (LoginUserRecord, error)
	UpdatePasswordHash func(context.Context, string, string) error
	MapStoreError      func(error) error

	VerifyPassword       func(string, string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)

	MetricInc      func(int)
	ObserveLatency func(time.Duration)
	EmitAudit      func(context.Context, string, bool, string, error, func() map[string]string)
	EmitRateLimit  func(context.Context, string, func() map[string]string)
	Warn           func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunVerify checks identifier and password against the stored hash for role.
// Students may log in by email or registration number, teachers by email only.
// Unknown users and wrong passwords are indistinguishable to the caller.
func RunVerify(ctx context.Context, identifier, password, role string, deps LoginDeps) (*LoginUserRecord, error) {
	normalizeLoginDeps(&deps)

	if deps.GetUserByEmail == nil ||
		deps.GetUserByRegNo == nil ||
		deps.VerifyPassword == nil ||
		deps.RoleValid == nil {
		return nil, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() { deps.ObserveLatency(deps.Now().Sub(start)) }()

	if identifier == "" || password == "" || !deps.RoleValid(role) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", deps.Errors.InvalidInput, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "invalid_input",
			}
		})
		return nil, deps.Errors.InvalidInput
	}

	ip := deps.ClientIPFromContext(ctx)

	rateLimited := func(userID string) (*LoginUserRecord, error) {
		deps.MetricInc(deps.Metrics.LoginRateLimited)
		deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, userID, deps.Errors.LoginRateLimited, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		deps.EmitRateLimit(ctx, "login", func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return nil, deps.Errors.LoginRateLimited
	}

	if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
		if deps.IsRateLimited(err) {
			return rateLimited("")
		}
		deps.Warn("sphereauth: login throttle check failed", "error", err)
	}

	failed := func(userID, reason string) (*LoginUserRecord, error) {
		if err := deps.IncrementLoginRate(ctx, identifier, ip); err != nil {
			if deps.IsRateLimited(err) {
				return rateLimited(userID)
			}
			deps.Warn("sphereauth: login throttle increment failed", "error", err)
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"role":       role,
				"reason":     reason,
			}
		})
		return nil, deps.Errors.InvalidCredentials
	}

	user, err := lookupLoginUser(ctx, identifier, role, deps)
	if err != nil {
		if !errors.Is(err, deps.Errors.UserNotFound) {
			mapped := deps.MapStoreError(err)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", mapped, func() map[string]string {
				return map[string]string{
					"identifier": identifier,
					"reason":     "lookup_failed",
				}
			})
			return nil, mapped
		}
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(password, deps.DummyHash)
		}
		return failed("", "user_not_found")
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return failed(user.UserID, "password_mismatch")
	}

	if err := deps.ResetLoginRate(ctx, identifier, ip); err != nil {
		deps.Warn("sphereauth: login throttle reset failed", "error", err)
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if needsUpgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := deps.HashPassword(password); err == nil {
				if err := deps.UpdatePasswordHash(ctx, user.UserID, upgradedHash); err != nil {
					deps.Warn("sphereauth: password hash upgrade update failed", "user_id", user.UserID, "error", err)
				} else {
					user.PasswordHash = upgradedHash
					deps.MetricInc(deps.Metrics.PasswordUpgraded)
				}
			} else {
				deps.Warn("sphereauth: password hash upgrade generation failed", "user_id", user.UserID, "error", err)
			}
		}
	}
	password = ""

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, nil, func() map[string]string {
		return map[string]string{
			"role": user.Role,
		}
	})
	return &user, nil
}

// lookupLoginUser resolves identifier for role. A user found under the other role is
// reported as not found.
func lookupLoginUser(ctx context.Context, identifier, role string, deps LoginDeps) (LoginUserRecord, error) {
	user, err := deps.GetUserByEmail(ctx, identifier)
	if err == nil && user.Role == role {
		return user, nil
	}
	if err != nil && !errors.Is(err, deps.Errors.UserNotFound) {
		return LoginUserRecord{}, err
	}

	if role != deps.StudentRole {
		return LoginUserRecord{}, deps.Errors.UserNotFound
	}

	user, err = deps.GetUserByRegNo(ctx, identifier)
	if err != nil {
		return LoginUserRecord{}, err
	}
	if user.Role != role {
		return LoginUserRecord{}, deps.Errors.UserNotFound
	}
	return user, nil
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CheckLoginRate == nil {
		deps.CheckLoginRate = func(context.Context, string, string) error { return nil }
	}
	if deps.IncrementLoginRate == nil {
		deps.IncrementLoginRate = func(context.Context, string, string) error { return nil }
	}
	if deps.ResetLoginRate == nil {
		deps.ResetLoginRate = func(context.Context, string, string) error { return nil }
	}
	if deps.IsRateLimited == nil {
		deps.IsRateLimited = func(error) bool { return false }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveLatency == nil {
		deps.ObserveLatency = func(time.Duration) {}
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
