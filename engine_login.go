package sphereauth

import (
	"context"
	"strings"
	"time"

	internalflows "github.com/elimusphere/sphereauth/internal/flows"
)

// Verify describes the verify operation and its observable behavior.
//
// Verify checks a password for the requested role. Students may identify by email
// or registration number; teachers by email only. Unknown identifiers and wrong
// passwords both return ErrInvalidCredentials. No session is created.
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (*Identity, error) {
	user, err := internalflows.RunVerify(ctx, strings.TrimSpace(req.Identifier), req.Password, req.Role, e.loginFlowDeps())
	if err != nil {
		return nil, err
	}

	return identityFromRecord(UserRecord{
		ID:    user.UserID,
		Name:  user.Name,
		Email: user.Email,
		Role:  Role(user.Role),
		RegNo: user.RegNo,
	}), nil
}

func (e *Engine) loginFlowDeps() internalflows.LoginDeps {
	var cfg Config
	if e != nil {
		cfg = e.config
	}

	deps := internalflows.LoginDeps{
		StudentRole:            string(RoleStudent),
		PasswordUpgradeOnLogin: cfg.Password.UpgradeOnLogin,
		ClientIPFromContext:    clientIPFromContext,
		Now:                    time.Now,
		IsRateLimited:          isLoginRateLimited,
		RoleValid:              roleValid,
		MapStoreError:          mapStoreError,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		ObserveLatency: func(d time.Duration) {
			e.observeLatency(MetricVerifyLatency, d)
		},
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Warn:          e.warn,
		Metrics: internalflows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			LoginRateLimited: int(MetricLoginRateLimited),
			PasswordUpgraded: int(MetricPasswordUpgraded),
		},
		Events: internalflows.LoginEvents{
			LoginSuccess:     auditEventLoginSuccess,
			LoginFailure:     auditEventLoginFailure,
			LoginRateLimited: auditEventLoginRateLimited,
		},
		Errors: internalflows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidInput:       ErrInvalidInput,
			InvalidCredentials: ErrInvalidCredentials,
			LoginRateLimited:   ErrLoginRateLimited,
			UserNotFound:       ErrUserNotFound,
		},
	}

	if e == nil {
		return deps
	}

	deps.DummyHash = e.dummyHash
	if e.rateLimiter != nil {
		deps.CheckLoginRate = e.rateLimiter.CheckLogin
		deps.IncrementLoginRate = e.rateLimiter.IncrementLogin
		deps.ResetLoginRate = e.rateLimiter.ResetLogin
	}
	if e.passwordHash != nil {
		deps.VerifyPassword = e.passwordHash.Verify
		deps.PasswordNeedsUpgrade = e.passwordHash.NeedsUpgrade
		deps.HashPassword = e.passwordHash.Hash
	}
	if e.store != nil {
		deps.GetUserByEmail = func(ctx context.Context, email string) (internalflows.LoginUserRecord, error) {
			u, err := e.store.GetUserByEmail(ctx, email)
			if err != nil {
				return internalflows.LoginUserRecord{}, err
			}
			return toLoginUserRecord(u), nil
		}
		deps.GetUserByRegNo = func(ctx context.Context, regNo string) (internalflows.LoginUserRecord, error) {
			u, err := e.store.GetUserByRegNo(ctx, regNo)
			if err != nil {
				return internalflows.LoginUserRecord{}, err
			}
			return toLoginUserRecord(u), nil
		}
		deps.UpdatePasswordHash = e.store.UpdatePasswordHash
	}

	return deps
}

func toLoginUserRecord(u UserRecord) internalflows.LoginUserRecord {
	return internalflows.LoginUserRecord{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		RegNo:        u.RegNo,
		PasswordHash: u.PasswordHash,
	}
}
