package sphereauth

import (
	"context"

	"github.com/elimusphere/sphereauth/internal"
	internalflows "github.com/elimusphere/sphereauth/internal/flows"
	"github.com/google/uuid"
)

// Register describes the register operation and its observable behavior.
//
// Register creates a user together with its role profile. Students receive a
// generated registration number of the form STD-####.
// Register may return ErrInvalidInput, ErrPasswordPolicy, ErrDuplicateIdentity,
// ErrRegistrationRateLimited, ErrRateLimiterUnavailable or ErrStoreUnavailable.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*Identity, error) {
	created, err := internalflows.RunRegister(ctx, internalflows.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}, e.registerFlowDeps())
	if err != nil {
		return nil, err
	}

	return identityFromRecord(UserRecord{
		ID:    created.UserID,
		Name:  created.Name,
		Email: created.Email,
		Role:  Role(created.Role),
		RegNo: created.RegNo,
	}), nil
}

func (e *Engine) registerFlowDeps() internalflows.RegisterDeps {
	var cfg Config
	if e != nil {
		cfg = e.config
	}

	deps := internalflows.RegisterDeps{
		StudentRole:         string(RoleStudent),
		RegNoAttempts:       cfg.Registration.RegNoAttempts,
		ClientIPFromContext: clientIPFromContext,
		Now:                 e.now,
		MapLimiterError:     mapRegistrationLimiterError,
		RoleValid:           roleValid,
		MapStoreError:       mapStoreError,
		NewID:               uuid.NewString,
		NewRegNo:            internal.NewRegNo,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		EmitAudit:     e.emitAudit,
		EmitRateLimit: e.emitRateLimit,
		Metrics: internalflows.RegisterMetrics{
			RegisterSuccess:     int(MetricRegisterSuccess),
			RegisterDuplicate:   int(MetricRegisterDuplicate),
			RegisterRateLimited: int(MetricRegisterRateLimited),
			RegisterFailure:     int(MetricRegisterFailure),
		},
		Events: internalflows.RegisterEvents{
			RegisterSuccess:     auditEventRegisterSuccess,
			RegisterFailure:     auditEventRegisterFailure,
			RegisterDuplicate:   auditEventRegisterDuplicate,
			RegisterRateLimited: auditEventRegisterRateLimited,
		},
		Errors: internalflows.RegisterErrors{
			EngineNotReady:    ErrEngineNotReady,
			InvalidInput:      ErrInvalidInput,
			PasswordPolicy:    ErrPasswordPolicy,
			DuplicateIdentity: ErrDuplicateIdentity,
			RegNoTaken:        ErrRegNoTaken,
			UserNotFound:      ErrUserNotFound,
			RateLimited:       ErrRegistrationRateLimited,
			StoreUnavailable:  ErrStoreUnavailable,
		},
	}

	if e != nil && e.registrationLimiter != nil {
		deps.EnforceRegistrationLimiter = e.registrationLimiter.Enforce
	}
	if e != nil && e.passwordHash != nil {
		deps.HashPassword = e.passwordHash.Hash
	}
	if e != nil && e.store != nil {
		deps.GetUserByEmail = func(ctx context.Context, email string) (internalflows.RegisterUserRecord, error) {
			u, err := e.store.GetUserByEmail(ctx, email)
			if err != nil {
				return internalflows.RegisterUserRecord{}, err
			}
			return toRegisterUserRecord(u), nil
		}
		deps.CreateUser = func(ctx context.Context, in internalflows.RegisterCreateInput) (internalflows.RegisterUserRecord, error) {
			u, err := e.store.CreateUser(ctx, CreateUserInput{
				ID:           in.UserID,
				ProfileID:    in.ProfileID,
				Name:         in.Name,
				Email:        in.Email,
				PasswordHash: in.PasswordHash,
				Role:         Role(in.Role),
				RegNo:        in.RegNo,
				CreatedAt:    in.CreatedAt,
			})
			if err != nil {
				return internalflows.RegisterUserRecord{}, err
			}
			return toRegisterUserRecord(u), nil
		}
	}

	return deps
}

func toRegisterUserRecord(u UserRecord) internalflows.RegisterUserRecord {
	return internalflows.RegisterUserRecord{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   string(u.Role),
		RegNo:  u.RegNo,
	}
}
