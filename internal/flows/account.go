package flows

import (
	"context"
	"errors"
	"strings"
	"time"
)

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// RegisterUserRecord is the flow-local view of a persisted user.
type RegisterUserRecord struct {
	UserID string
	Name   string
	Email  string
	Role   string
	RegNo  string
}

type RegisterCreateInput struct {
	UserID       string
	ProfileID    string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	RegNo        string
	CreatedAt    time.Time
}

type RegisterMetrics struct {
	RegisterSuccess     int
	RegisterDuplicate   int
	RegisterRateLimited int
	RegisterFailure     int
}

type RegisterEvents struct {
	RegisterSuccess     string
	RegisterFailure     string
	RegisterDuplicate   string
	RegisterRateLimited string
}

type RegisterErrors struct {
	EngineNotReady    error
	InvalidInput      error
	PasswordPolicy    error
	DuplicateIdentity error
	RegNoTaken        error
	UserNotFound      error
	RateLimited       error
	StoreUnavailable  error
}

type RegisterDeps struct {
	StudentRole   string
	RegNoAttempts int

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	EnforceRegistrationLimiter func(context.Context, string) error
	MapLimiterError            func(error) error
	RoleValid                  func(string) bool

	HashPassword   func(string) (string, error)
	GetUserByEmail func(context.Context, string) (RegisterUserRecord, error)
	CreateUser     func(context.Context, RegisterCreateInput) (RegisterUserRecord, error)
	MapStoreError  func(error) error
	NewID          func() string
	NewRegNo       func() (string, error)

	MetricInc     func(int)
	EmitAudit     func(context.Context, string, bool, string, error, func() map[string]string)
	EmitRateLimit func(context.Context, string, func() map[string]string)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister validates req, hashes the password and creates the user together with
// its role profile. Students receive a generated registration number.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*RegisterUserRecord, error) {
	normalizeRegisterDeps(&deps)

	if deps.HashPassword == nil ||
		deps.GetUserByEmail == nil ||
		deps.CreateUser == nil ||
		deps.NewID == nil ||
		deps.NewRegNo == nil ||
		deps.RoleValid == nil {
		return nil, deps.Errors.EngineNotReady
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	fail := func(reason string, err error) (*RegisterUserRecord, error) {
		deps.MetricInc(deps.Metrics.RegisterFailure)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"email":  email,
				"reason": reason,
			}
		})
		return nil, err
	}

	if name == "" || email == "" || req.Password == "" {
		return fail("missing_field", deps.Errors.InvalidInput)
	}
	if !deps.RoleValid(req.Role) {
		return fail("role_invalid", deps.Errors.InvalidInput)
	}

	if err := deps.EnforceRegistrationLimiter(ctx, deps.ClientIPFromContext(ctx)); err != nil {
		mapped := deps.MapLimiterError(err)
		if errors.Is(mapped, deps.Errors.RateLimited) {
			deps.MetricInc(deps.Metrics.RegisterRateLimited)
			deps.EmitAudit(ctx, deps.Events.RegisterRateLimited, false, "", mapped, func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
			deps.EmitRateLimit(ctx, "registration", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
		}
		return nil, mapped
	}

	if _, err := deps.GetUserByEmail(ctx, email); err == nil {
		return duplicate(ctx, email, deps)
	} else if !errors.Is(err, deps.Errors.UserNotFound) {
		return fail("lookup_failed", deps.MapStoreError(err))
	}

	passwordHash, err := deps.HashPassword(req.Password)
	req.Password = ""
	if err != nil {
		return fail("hash_policy", deps.Errors.PasswordPolicy)
	}

	input := RegisterCreateInput{
		UserID:       deps.NewID(),
		ProfileID:    deps.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         req.Role,
		CreatedAt:    deps.Now(),
	}

	attempts := 1
	if req.Role == deps.StudentRole {
		attempts = deps.RegNoAttempts
	}

	for i := 0; i < attempts; i++ {
		if req.Role == deps.StudentRole {
			regNo, err := deps.NewRegNo()
			if err != nil {
				return fail("regno_generation", deps.Errors.StoreUnavailable)
			}
			input.RegNo = regNo
		}

		created, err := deps.CreateUser(ctx, input)
		if err == nil {
			if created.Role == "" {
				created.Role = input.Role
			}
			deps.MetricInc(deps.Metrics.RegisterSuccess)
			deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, created.UserID, nil, func() map[string]string {
				return map[string]string{
					"email": created.Email,
					"role":  created.Role,
				}
			})
			return &created, nil
		}

		switch {
		case errors.Is(err, deps.Errors.DuplicateIdentity):
			return duplicate(ctx, email, deps)
		case errors.Is(err, deps.Errors.RegNoTaken):
			continue
		default:
			return fail("create_failed", deps.MapStoreError(err))
		}
	}

	return fail("regno_exhausted", deps.Errors.StoreUnavailable)
}

func duplicate(ctx context.Context, email string, deps RegisterDeps) (*RegisterUserRecord, error) {
	deps.MetricInc(deps.Metrics.RegisterDuplicate)
	deps.EmitAudit(ctx, deps.Events.RegisterDuplicate, false, "", deps.Errors.DuplicateIdentity, func() map[string]string {
		return map[string]string{
			"email": email,
		}
	})
	return nil, deps.Errors.DuplicateIdentity
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.RegNoAttempts <= 0 {
		deps.RegNoAttempts = 1
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.EnforceRegistrationLimiter == nil {
		deps.EnforceRegistrationLimiter = func(context.Context, string) error { return nil }
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
}
