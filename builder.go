package sphereauth

import (
	"errors"
	"time"

	"github.com/elimusphere/sphereauth/internal"
	"github.com/elimusphere/sphereauth/internal/audit"
	"github.com/elimusphere/sphereauth/internal/limiters"
	"github.com/elimusphere/sphereauth/internal/rate"
	"github.com/elimusphere/sphereauth/jwt"
	"github.com/elimusphere/sphereauth/mail"
	"github.com/elimusphere/sphereauth/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder defines a public type used by sphereauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store      UserStore
	mailSender mail.Sender
	auditSink  AuditSink
	logger     *zap.Logger
	clock      func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the login, registration and reset throttles.
// It is required whenever one of those throttles is enabled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore describes the withuserstore operation and its observable behavior.
//
// WithUserStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithMailSender sets the collaborator that delivers reset codes. When unset, codes
// are written to the logger.
func (b *Builder) WithMailSender(sender mail.Sender) *Builder {
	b.mailSender = sender
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for reset expiry and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("user store required")
	}

	if b.redis == nil && cfg.throttlesEnabled() {
		return nil, errors.New("redis client required when throttles are enabled")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sphereauth")

	engine := &Engine{
		config: cloneConfig(cfg),
		store:  b.store,
		logger: logger,
		clock:  b.clock,
	}

	if b.redis != nil {
		if cfg.Security.EnableLoginThrottle {
			engine.rateLimiter = rate.New(b.redis, rate.Config{
				EnableIPThrottle:      cfg.Security.EnableIPThrottle,
				MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
				LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
			})
		}
		if cfg.PasswordReset.EnableIPThrottle || cfg.PasswordReset.EnableIdentifierThrottle {
			engine.resetLimiter = limiters.NewPasswordResetLimiter(b.redis, limiters.PasswordResetConfig{
				EnableIdentifierThrottle: cfg.PasswordReset.EnableIdentifierThrottle,
				EnableIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
				Window:                   cfg.PasswordReset.ThrottleWindow,
				MaxAttempts:              cfg.PasswordReset.MaxAttempts,
			})
		}
		if cfg.Registration.EnableIPThrottle {
			engine.registrationLimiter = limiters.NewRegistrationLimiter(b.redis, limiters.RegistrationConfig{
				EnableIPThrottle: cfg.Registration.EnableIPThrottle,
				MaxAttempts:      cfg.Registration.MaxAttempts,
				Cooldown:         cfg.Registration.Cooldown,
			})
		}
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinLength,
		MaxPasswordBytes: cfg.Password.MaxLength,
	})
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	engine.passwordHash = ph

	dummySecret, err := internal.NewResetCode()
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	engine.dummyHash, err = ph.Hash("sphereauth-dummy-" + dummySecret)
	if err != nil {
		engine.audit.Close()
		return nil, err
	}

	// Tokens stay disabled until key material is configured.
	if len(cfg.JWT.PrivateKey) > 0 || len(cfg.JWT.PublicKey) > 0 {
		jm, err := jwt.NewManager(jwt.Config{
			AccessTTL:     cfg.JWT.AccessTTL,
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
			PublicKey:     cloneBytes(cfg.JWT.PublicKey),
			Issuer:        cfg.JWT.Issuer,
			Leeway:        cfg.JWT.Leeway,
		})
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
		engine.jwtManager = jm
	}

	sender := b.mailSender
	if sender == nil {
		sender = mail.NewLogSender(logger)
	}
	engine.mailer = mail.NewDispatcher(sender, mail.DispatcherConfig{
		QueueSize:       cfg.Mail.QueueSize,
		DeliveryTimeout: cfg.Mail.DeliveryTimeout,
	}, logger)

	b.built = true

	return engine, nil
}
