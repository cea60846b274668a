package sphereauth

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by sphereauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT           JWTConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Registration  RegistrationConfig
	Security      SecurityConfig
	Mail          MailConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by sphereauth APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by sphereauth APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	MaxLength      int
	UpgradeOnLogin bool
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig defines a public type used by sphereauth APIs.
//
// PasswordResetConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordResetConfig struct {
	ResetTTL                 time.Duration
	EnumerationDelayMin      time.Duration
	EnumerationDelayMax      time.Duration
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	MaxAttempts              int
	ThrottleWindow           time.Duration
	MailSubject              string
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig defines a public type used by sphereauth APIs.
//
// RegistrationConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegistrationConfig struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
	RegNoAttempts    int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by sphereauth APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig defines a public type used by sphereauth APIs.
//
// MailConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MailConfig struct {
	QueueSize       int
	DeliveryTimeout time.Duration
}

/*
====================================
AUDIT + METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by sphereauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by sphereauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration used when the Builder is not given one.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "sphereauth",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      6,
			MaxLength:      1024,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			ResetTTL:                 15 * time.Minute,
			EnumerationDelayMin:      20 * time.Millisecond,
			EnumerationDelayMax:      40 * time.Millisecond,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			MaxAttempts:              5,
			ThrottleWindow:           15 * time.Minute,
			MailSubject:              "ElimuSphere Password Reset OTP",
		},
		Registration: RegistrationConfig{
			EnableIPThrottle: true,
			MaxAttempts:      10,
			Cooldown:         15 * time.Minute,
			RegNoAttempts:    8,
		},
		Security: SecurityConfig{
			EnableLoginThrottle:   true,
			EnableIPThrottle:      false,
			MaxLoginAttempts:      5,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Mail: MailConfig{
			QueueSize:       256,
			DeliveryTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Password Reset
	if c.PasswordReset.ResetTTL <= 0 {
		return errors.New("PasswordReset ResetTTL must be > 0")
	}
	if c.PasswordReset.EnumerationDelayMin < 0 {
		return errors.New("PasswordReset EnumerationDelayMin must be >= 0")
	}
	if c.PasswordReset.EnumerationDelayMax < c.PasswordReset.EnumerationDelayMin {
		return errors.New("PasswordReset EnumerationDelayMax must be >= EnumerationDelayMin")
	}
	if c.PasswordReset.EnableIPThrottle || c.PasswordReset.EnableIdentifierThrottle {
		if c.PasswordReset.MaxAttempts <= 0 {
			return errors.New("PasswordReset MaxAttempts must be > 0")
		}
		if c.PasswordReset.ThrottleWindow <= 0 {
			return errors.New("PasswordReset ThrottleWindow must be > 0")
		}
	}
	if strings.TrimSpace(c.PasswordReset.MailSubject) == "" {
		return errors.New("PasswordReset MailSubject must not be empty")
	}

	// Registration
	if c.Registration.EnableIPThrottle {
		if c.Registration.MaxAttempts <= 0 {
			return errors.New("Registration MaxAttempts must be > 0")
		}
		if c.Registration.Cooldown <= 0 {
			return errors.New("Registration Cooldown must be > 0")
		}
	}
	if c.Registration.RegNoAttempts <= 0 {
		return errors.New("Registration RegNoAttempts must be > 0")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("Security LoginCooldownDuration must be > 0")
		}
	}

	// Mail
	if c.Mail.QueueSize <= 0 {
		return errors.New("Mail QueueSize must be > 0")
	}
	if c.Mail.DeliveryTimeout <= 0 {
		return errors.New("Mail DeliveryTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

// throttlesEnabled reports whether any configured limiter needs a Redis client.
func (c *Config) throttlesEnabled() bool {
	return c.Security.EnableLoginThrottle ||
		c.PasswordReset.EnableIPThrottle ||
		c.PasswordReset.EnableIdentifierThrottle ||
		c.Registration.EnableIPThrottle
}
