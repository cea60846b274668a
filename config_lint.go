package sphereauth

import (
	"errors"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	// LintInfo marks a setting worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks a setting that weakens a protection.
	LintWarn
	// LintHigh marks a setting that removes a protection entirely.
	LintHigh
)

// String returns the upper-case severity name.
func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// LintWarning is one finding from [Config.Lint].
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult lists findings in a stable order.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	matched := r.BySeverity(min)
	if len(matched) == 0 {
		return nil
	}
	parts := make([]string, 0, len(matched))
	for _, w := range matched {
		parts = append(parts, w.Severity.String()+" "+w.Code+": "+w.Message)
	}
	return errors.New("config lint: " + strings.Join(parts, "; "))
}

// Lint reports settings that are valid but weaken the deployment. It never fails;
// callers decide which severities to act on.
func (c Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.AccessTTL > 30*time.Minute {
		add("access_ttl_long", LintWarn, "access tokens live longer than 30m")
	}
	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway exceeds 1m")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("signing_hs256", LintInfo, "HS256 shares one secret between signer and verifiers")
	}

	resetThrottled := c.PasswordReset.EnableIPThrottle || c.PasswordReset.EnableIdentifierThrottle
	if !c.throttlesEnabled() {
		add("rate_limits_disabled", LintHigh, "login, registration and reset throttles are all disabled")
	} else {
		if !c.Security.EnableLoginThrottle {
			add("login_throttle_disabled", LintWarn, "failed logins are not throttled")
		}
		if !resetThrottled {
			add("reset_throttle_disabled", LintWarn, "reset codes can be guessed without a throttle")
		}
	}

	if c.PasswordReset.ResetTTL > time.Hour {
		add("reset_ttl_long", LintWarn, "reset codes stay valid longer than 1h")
	}
	if c.PasswordReset.EnumerationDelayMax == 0 {
		add("enumeration_delay_zero", LintInfo, "unknown-email reset requests return without delay")
	}
	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "Argon2 memory below 64 MB")
	}
	if c.Password.MinLength < 8 {
		add("password_min_short", LintInfo, "minimum password length below 8")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not emitted")
	}

	return ws
}
