// Package limiters provides the registration and password-reset throttles built on
// Redis fixed-window counters.
//
// # Limiters
//
//   - [RegistrationLimiter] — per-IP throttle for sign-ups.
//   - [PasswordResetLimiter] — per-email + per-IP for request and confirm.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace and error types. Policy thresholds
// come from Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import sphereauth or any sibling internal package.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
