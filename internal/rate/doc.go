// Package rate provides the Redis-backed login throttle used by credential
// verification.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - sl:  — login per-identifier
//   - sli: — login per-IP
//
// # What this package must NOT do
//
//   - Implement registration or reset policies (those live in internal/limiters).
//   - Be imported outside the sphereauth module.
package rate
