// Package internal contains helpers that are private to sphereauth, chiefly the
// crypto/rand backed generators for reset codes and registration numbers.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - flows — flow orchestrators for every Engine operation
//   - limiters — domain-specific rate limiters (registration, password reset)
//   - rate — login throttle primitives on Redis
//   - appconfig — file and environment configuration for the server binary
//   - logging — zap logger construction
//
// # What this package must NOT do
//
//   - Export types that appear in the public sphereauth API.
//   - Be imported by any package outside the sphereauth module.
package internal
