// Package sphereauth is the authentication core of the ElimuSphere school portal:
// a credential store for students and teachers and a reset-token manager for
// forgotten passwords, plus the student academic records teachers maintain.
//
// Engine methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// sphereauth is the public surface. It exposes [Engine], [Builder], [Config], the
// [UserStore] persistence contract and value types such as [Identity] and
// [StudentRecord]. Flow orchestration, throttling on Redis, audit dispatch and random
// code generation live under internal/ and are never exported.
//
// Persistence is pluggable: store/postgres backs a deployment with PostgreSQL and
// store/memory serves tests and local runs. Reset codes are delivered through the
// mail package. httpapi and middleware expose the Engine over HTTP.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports sphereauth (no import cycles).
//   - Reveal through its return values whether an email is registered when a
//     password reset is requested.
package sphereauth
