// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRegister, RunVerify, RunRequestPasswordReset,
// RunConfirmPasswordReset) accepts a typed dependency struct and returns results
// without side-effects beyond those dependencies. The Engine builds the deps once
// per call and keeps ownership of stores, limiters, mailers and metrics.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sphereauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
