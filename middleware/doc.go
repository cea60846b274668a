// Package middleware exposes HTTP guards that enforce access tokens and role gating
// on the server side.
//
// # Guards
//
//   - [Guard] verifies the bearer token and checks the principal's role.
//   - [RequireTeacher] admits teacher tokens only.
//   - [RequireAuthenticated] admits any valid token.
//
// Each guard reads the Authorization header, calls Engine.ParseAccessToken, and
// stores the verified principal in the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token parsing and key
// handling stay inside the Engine.
package middleware
