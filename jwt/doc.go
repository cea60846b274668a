// Package jwt issues and verifies the short-lived access tokens handed out after a
// successful login. Tokens carry the user id as "sub" plus the role used for
// server-side route gating.
package jwt
