package middleware

import (
	"net/http"

	"github.com/elimusphere/sphereauth"
)

// RequireTeacher admits only teacher tokens.
func RequireTeacher(engine *sphereauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, sphereauth.RoleTeacher)
}

// RequireAuthenticated admits any valid token.
func RequireAuthenticated(engine *sphereauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine)
}
