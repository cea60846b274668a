package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/elimusphere/sphereauth"
)

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by Guard.
func PrincipalFromContext(ctx context.Context) (*sphereauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*sphereauth.Principal)
	return p, ok
}

// Guard rejects requests without a valid bearer token with 401, and requests whose
// principal holds none of roles with 403. An empty roles list admits any role.
func Guard(engine *sphereauth.Engine, roles ...sphereauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
				return
			}

			principal, err := engine.ParseAccessToken(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
				return
			}

			if !roleAllowed(principal.Role, roles) {
				writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func roleAllowed(role sphereauth.Role, allowed []sphereauth.Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// Error codes match the httpapi envelope.
const (
	codeUnauthorized = 40100
	codeForbidden    = 40300
)

func writeError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{code, message})
}
