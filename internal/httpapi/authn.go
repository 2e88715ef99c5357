package httpapi

import (
	"net/http"
	"strings"

	"kasirpos.org/internal/auth"
)

// withAuth validates the bearer token and puts the resulting principal in
// the request context. When required roles are given, the principal must
// hold at least one of them.
func (a *API) withAuth(next http.HandlerFunc, required ...auth.RoleID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := extractBearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		claims, err := a.tokens.ParseAndValidate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		p := auth.Principal{
			AccountID: claims.ID,
			Username:  claims.Username,
			Roles:     claims.Roles,
		}
		if len(required) > 0 && !p.HasAnyRole(required...) {
			writeError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), p)))
	}
}

func extractBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
