package httpapi

import (
	"net/http"
	"strings"

	"polyvox.org/internal/authn"
)

// withAuth resolves an optional bearer token into a subject on the
// request context. Requests without an Authorization header pass
// through anonymously; handlers decide whether a subject is required.
// A present-but-invalid token is rejected outright.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "malformed authorization header")
			return
		}
		subjectID, err := authn.ParseAndValidate(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(authn.ContextWithSubject(r.Context(), subjectID)))
	})
}
