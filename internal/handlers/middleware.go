package handlers

import (
	"net/http"

	"github.com/inkwell-blog/apiserver/internal/auth"
)

// RequireAuth verifies the session cookie and attaches the identity to
// the request context. Missing, malformed, tampered and expired tokens
// all produce the same 401.
func RequireAuth(verifier *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromRequest(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
		})
	}
}

// OptionalAuth attaches an identity when a valid session cookie is
// present and lets the request through anonymously otherwise. Used on
// read endpoints where visibility depends on who is asking.
func OptionalAuth(verifier *auth.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromRequest(r)
			if err == nil {
				if identity, err := verifier.Verify(token); err == nil {
					r = r.WithContext(withIdentity(r.Context(), identity))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin composes with RequireAuth and rejects non-admin
// identities with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := identityFromContext(r.Context())
		if identity == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !identity.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
