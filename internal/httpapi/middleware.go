package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/rdcleanpath/gateway/internal/authn"
)

type claimsKey struct{}

// requireAuth verifies the bearer token and stores its claims in the
// request context for downstream handlers.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.issuer.ExtractClaims(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, authErrorMessage(err))
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// requireAdmin additionally rejects any caller whose role isn't admin.
func (a *API) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims.Role != "admin" {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFromContext(ctx context.Context) *authn.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*authn.Claims)
	return claims
}

func authErrorMessage(err error) string {
	if errors.Is(err, authn.ErrMissingToken) {
		return "missing bearer token"
	}
	return "invalid or expired token"
}
