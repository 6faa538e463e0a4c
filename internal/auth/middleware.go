package auth

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/rbac"
)

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, ctxKey{}, id)
	return rbac.WithRole(ctx, id.Role)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Verifier finds and verifies a bearer token; pair it with Authenticator.
func Verifier(i *Issuer) func(http.Handler) http.Handler {
	return jwtauth.Verifier(i.JWTAuth())
}

// Authenticator rejects requests without a valid token and stores the
// caller's identity and role.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			common.RespondWithError(w, http.StatusUnauthorized, "authorization token required")
			return
		}
		id, err := IdentityFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "invalid token claims: "+err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
