package rbac

import (
	"net/http"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

var defaultChecker = NewChecker(nil)

func forbid(w http.ResponseWriter) {
	common.RespondWithError(w, http.StatusForbidden, "forbidden")
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Can(r.Context(), perm) {
				forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny passes when the role holds at least one of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !defaultChecker.Any(RoleFromContext(r.Context()), perms...) {
				forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnerOr lets owners through and everyone else only with perm.
func RequireOwnerOr(perm string, isOwner func(r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isOwner(r) || Can(r.Context(), perm) {
				next.ServeHTTP(w, r)
				return
			}
			forbid(w)
		})
	}
}
