package http

import (
	"net/http"

	"github.com/Vaibhav2824/IntegriGuard/internal/auth"
	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/user"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// tokenResponse carries what the client keeps as userEmail, userName and
// userRole alongside the bearer token.
type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   int64     `json:"expires_at"`
	User        user.User `json:"user"`
}

func issueFor(w http.ResponseWriter, iss *auth.Issuer, u user.User, code int) {
	tok, exp, err := iss.Issue(auth.Identity{ID: u.ID, Role: string(u.Role), Email: u.Email, Name: u.FullName})
	if err != nil {
		common.RespondWithErr(w, err)
		return
	}
	common.RespondWithJSON(w, code, tokenResponse{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresAt:   exp.Unix(),
		User:        u.Public(),
	})
}

func SignupHandler(users *user.Service, iss *auth.Issuer, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !enabled {
			common.RespondWithError(w, http.StatusForbidden, "signup is disabled")
			return
		}
		var in user.SignupInput
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		u, err := users.Signup(r.Context(), in)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		issueFor(w, iss, u, http.StatusCreated)
	}
}

func LoginHandler(users *user.Service, iss *auth.Issuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in loginRequest
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		u, err := users.Authenticate(r.Context(), in.Email, in.Password)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		issueFor(w, iss, u, http.StatusOK)
	}
}
