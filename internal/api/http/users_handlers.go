package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Vaibhav2824/IntegriGuard/internal/auth"
	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/rbac"
	"github.com/Vaibhav2824/IntegriGuard/internal/user"
)

// identity is only called behind auth.Authenticator.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

func isStudentSelf(r *http.Request) bool {
	return identity(r).ID == chi.URLParam(r, "studentID") && rbac.Can(r.Context(), rbac.PermResultSelf)
}

func MeHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.Get(r.Context(), identity(r).ID)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, u.Public())
	}
}

func UpdateMeHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in user.ProfileInput
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		u, err := users.UpdateProfile(r.Context(), identity(r).ID, in)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, u.Public())
	}
}

type changePasswordRequest struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=8"`
}

func ChangePasswordHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in changePasswordRequest
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		if err := users.ChangePassword(r.Context(), identity(r).ID, in.Current, in.New); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListUsersHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := user.Role(r.URL.Query().Get("role"))
		if role != "" && !role.Valid() {
			common.RespondWithError(w, http.StatusBadRequest, "unknown role")
			return
		}
		list, err := users.List(r.Context(), role)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		out := make([]user.User, 0, len(list))
		for _, u := range list {
			out = append(out, u.Public())
		}
		common.RespondWithJSON(w, http.StatusOK, out)
	}
}

type setRoleRequest struct {
	Role user.Role `json:"role" validate:"required,oneof=student teacher admin"`
}

func SetRoleHandler(users *user.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in setRoleRequest
		if err := decodeJSON(w, r, &in); err != nil {
			common.RespondWithErr(w, err)
			return
		}
		u, err := users.SetRole(r.Context(), chi.URLParam(r, "userID"), in.Role)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		common.RespondWithJSON(w, http.StatusOK, u.Public())
	}
}
