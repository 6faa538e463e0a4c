package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/rbac"
	"github.com/Vaibhav2824/IntegriGuard/internal/storage"
)

// canReadAsset lets students fetch blobs filed under their own id
// (snapshots/{exam}/{student}.json, uploads/{exam}/{student}/...).
func canReadAsset(r *http.Request, key string) bool {
	if rbac.Can(r.Context(), rbac.PermResultAny) {
		return true
	}
	parts := strings.Split(key, "/")
	if len(parts) < 3 {
		return false
	}
	me := identity(r).ID
	switch parts[0] {
	case "snapshots":
		return strings.TrimSuffix(parts[2], ".json") == me
	case "uploads":
		return parts[2] == me
	}
	return false
}

func MountAssets(r chi.Router, bs storage.BlobStore) {
	// GET /assets/*   -> returns the blob at whatever follows /assets/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key, err := storage.CleanKey(chi.URLParam(r, "*"))
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		if !canReadAsset(r, key) {
			common.RespondWithErr(w, common.ErrForbidden)
			return
		}
		rc, err := bs.Get(r.Context(), key)
		if err != nil {
			common.RespondWithErr(w, err)
			return
		}
		defer rc.Close()
		ct := "application/octet-stream"
		if strings.HasSuffix(key, ".json") {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	})
}
