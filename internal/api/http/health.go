package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readyHandler(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			common.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
