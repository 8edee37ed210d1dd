package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// QuotaReset clears an identity's quota record. It is only routed when an
// admin token is configured.
func (a *App) QuotaReset(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if a.Config.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.Config.AdminToken)) != 1 {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid admin token")
		return
	}
	ownerID := chi.URLParam(r, "ownerId")
	if ownerID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "ownerId required")
		return
	}
	a.Quota.Reset(ownerID)
	a.Logger.Info().Str("user_id", ownerID).Msg("admin: quota reset")
	a.json(w, http.StatusOK, a.Quota.Usage(ownerID))
}
