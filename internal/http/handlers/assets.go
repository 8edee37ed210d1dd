package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DownloadAsset serves a locally stored artifact behind a signed URL.
func (a *App) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	if a.Files == nil {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	q := r.URL.Query()
	path, err := a.Files.Verify(chi.URLParam(r, "*"), q.Get("expires"), q.Get("sig"))
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, path)
}
