package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Msr7799/veo-backend/internal/publish"
)

type publishResponse struct {
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
}

func (a *App) publishingDisabled(w http.ResponseWriter) bool {
	if a.Publisher == nil {
		a.error(w, http.StatusServiceUnavailable, "publishing_disabled", "youtube publishing is not configured")
		return true
	}
	return false
}

func (a *App) YouTubeConnect(w http.ResponseWriter, r *http.Request) {
	if a.publishingDisabled(w) {
		return
	}
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"url":       a.Publisher.AuthURL(userID),
		"connected": a.Publisher.Connected(userID),
	})
}

func (a *App) YouTubeCallback(w http.ResponseWriter, r *http.Request) {
	if a.publishingDisabled(w) {
		return
	}
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		a.error(w, http.StatusBadRequest, "bad_request", "consent denied: "+reason)
		return
	}
	if _, err := a.Publisher.Exchange(r.Context(), q.Get("state"), q.Get("code")); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"connected": true})
}

func (a *App) VideoPublish(w http.ResponseWriter, r *http.Request) {
	if a.publishingDisabled(w) {
		return
	}
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var meta publish.Metadata
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&meta); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	job, err := a.Orchestrator.Status(chi.URLParam(r, "jobId"), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	videoID, err := a.Publisher.Publish(r.Context(), userID, job, meta)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, publishResponse{VideoID: videoID, URL: "https://youtu.be/" + videoID})
}
