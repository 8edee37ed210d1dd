package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/generation"
)

// maxRequestBody bounds JSON bodies; inline images arrive base64 encoded.
const maxRequestBody = 32 << 20

type createJobResponse struct {
	JobID  string           `json:"jobId"`
	Status domain.JobStatus `json:"status"`
	Quota  domain.Usage     `json:"quota"`
}

type jobStatusResponse struct {
	JobID       string           `json:"jobId"`
	Mode        domain.Mode      `json:"mode"`
	Status      domain.JobStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	VideoURI    string           `json:"videoUri,omitempty"`
	SignedURL   string           `json:"signedUrl,omitempty"`
	ExpiresAt   *time.Time       `json:"expiresAt,omitempty"`
	MIMEType    string           `json:"mimeType,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func newJobStatusResponse(job *domain.Job) jobStatusResponse {
	resp := jobStatusResponse{
		JobID:       job.ID,
		Mode:        job.Mode,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	switch job.Status {
	case domain.JobStatusCompleted:
		if job.Result != nil {
			expires := job.Result.ExpiresAt
			resp.VideoURI = job.Result.VideoURI
			resp.SignedURL = job.Result.SignedURL
			resp.ExpiresAt = &expires
			resp.MIMEType = job.Result.MIMEType
		}
	case domain.JobStatusFailed:
		resp.Error = job.Error
	}
	return resp
}

func (a *App) VideoModes(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Orchestrator.Capabilities())
}

func (a *App) VideoQuota(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	a.json(w, http.StatusOK, a.Orchestrator.Usage(userID))
}

func (a *App) VideoText(w http.ResponseWriter, r *http.Request) {
	a.createJob(w, r, domain.ModeText)
}

func (a *App) VideoImage(w http.ResponseWriter, r *http.Request) {
	a.createJob(w, r, domain.ModeImage)
}

func (a *App) VideoVideo(w http.ResponseWriter, r *http.Request) {
	a.createJob(w, r, domain.ModeVideo)
}

func (a *App) createJob(w http.ResponseWriter, r *http.Request, mode domain.Mode) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if !a.Orchestrator.ModeEnabled(mode) {
		a.fail(w, r, errors.Wrapf(domain.ErrUnsupportedMode, "mode %q is disabled", mode))
		return
	}

	var body generation.RequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req, err := a.Orchestrator.Policy().Validate(mode, body)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	job, usage, err := a.Orchestrator.Submit(r.Context(), userID, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, createJobResponse{JobID: job.ID, Status: job.Status, Quota: usage})
}

func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "jobId required")
		return
	}
	job, err := a.Orchestrator.Status(jobID, userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newJobStatusResponse(job))
}
