package domain

import "time"

// Mode enumerates the source a video is generated from.
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
	ModeVideo Mode = "video"
)

// AllModes lists every mode in display order.
var AllModes = []Mode{ModeText, ModeImage, ModeVideo}

// Valid reports whether m belongs to the closed set of modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeText, ModeImage, ModeVideo:
		return true
	default:
		return false
	}
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsTerminal returns true if no transition may leave the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobResult describes the stored artifact of a completed job.
type JobResult struct {
	VideoURI  string    `json:"videoUri"`
	SignedURL string    `json:"signedUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
	MIMEType  string    `json:"mimeType,omitempty"`
}

// Job encapsulates the lifecycle of one video generation request.
type Job struct {
	ID          string
	OwnerID     string
	Mode        Mode
	Status      JobStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Result      *JobResult
	Error       string
}

// JobUpdate carries a partial update; nil fields are left untouched.
type JobUpdate struct {
	Status      *JobStatus
	CompletedAt *time.Time
	Result      *JobResult
	Error       *string
}

// StatusUpdate builds an update that only moves the status forward.
func StatusUpdate(status JobStatus) JobUpdate {
	return JobUpdate{Status: &status}
}

// CompletedUpdate builds the terminal update for a successful job.
func CompletedUpdate(result JobResult, at time.Time) JobUpdate {
	status := JobStatusCompleted
	return JobUpdate{Status: &status, CompletedAt: &at, Result: &result}
}

// FailedUpdate builds the terminal update for a failed job.
func FailedUpdate(message string, at time.Time) JobUpdate {
	status := JobStatusFailed
	return JobUpdate{Status: &status, CompletedAt: &at, Error: &message}
}
