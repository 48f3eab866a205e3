package ingest

import "time"

// Run statuses
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded ingestion request.
type Run struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	IDStrategy string    `json:"id_strategy"`
	Status     string    `json:"status"`
	Documents  int       `json:"documents"`
	Chunks     int       `json:"chunks"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
