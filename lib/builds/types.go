package builds

import (
	"time"

	"github.com/dmgforge/dmgforge/lib/declaration"
)

// Build statuses. A build moves pending → (queued stages) → ready or failed.
const (
	StatusPending    = "pending"
	StatusStaging    = "staging"
	StatusCreating   = "creating"
	StatusAttaching  = "attaching"
	StatusDecorating = "decorating"
	StatusConverting = "converting"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// CreateBuildRequest submits a declaration for packaging.
type CreateBuildRequest struct {
	Declaration declaration.Declaration `json:"declaration"`
	Filename    string                  `json:"filename"`
}

// Build is the caller-visible state of a packaging job.
type Build struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Filename      string     `json:"filename"`
	Status        string     `json:"status"`
	Progress      int        `json:"progress"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	Error         *string    `json:"error,omitempty"`
	Diagnostics   []string   `json:"diagnostics,omitempty"`
	SizeBytes     *int64     `json:"size_bytes,omitempty"`
	Size          string     `json:"size,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}
