// Package jobs is the durable record of a screenshot or PDF render request,
// the state machine §4.6 shares between HTTP handlers and background
// workers.
package jobs

import (
	"fmt"
	"net/http"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("JOB")

var (
	CodeNotFound       = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Job not found")
	CodeInvalidStatus  = ErrRegistry.Register("INVALID_STATUS", errx.TypeValidation, http.StatusBadRequest, "Job is not in a downloadable state")
	CodeInvalidTransition = ErrRegistry.Register("INVALID_TRANSITION", errx.TypeInternal, http.StatusInternalServerError, "Illegal job status transition")
)

// ErrNotFound is returned verbatim for both "doesn't exist" and "belongs to
// another tenant" lookups — a BOLA defense that never leaks existence.
func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }

func ErrNotDownloadable(status Status) *errx.Error {
	return ErrRegistry.New(CodeInvalidStatus).WithDetail("status", string(status))
}

func errInvalidTransition(from, to Status) *errx.Error {
	return ErrRegistry.New(CodeInvalidTransition).WithDetail("from", string(from)).WithDetail("to", string(to))
}

// Kind is the render primitive a job produces.
type Kind string

const (
	KindScreenshot Kind = "SCREENSHOT"
	KindPDF        Kind = "PDF"
)

// SourceKind distinguishes a URL-sourced job from an HTML-fragment one
// (PDF only, §4.5's tagged union).
type SourceKind string

const (
	SourceURL  SourceKind = "URL"
	SourceHTML SourceKind = "HTML"
)

// Status is the job's position in its state machine (§4.6):
//
//	PENDING -> PROCESSING -> {COMPLETED | FAILED}
//
// PROCESSING never returns to PENDING, and COMPLETED/FAILED are terminal.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// DefaultRetention is how long a completed artifact stays downloadable
// before the retention sweep prunes its row (§3).
const DefaultRetention = 24 * time.Hour

// maxErrorLen truncates a failure reason before it is stored; raw stack
// traces are never persisted (§4.6).
const maxErrorLen = 500

// Job is a capture or render request, core fields per §3. html/headers/
// cookies are intentionally absent from this type: they live only in the
// transient options payload handed to the worker and are never part of the
// persisted record (see the privacy filter, §13).
type Job struct {
	ID           kernel.JobID
	TenantID     kernel.TenantID
	Kind         Kind
	Status       Status
	SourceKind   SourceKind
	SourceURL    string
	Format       string
	URLHash      string
	URLDomain    string
	StorageKey   string
	DownloadURL  string
	FileSize     int64
	PageCount    int
	Error        string
	WebhookURL   string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// NewJob materializes a PENDING job, the shape every protected create-job
// operation inserts exactly once (§4.6), except the sync+noStore path which
// never persists a row at all (§4.11).
func NewJob(id kernel.JobID, tenantID kernel.TenantID, kind Kind, sourceKind SourceKind, sourceURL, format string, now time.Time) Job {
	analytics := NewAnalytics(sourceURL)
	return Job{
		ID:         id,
		TenantID:   tenantID,
		Kind:       kind,
		Status:     StatusPending,
		SourceKind: sourceKind,
		SourceURL:  sourceURL,
		Format:     format,
		URLHash:    analytics.URLHash,
		URLDomain:  analytics.URLDomain,
		ExpiresAt:  now.Add(DefaultRetention),
		CreatedAt:  now,
	}
}

// MarkProcessing transitions a PENDING job to PROCESSING at worker pickup.
func (j *Job) MarkProcessing() error {
	if j.Status != StatusPending {
		return errInvalidTransition(j.Status, StatusProcessing)
	}
	j.Status = StatusProcessing
	return nil
}

// MarkCompleted transitions to the terminal COMPLETED state. Idempotent
// with respect to CompletedAt: calling it twice does not move the
// timestamp.
func (j *Job) MarkCompleted(downloadURL, storageKey string, fileSize int64, pageCount int, now time.Time) error {
	if j.Status == StatusCompleted {
		return nil
	}
	if j.Status != StatusProcessing && j.Status != StatusPending {
		return errInvalidTransition(j.Status, StatusCompleted)
	}
	j.Status = StatusCompleted
	j.DownloadURL = downloadURL
	j.StorageKey = storageKey
	j.FileSize = fileSize
	j.PageCount = pageCount
	if j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	return nil
}

// MarkFailed transitions to the terminal FAILED state, truncating the
// reason so a runaway error message or stack trace never lands in storage.
func (j *Job) MarkFailed(reason string, now time.Time) error {
	if j.Status == StatusCompleted || j.Status == StatusFailed {
		return errInvalidTransition(j.Status, StatusFailed)
	}
	j.Status = StatusFailed
	j.Error = truncate(reason, maxErrorLen)
	if j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	return nil
}

// IsDownloadable reports whether the job has a retrievable artifact.
func (j *Job) IsDownloadable() bool {
	return j.Status == StatusCompleted && j.StorageKey != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...(truncated)", s[:n])
}

// ListFilter narrows list_by_tenant (§4.6): Status/Kind are optional
// equality filters, SortBy is "created_at" or "completed_at", SortOrder is
// "asc" or "desc".
type ListFilter struct {
	Status    Status
	Kind      Kind
	SortBy    string
	SortOrder string
}
