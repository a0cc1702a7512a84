// Package renderqueue is the bridge between a job create/enqueue operation
// and the worker pool: two named, priority-ordered queues in front of the
// capture engine (§4.7).
package renderqueue

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("RENDERQUEUE")

var (
	CodeNotFound      = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Queued job not found")
	CodeInvalidState  = ErrRegistry.Register("INVALID_STATE", errx.TypeBusiness, http.StatusConflict, "Operation not valid for the job's current state")
	CodeEnqueueFailed = ErrRegistry.Register("ENQUEUE_FAILED", errx.TypeExternal, http.StatusInternalServerError, "Failed to enqueue job")
)

func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }

func ErrInvalidState(op string, state State) *errx.Error {
	return ErrRegistry.New(CodeInvalidState).WithDetail("operation", op).WithDetail("state", string(state))
}

// Name is one of the two named queues (§4.7).
type Name string

const (
	NameScreenshot Name = "screenshot"
	NamePDF        Name = "pdf"
)

// DefaultPriority is used when a submitter doesn't care (§4.7: "1 high ...
// 10 low; default 5").
const DefaultPriority = 5

// ClampPriority treats 0 as "unspecified" (-> DefaultPriority) and clamps
// any other value into the valid [1, 10] band.
func ClampPriority(p int) int {
	switch {
	case p == 0:
		return DefaultPriority
	case p < 1:
		return 1
	case p > 10:
		return 10
	default:
		return p
	}
}

// State is the queue-side lifecycle of a submitted job (§4.7), distinct
// from (but driven by the same worker pickup as) jobs.Status.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateDelayed   State = "delayed"
)

// Payload is the typed job handed to a worker (§4.7: "{url?, options,
// job_id, tenant_id}"). Options is left as raw JSON since its shape depends
// on Kind (renderx.ScreenshotRequest vs renderx.PDFRequest) and the queue
// package has no business depending on renderx's types.
type Payload struct {
	URL      string          `json:"url,omitempty"`
	Options  json.RawMessage `json:"options"`
	JobID    kernel.JobID    `json:"job_id"`
	TenantID kernel.TenantID `json:"tenant_id"`
}

// StatusInfo answers get_status(queue, id) (§4.7).
type StatusInfo struct {
	State     State           `json:"state"`
	Progress  *int            `json:"progress,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Attempts  int             `json:"attempts,omitempty"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
}

// Stats answers stats(queue): a per-state count (§4.7).
type Stats map[State]int

// Bridge is the queue & worker bridge contract (§4.7).
type Bridge interface {
	AddScreenshotJob(ctx context.Context, data Payload, priority int) (string, error)
	AddPDFJob(ctx context.Context, data Payload, priority int) (string, error)
	GetStatus(ctx context.Context, queue Name, id string) (StatusInfo, error)
	Cancel(ctx context.Context, queue Name, id string) error
	Retry(ctx context.Context, queue Name, id string) error
	Stats(ctx context.Context, queue Name) (Stats, error)
	Clean(ctx context.Context, queue Name, grace time.Duration, limit int) (int, error)

	// Pickup, Complete, Fail and PromoteScheduled are the worker-side half of
	// the contract, mirroring jobx.Queue's Dequeue/Complete/Fail/
	// PromoteScheduled split (§4.7's "workers pop from the ready set").
	// Pickup returns a nil payload when the queue is empty.
	Pickup(ctx context.Context, queue Name) (*Payload, string, error)
	Complete(ctx context.Context, queue Name, id string, result json.RawMessage) error
	Fail(ctx context.Context, queue Name, id string, reason string) error
	PromoteScheduled(ctx context.Context, queue Name) error
}
