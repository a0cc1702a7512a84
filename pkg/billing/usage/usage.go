// Package usage is the append-only credit-spend ledger and the atomic debit
// accountant (spec §3 UsageEvent, §4.9 Billing & Usage Accountant).
package usage

import (
	"net/http"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("BILLING")

var (
	CodeQuotaExceeded = ErrRegistry.Register("QUOTA_EXCEEDED", errx.TypeBusiness, http.StatusTooManyRequests, "Monthly credit quota exceeded")
)

func ErrQuotaExceeded() *errx.Error { return ErrRegistry.New(CodeQuotaExceeded) }

// EventType is the billable action that produced a UsageEvent.
type EventType string

const (
	EventScreenshot         EventType = "SCREENSHOT"
	EventScreenshotFullPage EventType = "SCREENSHOT_FULLPAGE"
	EventPDF                EventType = "PDF"
	EventPDFWithTemplate    EventType = "PDF_WITH_TEMPLATE"
)

// Cost is the fixed credit price of each billable event type (§4.4 step 4).
var Cost = map[EventType]int{
	EventScreenshot:         1,
	EventScreenshotFullPage: 2,
	EventPDF:                2,
	EventPDFWithTemplate:    3,
}

// Event is an append-only credit-spend record. Metadata must already be
// privacy-filtered by the caller: only url_domain and non-identifying flags
// may appear in it (§4.9).
type Event struct {
	ID        string
	TenantID  kernel.TenantID
	EventType EventType
	Credits   int
	Metadata  map[string]any
	CreatedAt time.Time
}
