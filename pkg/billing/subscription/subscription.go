// Package subscription consumes signed billing events and mutates tenant
// tier/credits idempotently (spec §4.10 Subscription Reconciler).
package subscription

import (
	"net/http"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("SUBSCRIPTION")

var (
	CodeBadSignature = ErrRegistry.Register("INVALID_SIGNATURE", errx.TypeValidation, http.StatusBadRequest, "Invalid webhook signature")
	CodeUnknownEvent  = ErrRegistry.Register("UNKNOWN_EVENT_TYPE", errx.TypeValidation, http.StatusBadRequest, "Unrecognized billing event type")
)

func ErrBadSignature() *errx.Error { return ErrRegistry.New(CodeBadSignature) }
func ErrUnknownEvent() *errx.Error { return ErrRegistry.New(CodeUnknownEvent) }

// Status is the subscription's lifecycle state mirrored from the billing
// provider.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusTrialing Status = "TRIALING"
	StatusPastDue  Status = "PAST_DUE"
	StatusCanceled Status = "CANCELED"
)

// Subscription is the tenant's billing-provider-mirrored plan record.
type Subscription struct {
	ID                 string
	TenantID           kernel.TenantID
	ProviderCustomerID string
	Tier               kernel.Tier
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EventType is the billing-provider event kind, per §4.10's bullet list.
type EventType string

const (
	EventSubscriptionCreated EventType = "subscription.created"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventSubscriptionDeleted EventType = "subscription.deleted"
	EventInvoicePaid         EventType = "invoice.paid"
	EventInvoiceFailed       EventType = "invoice.failed"
)

// InboundEvent is the decoded payload of a signed billing webhook.
type InboundEvent struct {
	ProviderEventID string
	EventType       EventType
	TenantID        kernel.TenantID
	Tier            kernel.Tier
	Status          Status
	Raw             []byte
}
