package subscription

import (
	"context"
	"time"

	"github.com/screencraft/api/pkg/billing/tenant"
	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/logx"
)

// Reconciler applies verified billing events to tenant tier and credits,
// gated by the WebhookEvent idempotency ledger (§4.10).
type Reconciler struct {
	subs    Repository
	tenants tenant.Repository
	log     *logx.Logger
}

func NewReconciler(subs Repository, tenants tenant.Repository, log *logx.Logger) *Reconciler {
	return &Reconciler{subs: subs, tenants: tenants, log: log}
}

// Reconcile applies a decoded, signature-verified inbound event. The caller
// is responsible for calling VerifySignature first; Reconcile itself only
// enforces the dedup and mutation rules.
func (r *Reconciler) Reconcile(ctx context.Context, ev InboundEvent) error {
	processed, err := r.subs.IsProcessed(ctx, ev.ProviderEventID)
	if err != nil {
		return errx.Wrap(err, "failed to check webhook idempotency", errx.TypeInternal)
	}
	if processed {
		r.log.WithField("provider_event_id", ev.ProviderEventID).
			Info("webhook already processed, acknowledging without action")
		return nil
	}

	applyErr := r.apply(ctx, ev)

	if err := r.subs.RecordProcessed(ctx, ev.ProviderEventID, ev.EventType, ev.Raw, applyErr); err != nil {
		return errx.Wrap(err, "failed to record webhook outcome", errx.TypeInternal)
	}
	return applyErr
}

func (r *Reconciler) apply(ctx context.Context, ev InboundEvent) error {
	now := time.Now().UTC()

	switch ev.EventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		if ev.Status != StatusActive && ev.Status != StatusTrialing {
			// Not yet live (e.g. incomplete/past_due creation); mirror the
			// subscription row only, tenant tier is untouched.
			return r.subs.UpsertSubscription(ctx, Subscription{
				TenantID:  ev.TenantID,
				Tier:      ev.Tier,
				Status:    ev.Status,
				UpdatedAt: now,
			})
		}

		t, err := r.tenants.FindByID(ctx, ev.TenantID)
		if err != nil {
			return err
		}
		t.ApplySubscription(ev.Tier, now)
		if err := r.tenants.Save(ctx, *t); err != nil {
			return err
		}
		return r.subs.UpsertSubscription(ctx, Subscription{
			TenantID:  ev.TenantID,
			Tier:      ev.Tier,
			Status:    ev.Status,
			UpdatedAt: now,
		})

	case EventSubscriptionDeleted:
		t, err := r.tenants.FindByID(ctx, ev.TenantID)
		if err != nil {
			return err
		}
		t.Downgrade(now)
		if err := r.tenants.Save(ctx, *t); err != nil {
			return err
		}
		return r.subs.MarkCanceled(ctx, ev.TenantID.String())

	case EventInvoicePaid:
		// Re-sync in case this arrived out of order relative to the
		// subscription.updated event for the same billing cycle.
		t, err := r.tenants.FindByID(ctx, ev.TenantID)
		if err != nil {
			return err
		}
		t.ApplySubscription(ev.Tier, now)
		if err := r.tenants.Save(ctx, *t); err != nil {
			return err
		}
		return r.subs.UpsertSubscription(ctx, Subscription{
			TenantID:  ev.TenantID,
			Tier:      ev.Tier,
			Status:    StatusActive,
			UpdatedAt: now,
		})

	case EventInvoiceFailed:
		return r.subs.UpsertSubscription(ctx, Subscription{
			TenantID:  ev.TenantID,
			Tier:      ev.Tier,
			Status:    StatusPastDue,
			UpdatedAt: now,
		})

	default:
		return ErrUnknownEvent()
	}
}
