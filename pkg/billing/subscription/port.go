package subscription

import "context"

// Repository persists subscriptions and the webhook dedup ledger.
type Repository interface {
	UpsertSubscription(ctx context.Context, s Subscription) error
	MarkCanceled(ctx context.Context, tenantID string) error

	// IsProcessed reports whether provider_event_id was already handled,
	// the idempotency gate required by §4.10 and the invariant in §8.
	IsProcessed(ctx context.Context, providerEventID string) (bool, error)
	RecordProcessed(ctx context.Context, providerEventID string, eventType EventType, raw []byte, procErr error) error
}
