// Package subscriptioninfra persists subscriptions and the webhook
// idempotency ledger, grounded on the tenant repository's sqlx persistence
// idiom.
package subscriptioninfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/screencraft/api/pkg/billing/subscription"
	"github.com/screencraft/api/pkg/errx"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PostgresSubscriptionRepository struct {
	db *sqlx.DB
}

func NewPostgresSubscriptionRepository(db *sqlx.DB) subscription.Repository {
	return &PostgresSubscriptionRepository{db: db}
}

type subscriptionPersistence struct {
	ID                 string    `db:"id"`
	TenantID           string    `db:"tenant_id"`
	ProviderCustomerID sql.NullString `db:"provider_customer_id"`
	Tier               string    `db:"tier"`
	Status             string    `db:"status"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// UpsertSubscription inserts or updates the tenant's single subscription row
// keyed on tenant_id, matching the "mirror the provider's view" semantics
// of §4.10 rather than appending a new row per event.
func (r *PostgresSubscriptionRepository) UpsertSubscription(ctx context.Context, s subscription.Subscription) error {
	p := subscriptionPersistence{
		ID:        uuid.NewString(),
		TenantID:  s.TenantID.String(),
		Tier:      string(s.Tier),
		Status:    string(s.Status),
		CreatedAt: s.UpdatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.ProviderCustomerID != "" {
		p.ProviderCustomerID = sql.NullString{String: s.ProviderCustomerID, Valid: true}
	}

	query := `
		INSERT INTO subscriptions (id, tenant_id, provider_customer_id, tier, status, created_at, updated_at)
		VALUES (:id, :tenant_id, :provider_customer_id, :tier, :status, :created_at, :updated_at)
		ON CONFLICT (tenant_id) DO UPDATE SET
			provider_customer_id = COALESCE(EXCLUDED.provider_customer_id, subscriptions.provider_customer_id),
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return errx.Wrap(err, "failed to upsert subscription", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) MarkCanceled(ctx context.Context, tenantID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE tenant_id = $1`,
		tenantID, string(subscription.StatusCanceled),
	)
	if err != nil {
		return errx.Wrap(err, "failed to mark subscription canceled", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSubscriptionRepository) IsProcessed(ctx context.Context, providerEventID string) (bool, error) {
	var processed bool
	err := r.db.GetContext(ctx, &processed,
		`SELECT processed FROM webhook_events WHERE provider_event_id = $1`, providerEventID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, errx.Wrap(err, "failed to check webhook event", errx.TypeInternal)
	}
	return processed, nil
}

func (r *PostgresSubscriptionRepository) RecordProcessed(ctx context.Context, providerEventID string, eventType subscription.EventType, raw []byte, procErr error) error {
	var errMsg sql.NullString
	if procErr != nil {
		errMsg = sql.NullString{String: procErr.Error(), Valid: true}
	}

	query := `
		INSERT INTO webhook_events (id, provider_event_id, event_type, payload, processed, processed_at, error)
		VALUES ($1, $2, $3, $4, true, NOW(), $5)
		ON CONFLICT (provider_event_id) DO UPDATE SET
			processed = true, processed_at = NOW(), error = $5`
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), providerEventID, string(eventType), raw, errMsg)
	if err != nil {
		return errx.Wrap(err, "failed to record webhook event", errx.TypeInternal)
	}
	return nil
}
