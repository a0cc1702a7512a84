package usage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Accountant debits tenant credits and logs the spend atomically (§4.9, §5
// "Handlers must keep critical sections within a single database
// transaction"). It talks to the tenants and usage_events tables directly,
// the same direct-sqlx idiom the api-key repository uses, rather than
// routing through tenant.Repository, because the debit and the event insert
// must share one transaction.
type Accountant struct {
	db *sqlx.DB
}

func NewAccountant(db *sqlx.DB) *Accountant {
	return &Accountant{db: db}
}

// Debit inserts a UsageEvent and increments the tenant's used_credits by the
// same amount inside one transaction. It re-checks the quota under the
// transaction to close the TOCTOU window between the admission pipeline's
// precheck and the actual debit.
func (a *Accountant) Debit(ctx context.Context, tenantID kernel.TenantID, eventType EventType, metadata map[string]any) (*Event, error) {
	cost, ok := Cost[eventType]
	if !ok {
		return nil, errx.Internal("unknown usage event type").WithDetail("event_type", string(eventType))
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errx.Wrap(err, "failed to begin debit transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	var usedCredits, monthlyCredits int
	var lastResetAt time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT used_credits, monthly_credits, last_reset_at FROM tenants WHERE id = $1 FOR UPDATE`,
		tenantID.String(),
	).Scan(&usedCredits, &monthlyCredits, &lastResetAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errx.NotFound("tenant not found")
		}
		return nil, errx.Wrap(err, "failed to lock tenant row", errx.TypeInternal)
	}

	now := time.Now().UTC()
	if needsMonthlyReset(lastResetAt, now) {
		usedCredits = 0
		if _, err := tx.ExecContext(ctx,
			`UPDATE tenants SET used_credits = 0, last_reset_at = $2 WHERE id = $1`,
			tenantID.String(), now,
		); err != nil {
			return nil, errx.Wrap(err, "failed to roll over monthly quota", errx.TypeInternal)
		}
	}

	if usedCredits+cost > monthlyCredits {
		return nil, ErrQuotaExceeded()
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, errx.Wrap(err, "failed to marshal usage metadata", errx.TypeInternal)
	}

	event := Event{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		EventType: eventType,
		Credits:   cost,
		Metadata:  metadata,
		CreatedAt: now,
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO usage_events (id, tenant_id, event_type, credits, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, tenantID.String(), string(eventType), cost, metaJSON, now,
	); err != nil {
		return nil, errx.Wrap(err, "failed to insert usage event", errx.TypeInternal)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tenants SET used_credits = used_credits + $2, updated_at = $3 WHERE id = $1`,
		tenantID.String(), cost, now,
	); err != nil {
		return nil, errx.Wrap(err, "failed to increment used credits", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, errx.Wrap(err, "failed to commit debit transaction", errx.TypeInternal)
	}

	return &event, nil
}

func needsMonthlyReset(lastResetAt, now time.Time) bool {
	ly, lm, _ := lastResetAt.Date()
	ny, nm, _ := now.Date()
	return ly != ny || lm != nm
}

// ResetStaleTenants runs the administrative monthly-rollover sweep (§4.9):
// zero used_credits for any tenant whose last_reset_at precedes the first
// of the current month.
func (a *Accountant) ResetStaleTenants(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	result, err := a.db.ExecContext(ctx,
		`UPDATE tenants SET used_credits = 0, last_reset_at = $1
		 WHERE date_trunc('month', last_reset_at) < date_trunc('month', $1::timestamptz)`,
		now,
	)
	if err != nil {
		return 0, errx.Wrap(err, "failed to run monthly rollover sweep", errx.TypeInternal)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
