package tenantinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/screencraft/api/pkg/billing/tenant"
	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresTenantRepository is the PostgreSQL implementation of tenant.Repository.
type PostgresTenantRepository struct {
	db *sqlx.DB
}

func NewPostgresTenantRepository(db *sqlx.DB) tenant.Repository {
	return &PostgresTenantRepository{db: db}
}

type tenantPersistence struct {
	ID             string    `db:"id"`
	Email          string    `db:"email"`
	Tier           string    `db:"tier"`
	MonthlyCredits int       `db:"monthly_credits"`
	UsedCredits    int       `db:"used_credits"`
	LastResetAt    time.Time `db:"last_reset_at"`
	WebhookURL     sql.NullString `db:"webhook_url"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func toPersistence(t tenant.Tenant) tenantPersistence {
	return tenantPersistence{
		ID:             t.ID.String(),
		Email:          t.Email,
		Tier:           string(t.Tier),
		MonthlyCredits: t.MonthlyCredits,
		UsedCredits:    t.UsedCredits,
		LastResetAt:    t.LastResetAt,
		WebhookURL:     sql.NullString{String: t.WebhookURL, Valid: t.WebhookURL != ""},
		IsActive:       t.IsActive,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func toDomain(p tenantPersistence) tenant.Tenant {
	return tenant.Tenant{
		ID:             kernel.NewTenantID(p.ID),
		Email:          p.Email,
		Tier:           kernel.Tier(p.Tier),
		MonthlyCredits: p.MonthlyCredits,
		UsedCredits:    p.UsedCredits,
		LastResetAt:    p.LastResetAt,
		WebhookURL:     p.WebhookURL.String,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (r *PostgresTenantRepository) Create(ctx context.Context, t tenant.Tenant) error {
	query := `
		INSERT INTO tenants (
			id, email, tier, monthly_credits, used_credits, last_reset_at,
			webhook_url, is_active, created_at, updated_at
		) VALUES (
			:id, :email, :tier, :monthly_credits, :used_credits, :last_reset_at,
			:webhook_url, :is_active, :created_at, :updated_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, toPersistence(t))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errx.Conflict("tenant already exists").WithDetail("tenant_id", t.ID.String())
		}
		return errx.Wrap(err, "failed to create tenant", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresTenantRepository) FindByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	var p tenantPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM tenants WHERE id = $1`, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tenant.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find tenant", errx.TypeInternal)
	}
	t := toDomain(p)
	return &t, nil
}

func (r *PostgresTenantRepository) FindByEmail(ctx context.Context, email string) (*tenant.Tenant, error) {
	var p tenantPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM tenants WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tenant.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find tenant by email", errx.TypeInternal)
	}
	t := toDomain(p)
	return &t, nil
}

func (r *PostgresTenantRepository) Save(ctx context.Context, t tenant.Tenant) error {
	query := `
		UPDATE tenants SET
			email = :email, tier = :tier, monthly_credits = :monthly_credits,
			used_credits = :used_credits, last_reset_at = :last_reset_at,
			webhook_url = :webhook_url, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, toPersistence(t))
	if err != nil {
		return errx.Wrap(err, "failed to save tenant", errx.TypeInternal)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return tenant.ErrNotFound()
	}
	return nil
}

func (r *PostgresTenantRepository) Deactivate(ctx context.Context, id kernel.TenantID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tenants SET is_active = false, updated_at = NOW() WHERE id = $1`, id.String())
	if err != nil {
		return errx.Wrap(err, "failed to deactivate tenant", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresTenantRepository) FindStaleForReset(ctx context.Context, limit int) ([]*tenant.Tenant, error) {
	var rows []tenantPersistence
	query := `
		SELECT * FROM tenants
		WHERE date_trunc('month', last_reset_at) < date_trunc('month', NOW())
		LIMIT $1`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errx.Wrap(err, "failed to list stale tenants", errx.TypeInternal)
	}
	out := make([]*tenant.Tenant, len(rows))
	for i, p := range rows {
		t := toDomain(p)
		out[i] = &t
	}
	return out, nil
}
