package tenant

import (
	"context"

	"github.com/screencraft/api/pkg/kernel"
)

// Repository persists tenants. All reads that originate from a caller's own
// identity are by ID; there is no tenant-scoped "list all tenants" surface.
type Repository interface {
	Create(ctx context.Context, t Tenant) error
	FindByID(ctx context.Context, id kernel.TenantID) (*Tenant, error)
	FindByEmail(ctx context.Context, email string) (*Tenant, error)
	Save(ctx context.Context, t Tenant) error
	Deactivate(ctx context.Context, id kernel.TenantID) error
	// FindStaleForReset returns tenants whose last_reset_at precedes the
	// first of the current month, for the administrative rollover sweep (§4.9).
	FindStaleForReset(ctx context.Context, limit int) ([]*Tenant, error)
}
