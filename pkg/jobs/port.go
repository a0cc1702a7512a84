package jobs

import (
	"context"

	"github.com/screencraft/api/pkg/kernel"
)

// Repository persists jobs. Every read and write that isn't a worker-side
// bulk operation (FindPending, CleanupExpired) is scoped to a tenant, the
// BOLA defense §4.6 requires: a mismatched tenant must look identical to a
// missing row.
type Repository interface {
	Create(ctx context.Context, j Job) error
	FindByIDAndTenant(ctx context.Context, id kernel.JobID, tenantID kernel.TenantID) (*Job, error)
	ListByTenant(ctx context.Context, tenantID kernel.TenantID, filter ListFilter, page kernel.PaginationOptions) (kernel.Paginated[*Job], error)
	DeleteByIDAndTenant(ctx context.Context, id kernel.JobID, tenantID kernel.TenantID) (bool, error)
	Save(ctx context.Context, j Job) error
	FindPending(ctx context.Context, limit int) ([]*Job, error)
	CleanupExpired(ctx context.Context) (int64, error)
}
