package apikey

import (
	"context"

	"github.com/screencraft/api/pkg/kernel"
)

// Repository persists API keys, scoped to a tenant for every write and
// ownership-sensitive read; FindByHash is the one lookup that is
// necessarily tenant-blind, since authentication must resolve the tenant
// from the key itself.
type Repository interface {
	Save(ctx context.Context, key APIKey) error
	FindByID(ctx context.Context, id string, tenantID kernel.TenantID) (*APIKey, error)
	FindByHash(ctx context.Context, keyHash string) (*APIKey, error)
	FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*APIKey, error)
	Delete(ctx context.Context, id string, tenantID kernel.TenantID) error
	UpdateLastUsed(ctx context.Context, id string) error
}
