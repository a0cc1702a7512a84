// Package apikeyinfra is the PostgreSQL implementation of apikey.Repository.
package apikeyinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/iam/apikey"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type PostgresAPIKeyRepository struct {
	db *sqlx.DB
}

func NewPostgresAPIKeyRepository(db *sqlx.DB) apikey.Repository {
	return &PostgresAPIKeyRepository{db: db}
}

type apiKeyPersistence struct {
	ID         string         `db:"id"`
	TenantID   string         `db:"tenant_id"`
	KeyHash    string         `db:"key_hash"`
	Prefix     string         `db:"prefix"`
	Name       string         `db:"name"`
	IsActive   bool           `db:"is_active"`
	CreatedAt  time.Time      `db:"created_at"`
	LastUsedAt sql.NullTime   `db:"last_used_at"`
	RevokedAt  sql.NullTime   `db:"revoked_at"`
}

func toPersistence(k apikey.APIKey) apiKeyPersistence {
	p := apiKeyPersistence{
		ID:        k.ID,
		TenantID:  k.TenantID.String(),
		KeyHash:   k.KeyHash,
		Prefix:    k.Prefix,
		Name:      k.Name,
		IsActive:  k.IsActive,
		CreatedAt: k.CreatedAt,
	}
	if k.LastUsedAt != nil {
		p.LastUsedAt = sql.NullTime{Time: *k.LastUsedAt, Valid: true}
	}
	if k.RevokedAt != nil {
		p.RevokedAt = sql.NullTime{Time: *k.RevokedAt, Valid: true}
	}
	return p
}

func toDomain(p apiKeyPersistence) apikey.APIKey {
	k := apikey.APIKey{
		ID:        p.ID,
		TenantID:  kernel.NewTenantID(p.TenantID),
		KeyHash:   p.KeyHash,
		Prefix:    p.Prefix,
		Name:      p.Name,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
	}
	if p.LastUsedAt.Valid {
		k.LastUsedAt = &p.LastUsedAt.Time
	}
	if p.RevokedAt.Valid {
		k.RevokedAt = &p.RevokedAt.Time
	}
	return k
}

func toDomainSlice(rows []apiKeyPersistence) []*apikey.APIKey {
	out := make([]*apikey.APIKey, len(rows))
	for i, p := range rows {
		k := toDomain(p)
		out[i] = &k
	}
	return out
}

// Save inserts a new key, or updates the mutable fields of an existing one
// (name, active flag, last-used, revocation) scoped to its tenant.
func (r *PostgresAPIKeyRepository) Save(ctx context.Context, key apikey.APIKey) error {
	exists, err := r.exists(ctx, key.ID)
	if err != nil {
		return errx.Wrap(err, "failed to check API key existence", errx.TypeInternal)
	}
	if exists {
		return r.update(ctx, key)
	}
	return r.create(ctx, key)
}

func (r *PostgresAPIKeyRepository) create(ctx context.Context, key apikey.APIKey) error {
	query := `
		INSERT INTO api_keys (id, tenant_id, key_hash, prefix, name, is_active, created_at, last_used_at, revoked_at)
		VALUES (:id, :tenant_id, :key_hash, :prefix, :name, :is_active, :created_at, :last_used_at, :revoked_at)`
	_, err := r.db.NamedExecContext(ctx, query, toPersistence(key))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errx.Conflict("API key hash collision").WithDetail("key_id", key.ID)
		}
		return errx.Wrap(err, "failed to create API key", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresAPIKeyRepository) update(ctx context.Context, key apikey.APIKey) error {
	query := `
		UPDATE api_keys SET
			name = :name, is_active = :is_active, last_used_at = :last_used_at, revoked_at = :revoked_at
		WHERE id = :id AND tenant_id = :tenant_id`
	result, err := r.db.NamedExecContext(ctx, query, toPersistence(key))
	if err != nil {
		return errx.Wrap(err, "failed to update API key", errx.TypeInternal)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apikey.ErrNotFound()
	}
	return nil
}

func (r *PostgresAPIKeyRepository) FindByID(ctx context.Context, id string, tenantID kernel.TenantID) (*apikey.APIKey, error) {
	var p apiKeyPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM api_keys WHERE id = $1 AND tenant_id = $2`, id, tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apikey.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find API key", errx.TypeInternal)
	}
	k := toDomain(p)
	return &k, nil
}

// FindByHash is the only tenant-blind read: authentication must discover
// the tenant from the key, not the other way around.
func (r *PostgresAPIKeyRepository) FindByHash(ctx context.Context, keyHash string) (*apikey.APIKey, error) {
	var p apiKeyPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM api_keys WHERE key_hash = $1`, keyHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apikey.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find API key by hash", errx.TypeInternal)
	}
	k := toDomain(p)
	return &k, nil
}

func (r *PostgresAPIKeyRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*apikey.APIKey, error) {
	var rows []apiKeyPersistence
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM api_keys WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to list API keys", errx.TypeInternal)
	}
	return toDomainSlice(rows), nil
}

func (r *PostgresAPIKeyRepository) Delete(ctx context.Context, id string, tenantID kernel.TenantID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1 AND tenant_id = $2`, id, tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete API key", errx.TypeInternal)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apikey.ErrNotFound()
	}
	return nil
}

func (r *PostgresAPIKeyRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return errx.Wrap(err, "failed to update last-used timestamp", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresAPIKeyRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM api_keys WHERE id = $1)`, id)
	if err != nil {
		return false, errx.Wrap(err, "failed to check API key existence", errx.TypeInternal)
	}
	return exists, nil
}
